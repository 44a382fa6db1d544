package notify

import (
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
)

// LogNotifier writes events to the structured log. It is the fallback when
// no webhook is configured.
type LogNotifier struct {
	log *logger.Logger
}

var _ core.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify.log")}
}

func (n *LogNotifier) Notify(event core.NotificationEvent) {
	fields := []interface{}{
		"kind", event.Kind,
		"platform", event.Platform,
		"program", event.ProgramSlug,
	}
	if event.Value != "" {
		fields = append(fields, "value", event.Value, "scope_type", event.ScopeType, "in_scope", event.InScope)
	}
	if event.Reason != "" {
		fields = append(fields, "reason", event.Reason)
	}
	if len(event.ScopeCounts) > 0 {
		fields = append(fields, "scope_counts", event.ScopeCounts)
	}

	switch event.Kind {
	case core.NotifyAccessError, core.NotifySyncError, core.NotifyProgramError:
		n.log.Warnw(Title(event.Kind), append(fields, "error", event.Error)...)
	default:
		n.log.Infow(Title(event.Kind), fields...)
	}
}

func (n *LogNotifier) Close() error {
	return nil
}
