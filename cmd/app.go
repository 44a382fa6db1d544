package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/database"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/notify"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/platforms"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/shutdown"
)

const shutdownTimeout = 30 * time.Second

// app holds the long-lived dependencies of sync, watch and serve. Everything
// it opens is closed through the shutdown handler.
type app struct {
	store    *database.Store
	notifier core.Notifier
	metrics  *telemetry.Metrics
	manager  *orchestrator.Manager
	shutdown *shutdown.Handler
}

// newApp opens everything a sync needs. Cleanup is registered on h, which
// also provides the signal-aware context passed in as ctx.
func newApp(ctx context.Context, h *shutdown.Handler) (a *app, err error) {
	a = &app{shutdown: h}
	defer func() {
		if err != nil {
			_ = h.Shutdown()
		}
	}()

	tp, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.shutdown.RegisterShutdownFunc("telemetry", tp.Close)

	a.store, err = database.NewStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.shutdown.RegisterShutdownFunc("store", a.store.Close)

	clients, err := platforms.Enabled(cfg, log)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		log.Warnw("No platforms enabled, set platforms.<name>.enabled and api_token")
	}

	if cfg.Notifications.DiscordWebhookURL != "" {
		a.notifier, err = notify.NewDiscordNotifier(cfg.Notifications, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize discord notifier: %w", err)
		}
	} else {
		a.notifier = notify.NewLogNotifier(log)
	}
	// registered last so queued notifications flush before the store closes
	a.shutdown.RegisterShutdownFunc("notifier", a.notifier.Close)

	a.metrics = telemetry.NewMetrics()
	a.manager = orchestrator.NewManager(cfg, a.store, clients, a.notifier, a.metrics, log)
	return a, nil
}

func (a *app) close() {
	if err := a.shutdown.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warnw("Shutdown incomplete", "error", err)
	}
}

// openStore is used by the read-only commands.
func openStore(ctx context.Context) (*database.Store, error) {
	return database.NewStore(ctx, cfg.Database, log)
}

// withShutdown returns a handler and a context cancelled on SIGINT or SIGTERM.
func withShutdown(cmd *cobra.Command) (*shutdown.Handler, context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	h := shutdown.NewHandler(log)
	ctx, stop := h.SignalContext(parent)
	return h, ctx, stop
}
