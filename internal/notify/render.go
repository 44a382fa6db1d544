package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

const (
	colorAdded   = 0x2ecc71
	colorRemoved = 0xe74c3c
	colorIgnored = 0xf1c40f
	colorError   = 0x992d22
)

var titles = map[core.NotificationKind]string{
	core.NotifyNewProgram:     "New program",
	core.NotifyRemovedProgram: "Program removed",
	core.NotifyNewScope:       "New scope",
	core.NotifyRemovedScope:   "Scope removed",
	core.NotifyIgnoredAsset:   "Ignored asset",
	core.NotifyAccessError:    "Platform access error",
	core.NotifySyncError:      "Platform sync error",
	core.NotifyProgramError:   "Program sync error",
}

// Title is the one-line headline for an event kind.
func Title(kind core.NotificationKind) string {
	if t, ok := titles[kind]; ok {
		return t
	}
	return string(kind)
}

// Render builds the Discord embed for event.
func Render(event core.NotificationEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     Title(event.Kind),
		Color:     color(event.Kind),
		Timestamp: event.OccurredAt.Format(time.RFC3339),
	}

	add := func(name, value string, inline bool) {
		if value == "" {
			return
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  truncate(value, 1024),
			Inline: inline,
		})
	}

	add("Platform", event.Platform.DisplayName(), true)
	add("Program", programLabel(event), true)

	switch event.Kind {
	case core.NotifyNewScope, core.NotifyRemovedScope:
		add("Target", "`"+event.Value+"`", false)
		add("Type", string(event.ScopeType), true)
		add("Category", scope.Category(event.InScope), true)
	case core.NotifyIgnoredAsset:
		add("Target", "`"+event.Value+"`", false)
		add("Reason", event.Reason, true)
	case core.NotifyNewProgram:
		add("Scopes", scopeCounts(event), false)
	}

	add("Error", event.Error, false)
	return embed
}

func programLabel(event core.NotificationEvent) string {
	switch {
	case event.ProgramName != "" && event.ProgramSlug != "" && event.ProgramName != event.ProgramSlug:
		return fmt.Sprintf("%s (%s)", event.ProgramName, event.ProgramSlug)
	case event.ProgramName != "":
		return event.ProgramName
	default:
		return event.ProgramSlug
	}
}

func scopeCounts(event core.NotificationEvent) string {
	if len(event.ScopeCounts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(event.ScopeCounts))
	for t := range event.ScopeCounts {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, event.ScopeCounts[scope.AssetType(k)]))
	}
	return strings.Join(parts, ", ")
}

func color(kind core.NotificationKind) int {
	switch kind {
	case core.NotifyNewProgram, core.NotifyNewScope:
		return colorAdded
	case core.NotifyRemovedProgram, core.NotifyRemovedScope:
		return colorRemoved
	case core.NotifyIgnoredAsset:
		return colorIgnored
	default:
		return colorError
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
