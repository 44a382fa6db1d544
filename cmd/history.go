package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded scope changes, newest first",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("platform", "", "Filter by platform")
	historyCmd.Flags().String("type", "", "Filter by event type (add_program, remove_program, add_scope, remove_scope, asset_ignored)")
	historyCmd.Flags().Duration("since", 0, "Only events newer than this, e.g. 24h")
	historyCmd.Flags().Int("limit", 50, "Maximum number of events")
	historyCmd.Flags().StringP("format", "o", formatTable, "Output format (table, json, yaml)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validFormat(format); err != nil {
		return err
	}
	platform, err := platformFlag(cmd)
	if err != nil {
		return err
	}

	filter := core.HistoryFilter{Platform: platform}
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	rawType, _ := cmd.Flags().GetString("type")
	if rawType != "" {
		filter.EventType = types.EventType(rawType)
		if !knownEventType(filter.EventType) {
			return fmt.Errorf("unknown event type %q", rawType)
		}
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.ListHistory(ctx, filter)
	if err != nil {
		return err
	}

	if format == formatTable {
		printHistoryTable(cmd.OutOrStdout(), events)
		return nil
	}
	return writeStructured(cmd.OutOrStdout(), format, events)
}

func knownEventType(t types.EventType) bool {
	for _, known := range types.EventTypes {
		if t == known {
			return true
		}
	}
	return false
}
