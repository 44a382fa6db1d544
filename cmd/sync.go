package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync every enabled platform once",
	Long: `Fetch the programs of every enabled platform, record scope changes and
send notifications. The first sync of a platform records its programs
silently.

Platforms are synced concurrently; a failing platform does not affect the
others. The command exits non-zero when any platform or program failed.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("platform", "", "Only sync this platform (hackerone, bugcrowd, intigriti, yeswehack)")
	syncCmd.Flags().Bool("json", false, "Print the run report as JSON")
}

func runSync(cmd *cobra.Command, args []string) error {
	h, ctx, stop := withShutdown(cmd)
	defer stop()

	a, err := newApp(ctx, h)
	if err != nil {
		return err
	}
	defer a.close()

	var filter *string
	if cmd.Flags().Changed("platform") {
		platform, _ := cmd.Flags().GetString("platform")
		filter = &platform
	}

	report, runErr := a.manager.Run(ctx, filter)

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		if err := writeStructured(cmd.OutOrStdout(), formatJSON, report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}

	if runErr != nil {
		return fmt.Errorf("sync finished with failures: %w", runErr)
	}
	return nil
}
