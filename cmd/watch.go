package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/api"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync on a schedule until interrupted",
	Long: `Run a sync immediately and then on every tick of the schedule. A tick that
fires while the previous sync is still running is skipped.

The schedule accepts cron expressions and descriptors such as "@every 30m"
or "@hourly". With --serve the query API runs alongside.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("schedule", "@every 1h", "Cron schedule for syncs")
	watchCmd.Flags().Bool("serve", false, "Also serve the query API")
	viper.BindPFlag("sync.schedule", watchCmd.Flags().Lookup("schedule"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	serve, _ := cmd.Flags().GetBool("serve")
	return watchAndServe(cmd, true, serve)
}

// watchAndServe runs the scheduler, the API or both until a signal arrives.
func watchAndServe(cmd *cobra.Command, watch, serve bool) error {
	h, ctx, stop := withShutdown(cmd)
	defer stop()

	a, err := newApp(ctx, h)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	if watch {
		g.Go(func() error {
			return a.manager.Watch(gctx, cfg.Sync.Schedule)
		})
	}
	if serve {
		server := api.NewServer(cfg.API, a.store, a.metrics, log)
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}
	return g.Wait()
}
