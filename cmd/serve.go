package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API",
	Long: `Serve tracked programs, history and ignored assets over HTTP, plus
/health and Prometheus /metrics. Set api.api_key to require a bearer token.

With --watch the scheduler runs in the same process and /metrics reports
its sync runs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Bool("watch", false, "Also sync on the configured schedule")
	viper.BindPFlag("api.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	return watchAndServe(cmd, watch, true)
}
