package cmd

import (
	"github.com/spf13/cobra"
)

var ignoredCmd = &cobra.Command{
	Use:   "ignored",
	Short: "List scope values rejected by validation",
	RunE:  runIgnored,
}

func init() {
	rootCmd.AddCommand(ignoredCmd)
	ignoredCmd.Flags().String("platform", "", "Filter by platform")
	ignoredCmd.Flags().StringP("format", "o", formatTable, "Output format (table, json, yaml)")
}

func runIgnored(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validFormat(format); err != nil {
		return err
	}
	platform, err := platformFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	assets, err := store.ListIgnored(ctx, platform)
	if err != nil {
		return err
	}

	if format == formatTable {
		printIgnoredTable(cmd.OutOrStdout(), assets)
		return nil
	}
	return writeStructured(cmd.OutOrStdout(), format, assets)
}
