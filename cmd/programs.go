package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

var programsCmd = &cobra.Command{
	Use:   "programs [slug]",
	Short: "List tracked programs",
	Long: `List the programs recorded by previous syncs. With a slug and --platform,
show that program with its scopes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrograms,
}

func init() {
	rootCmd.AddCommand(programsCmd)
	programsCmd.Flags().String("platform", "", "Filter by platform")
	programsCmd.Flags().StringP("format", "o", formatTable, "Output format (table, json, yaml)")
	programsCmd.Flags().Bool("scopes", false, "Include scopes")
	programsCmd.Flags().Int("limit", 0, "Maximum number of programs (0 for all)")
}

func runPrograms(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := validFormat(format); err != nil {
		return err
	}
	platform, err := platformFlag(cmd)
	if err != nil {
		return err
	}
	withScopes, _ := cmd.Flags().GetBool("scopes")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		if platform == "" {
			return fmt.Errorf("--platform is required when a slug is given")
		}
		program, err := store.GetProgram(ctx, platform, args[0])
		if err != nil {
			return fmt.Errorf("get program %s/%s: %w", platform, args[0], err)
		}
		scopes, err := store.ListScopes(ctx, program.ID)
		if err != nil {
			return err
		}
		row := newProgramRow(*program, scopes)
		if format == formatTable {
			printProgramTable(cmd.OutOrStdout(), []programRow{row})
			printScopeTable(cmd.OutOrStdout(), row.Scopes)
			return nil
		}
		return writeStructured(cmd.OutOrStdout(), format, row)
	}

	programs, err := store.ListPrograms(ctx, core.ProgramFilter{Platform: platform, Limit: limit})
	if err != nil {
		return err
	}

	rows := make([]programRow, 0, len(programs))
	for _, p := range programs {
		var scopes []types.Scope
		if withScopes || format == formatTable {
			if scopes, err = store.ListScopes(ctx, p.ID); err != nil {
				return err
			}
		}
		row := newProgramRow(p, scopes)
		if !withScopes {
			row.Scopes = nil
		}
		rows = append(rows, row)
	}

	if format == formatTable {
		printProgramTable(cmd.OutOrStdout(), rows)
		return nil
	}
	return writeStructured(cmd.OutOrStdout(), format, rows)
}

// platformFlag parses --platform. Empty means all platforms.
func platformFlag(cmd *cobra.Command) (scope.Platform, error) {
	raw, _ := cmd.Flags().GetString("platform")
	if raw == "" {
		return "", nil
	}
	platform, ok := scope.ParsePlatform(raw)
	if !ok {
		return "", fmt.Errorf("unknown platform %q", raw)
	}
	return platform, nil
}
