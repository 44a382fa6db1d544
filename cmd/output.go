package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (table, json, yaml)", format)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func colorStatus(status string) string {
	switch status {
	case orchestrator.StatusOK:
		return color.New(color.FgGreen).Sprint("✓ " + status)
	case orchestrator.StatusPartial:
		return color.New(color.FgYellow).Sprint("⚠ " + status)
	case orchestrator.StatusFailed:
		return color.New(color.FgRed).Sprint("✗ " + status)
	default:
		return color.New(color.FgWhite).Sprint("- " + status)
	}
}

func printReport(w io.Writer, report *orchestrator.RunReport) {
	fmt.Fprintf(w, "Sync %s  %s  (%s)\n", report.RunID, colorStatus(report.Status()), report.Duration().Round(time.Millisecond))
	if len(report.Platforms) == 0 {
		fmt.Fprintln(w, "No platforms synced. Enable one under platforms.<name> in the config.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tSTATUS\tPROGRAMS\tNEW\tREMOVED\tSCOPES +\tSCOPES -\tIGNORED\tDURATION")
	for _, pr := range report.Platforms {
		status := orchestrator.StatusOK
		switch {
		case pr.Failed():
			status = orchestrator.StatusFailed
		case pr.Failures() > 0:
			status = orchestrator.StatusPartial
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			pr.Platform.DisplayName(),
			colorStatus(status),
			pr.Processed,
			pr.NewPrograms,
			len(pr.RemovedPrograms),
			pr.Added.Total(),
			pr.Removed,
			pr.Ignored,
			pr.Duration.Round(time.Millisecond),
		)
	}
	tw.Flush()

	for _, pr := range report.Platforms {
		if pr.FirstSync && !pr.Failed() {
			fmt.Fprintf(w, "%s: first sync, notifications suppressed\n", pr.Platform.DisplayName())
		}
		if pr.Err != nil {
			color.New(color.FgRed).Fprintf(w, "%v\n", pr.Err)
		}
		if pr.ProgramErrors != nil {
			for _, err := range pr.ProgramErrors.Errors {
				color.New(color.FgYellow).Fprintf(w, "  %v\n", err)
			}
		}
	}
}

// programRow is the flattened listing form of a program.
type programRow struct {
	Platform    string           `json:"platform" yaml:"platform"`
	Slug        string           `json:"slug" yaml:"slug"`
	Name        string           `json:"name" yaml:"name"`
	Bounty      bool             `json:"bounty" yaml:"bounty"`
	LastUpdated time.Time        `json:"last_updated" yaml:"last_updated"`
	Scopes      []scopeRow       `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Stats       types.ScopeStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

type scopeRow struct {
	Value     string `json:"value" yaml:"value"`
	Type      string `json:"type" yaml:"type"`
	IsInScope bool   `json:"in_scope" yaml:"in_scope"`
}

func newProgramRow(p types.Program, scopes []types.Scope) programRow {
	row := programRow{
		Platform:    string(p.Platform),
		Slug:        p.Slug,
		Name:        p.Name,
		Bounty:      p.Bounty,
		LastUpdated: p.LastUpdated,
	}
	if scopes != nil {
		row.Stats = types.ScopeStats{}
		for _, s := range scopes {
			row.Scopes = append(row.Scopes, scopeRow{Value: s.Value, Type: string(s.Type), IsInScope: s.IsInScope})
			row.Stats[s.Type]++
		}
	}
	return row
}

func printProgramTable(w io.Writer, rows []programRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tSLUG\tNAME\tBOUNTY\tSCOPES\tLAST UPDATED")
	for _, r := range rows {
		bounty := "no"
		if r.Bounty {
			bounty = color.New(color.FgGreen).Sprint("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Platform, r.Slug, r.Name, bounty, formatStats(r.Stats), r.LastUpdated.Format(time.RFC3339))
	}
	tw.Flush()
}

func printScopeTable(w io.Writer, scopes []scopeRow) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tTYPE\tCATEGORY")
	for _, s := range scopes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Value, s.Type, scope.Category(s.IsInScope))
	}
	tw.Flush()
}

// formatStats renders counts as "web:3 mobile:1", sorted by type.
func formatStats(stats types.ScopeStats) string {
	if len(stats) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(stats))
	for t, n := range stats {
		parts = append(parts, fmt.Sprintf("%s:%d", t, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func printHistoryTable(w io.Writer, events []types.HistoryEvent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPLATFORM\tPROGRAM\tEVENT\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.PlatformName, e.ProgramName, colorEvent(e.EventType), e.Details)
	}
	tw.Flush()
}

func colorEvent(t types.EventType) string {
	switch t {
	case types.EventAddProgram, types.EventAddScope:
		return color.New(color.FgGreen).Sprint(t)
	case types.EventRemoveProgram, types.EventRemoveScope:
		return color.New(color.FgRed).Sprint(t)
	default:
		return color.New(color.FgYellow).Sprint(t)
	}
}

func printIgnoredTable(w io.Writer, assets []types.IgnoredAsset) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tPROGRAM\tVALUE\tREASON\tSEEN")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Platform, a.ProgramSlug, a.Value, a.Reason, a.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
