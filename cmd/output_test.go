package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/orchestrator"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &orchestrator.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Platforms: []orchestrator.PlatformReport{
			{
				Platform:    scope.PlatformBugcrowd,
				FirstSync:   true,
				Processed:   3,
				NewPrograms: 3,
				Added:       types.ScopeStats{scope.AssetTypeWeb: 4},
			},
			{
				Platform: scope.PlatformHackerOne,
				Err:      &orchestrator.AccessError{Platform: scope.PlatformHackerOne},
				Added:    types.ScopeStats{},
			},
			{
				Platform:      scope.PlatformIntigriti,
				Processed:     1,
				Added:         types.ScopeStats{},
				ProgramErrors: multierror.Append(nil, errors.New("intigriti/acme: boom")),
			},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "Bugcrowd: first sync, notifications suppressed")
	assert.Contains(t, out, "HackerOne: access check failed")
	assert.Contains(t, out, "intigriti/acme: boom")
}

func TestPrintReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &orchestrator.RunReport{RunID: "run-2"})
	assert.Contains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "No platforms synced")
}

func TestFormatStats(t *testing.T) {
	assert.Equal(t, "-", formatStats(nil))
	assert.Equal(t, "mobile:1 web:3", formatStats(types.ScopeStats{
		scope.AssetTypeWeb:    3,
		scope.AssetTypeMobile: 1,
	}))
}

func TestWriteStructured(t *testing.T) {
	row := newProgramRow(types.Program{
		Platform:    scope.PlatformHackerOne,
		Slug:        "acme",
		Name:        "Acme",
		Bounty:      true,
		LastUpdated: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}, []types.Scope{
		{Value: "api.acme.com", Type: scope.AssetTypeWeb, IsInScope: true},
	})

	tests := []struct {
		format string
		want   []string
	}{
		{formatJSON, []string{`"slug": "acme"`, `"in_scope": true`, `"web": 1`}},
		{formatYAML, []string{"slug: acme", "in_scope: true", "last_updated: 2024-05-01T00:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeStructured(&buf, tt.format, row))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	assert.Error(t, validFormat("csv"))
}
