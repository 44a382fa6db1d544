package orchestrator

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RunReport summarises one sync run.
type RunReport struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Pruned     int64            `json:"pruned_history"`
	Platforms  []PlatformReport `json:"platforms"`
}

// PlatformReport is the outcome of one platform task. Err holds an
// AccessError, a FetchError or a recovered panic; ProgramErrors holds the
// per-program failures that did not stop the platform.
type PlatformReport struct {
	Platform        scope.Platform    `json:"platform"`
	FirstSync       bool              `json:"first_sync"`
	Fetched         int               `json:"fetched"`
	Excluded        int               `json:"excluded"`
	Processed       int               `json:"processed"`
	NewPrograms     int               `json:"new_programs"`
	UpdatedPrograms int               `json:"updated_programs"`
	RemovedPrograms []string          `json:"removed_programs,omitempty"`
	Added           types.ScopeStats  `json:"added"`
	Removed         int               `json:"removed"`
	Ignored         int               `json:"ignored"`
	Duration        time.Duration     `json:"duration"`
	Err             error             `json:"-"`
	ProgramErrors   *multierror.Error `json:"-"`
}

// Failed reports whether the platform task stopped before diffing.
func (p *PlatformReport) Failed() bool {
	return p.Err != nil
}

// Failures counts program level errors.
func (p *PlatformReport) Failures() int {
	if p.ProgramErrors == nil {
		return 0
	}
	return len(p.ProgramErrors.Errors)
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is "skipped" when no platform ran, "failed" when every platform
// failed, "partial" when anything failed and "ok" otherwise.
func (r *RunReport) Status() string {
	if len(r.Platforms) == 0 {
		return StatusSkipped
	}
	failed, degraded := 0, 0
	for i := range r.Platforms {
		p := &r.Platforms[i]
		switch {
		case p.Failed():
			failed++
		case p.Failures() > 0:
			degraded++
		}
	}
	switch {
	case failed == len(r.Platforms):
		return StatusFailed
	case failed > 0 || degraded > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}

// Err aggregates every platform and program failure of the run.
func (r *RunReport) Err() error {
	var errs *multierror.Error
	for i := range r.Platforms {
		p := &r.Platforms[i]
		if p.Err != nil {
			errs = multierror.Append(errs, p.Err)
		}
		if p.ProgramErrors != nil {
			errs = multierror.Append(errs, p.ProgramErrors.Errors...)
		}
	}
	return errs.ErrorOrNil()
}

// Platform returns the report for platform, or nil.
func (r *RunReport) Platform(platform scope.Platform) *PlatformReport {
	for i := range r.Platforms {
		if r.Platforms[i].Platform == platform {
			return &r.Platforms[i]
		}
	}
	return nil
}
