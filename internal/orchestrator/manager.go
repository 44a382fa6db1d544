// Package orchestrator runs the sync pipeline across every configured
// platform and isolates their failures from each other.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/diff"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

// Manager owns one sync run per call to Run. It holds no state between runs.
type Manager struct {
	cfg      *config.Config
	store    core.Store
	clients  []core.PlatformClient
	engine   *diff.Engine
	notifier core.Notifier
	metrics  *telemetry.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewManager wires a manager. metrics may be nil.
func NewManager(cfg *config.Config, store core.Store, clients []core.PlatformClient, notifier core.Notifier, metrics *telemetry.Metrics, log *logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		clients:  clients,
		engine:   diff.NewEngine(store, notifier, log),
		notifier: notifier,
		metrics:  metrics,
		log:      log.WithComponent("orchestrator"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run syncs every platform, or only the one matching platformFilter. Platforms
// run concurrently and Run returns once all of them finished. The returned
// error aggregates platform and program failures; the report is always
// complete.
func (m *Manager) Run(ctx context.Context, platformFilter *string) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: m.now(),
	}
	log := m.log.WithRunID(report.RunID)

	targets := m.targets(platformFilter)
	if len(targets) == 0 {
		filter := ""
		if platformFilter != nil {
			filter = *platformFilter
		}
		log.Infow("No platforms to sync", "filter", filter, "configured", len(m.clients))
		report.FinishedAt = m.now()
		return report, nil
	}

	ctx, span := log.StartOperation(ctx, "orchestrator.Run", "platforms", len(targets))

	cutoff := m.now().Add(-m.cfg.Sync.HistoryRetention)
	pruned, err := m.store.PruneHistory(ctx, cutoff)
	if err != nil {
		log.LogError(ctx, err, "orchestrator.PruneHistory", "cutoff", cutoff)
	} else {
		report.Pruned = pruned
		if pruned > 0 {
			log.Infow("Pruned history", "rows", pruned, "cutoff", cutoff)
		}
	}

	// Each task writes only its own slot; platform tasks never return an
	// error to the group.
	report.Platforms = make([]PlatformReport, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			report.Platforms[i] = m.runPlatform(ctx, log, t.platform, t.client)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = m.now()
	runErr := report.Err()

	m.metrics.ObserveRun(report.Status(), report.Duration())
	// failures were logged where they happened
	log.FinishOperation(ctx, span, "orchestrator.Run", report.StartedAt, nil,
		"status", report.Status(),
	)
	log.Infow("Sync run finished",
		"status", report.Status(),
		"platforms", len(report.Platforms),
		"duration", report.Duration().String(),
	)

	return report, runErr
}

type target struct {
	platform scope.Platform
	client   core.PlatformClient
}

func (m *Manager) targets(platformFilter *string) []target {
	var out []target
	for _, c := range m.clients {
		if platformFilter != nil && scope.CanonicalName(*platformFilter) != scope.CanonicalName(c.Name()) {
			continue
		}
		platform, ok := scope.ParsePlatform(c.Name())
		if !ok {
			platform = scope.Platform(scope.CanonicalName(c.Name()))
		}
		out = append(out, target{platform: platform, client: c})
	}
	return out
}

func (m *Manager) runPlatform(ctx context.Context, runLog *logger.Logger, platform scope.Platform, client core.PlatformClient) (pr PlatformReport) {
	start := time.Now()
	pr = PlatformReport{Platform: platform, Added: types.ScopeStats{}}
	log := runLog.WithPlatform(string(platform))

	defer func() {
		if r := recover(); r != nil {
			log.LogPanic(ctx, r, "orchestrator.runPlatform")
			pr.Err = fmt.Errorf("%s: panic during sync: %v", platform.DisplayName(), r)
			m.fail(platform, core.NotifySyncError, "panic", pr.Err)
		}
		pr.Duration = time.Since(start)
	}()

	if !client.ValidAccess(ctx) {
		pr.Err = &AccessError{Platform: platform}
		log.LogError(ctx, pr.Err, "orchestrator.ValidAccess")
		m.fail(platform, core.NotifyAccessError, "access", pr.Err)
		return pr
	}

	count, err := m.store.CountPrograms(ctx, platform)
	if err != nil {
		pr.Err = fmt.Errorf("%s: count programs: %w", platform.DisplayName(), err)
		log.LogError(ctx, pr.Err, "orchestrator.CountPrograms")
		m.fail(platform, core.NotifySyncError, "store", pr.Err)
		return pr
	}
	pr.FirstSync = count == 0
	skipNotifications := pr.FirstSync
	if pr.FirstSync {
		log.Infow("First sync for platform, notifications suppressed")
	}

	programs, err := client.FetchPrograms(ctx)
	if err == nil && programs == nil {
		err = ErrNoData
	}
	if err != nil {
		pr.Err = &FetchError{Platform: platform, Err: err}
		log.LogError(ctx, pr.Err, "orchestrator.FetchPrograms")
		m.fail(platform, core.NotifySyncError, "fetch", pr.Err)
		return pr
	}
	pr.Fetched = len(programs)

	fetchedSlugs := make(map[string]struct{}, len(programs))
	for _, raw := range programs {
		if m.cfg.Excluded(platform, raw.Slug) {
			pr.Excluded++
			log.Debugw("Skipping excluded program", "program", raw.Slug)
			continue
		}
		fetchedSlugs[raw.Slug] = struct{}{}

		res, err := m.engine.ProcessProgram(ctx, platform, raw, skipNotifications)
		if err != nil {
			perr := &ProgramError{Platform: platform, Slug: raw.Slug, Err: err}
			pr.ProgramErrors = multierror.Append(pr.ProgramErrors, perr)
			log.WithProgram(raw.Slug).LogError(ctx, perr, "orchestrator.ProcessProgram")
			m.notifier.Notify(core.NotificationEvent{
				Kind:        core.NotifyProgramError,
				Platform:    platform,
				ProgramSlug: raw.Slug,
				ProgramName: raw.Name,
				Error:       err.Error(),
				OccurredAt:  m.now(),
			})
			m.metrics.RecordFailure(string(platform), "program")
			continue
		}

		pr.Processed++
		if res.NewProgram {
			pr.NewPrograms++
		}
		if res.Updated {
			pr.UpdatedPrograms++
		}
		for t, n := range res.Added {
			pr.Added[t] += n
		}
		pr.Removed += res.Removed
		pr.Ignored += res.Ignored
	}

	removed, err := m.engine.ProcessRemovedPrograms(ctx, platform, fetchedSlugs, skipNotifications)
	pr.RemovedPrograms = removed
	if err != nil {
		// failures are already per program; keep them alongside ProcessProgram's
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				pr.ProgramErrors = multierror.Append(pr.ProgramErrors, &ProgramError{Platform: platform, Err: e})
			}
		} else {
			pr.ProgramErrors = multierror.Append(pr.ProgramErrors, &ProgramError{Platform: platform, Err: err})
		}
		log.LogError(ctx, err, "orchestrator.ProcessRemovedPrograms")
		m.notifier.Notify(core.NotificationEvent{
			Kind:       core.NotifyProgramError,
			Platform:   platform,
			Error:      err.Error(),
			OccurredAt: m.now(),
		})
		m.metrics.RecordFailure(string(platform), "program")
	}

	m.metrics.RecordScopeChanges(string(platform), "added", pr.Added.Total())
	m.metrics.RecordScopeChanges(string(platform), "removed", pr.Removed)
	m.metrics.RecordScopeChanges(string(platform), "ignored", pr.Ignored)
	m.metrics.RecordPlatformSuccess(string(platform), pr.Processed, m.now())

	log.Infow("Platform sync finished",
		"first_sync", pr.FirstSync,
		"fetched", pr.Fetched,
		"excluded", pr.Excluded,
		"processed", pr.Processed,
		"new_programs", pr.NewPrograms,
		"removed_programs", len(pr.RemovedPrograms),
		"scopes_added", pr.Added.Total(),
		"scopes_removed", pr.Removed,
		"ignored", pr.Ignored,
		"program_errors", pr.Failures(),
	)
	return pr
}

// fail reports a platform level failure once.
func (m *Manager) fail(platform scope.Platform, kind core.NotificationKind, metricKind string, err error) {
	m.notifier.Notify(core.NotificationEvent{
		Kind:       kind,
		Platform:   platform,
		Error:      err.Error(),
		OccurredAt: m.now(),
	})
	m.metrics.RecordFailure(string(platform), metricKind)
}
