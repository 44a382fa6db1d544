// Package diff reconciles one fetched program against its persisted state.
package diff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

// Engine computes and applies scope deltas. It keeps no state between calls;
// every call recomputes from the store.
type Engine struct {
	store    core.Store
	notifier core.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// Result summarises one ProcessProgram call. Added counts new scopes by
// their final type.
type Result struct {
	NewProgram bool
	Updated    bool
	Added      types.ScopeStats
	Removed    int
	Ignored    int
}

func NewEngine(store core.Store, notifier core.Notifier, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		log:      log.WithComponent("diff"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type candidate struct {
	value     string
	typ       scope.AssetType
	isInScope bool
}

// ProcessProgram applies the fetched program to the store in a single
// transaction. Notifications are sent only once the transaction commits.
func (e *Engine) ProcessProgram(ctx context.Context, platform scope.Platform, raw scope.RawProgram, skipNotifications bool) (Result, error) {
	result := Result{Added: types.ScopeStats{}}
	var pending []core.NotificationEvent

	programName := raw.Name
	if programName == "" {
		programName = raw.Slug
	}

	err := e.store.WithTx(ctx, func(tx core.Tx) error {
		pending = pending[:0]
		result = Result{Added: types.ScopeStats{}}

		program, err := tx.GetProgram(ctx, platform, raw.Slug)
		switch {
		case errors.Is(err, core.ErrNotFound):
			program = &types.Program{
				Platform:    platform,
				Slug:        raw.Slug,
				Name:        programName,
				Bounty:      raw.Bounty,
				LastUpdated: e.now(),
			}
			if err := tx.InsertProgram(ctx, program); err != nil {
				return err
			}
			result.NewProgram = true
			if err := tx.AppendHistory(ctx, &types.HistoryEvent{
				ProgramID:    &program.ID,
				PlatformName: string(platform),
				ProgramName:  programName,
				EventType:    types.EventAddProgram,
				Details:      fmt.Sprintf("program %s added", raw.Slug),
				ExtraData:    &types.ExtraData{Slug: raw.Slug},
				CreatedAt:    e.now(),
			}); err != nil {
				return err
			}
		case err != nil:
			return err
		case program.Name != programName || program.Bounty != raw.Bounty:
			program.Name = programName
			program.Bounty = raw.Bounty
			program.LastUpdated = e.now()
			if err := tx.UpdateProgram(ctx, program); err != nil {
				return err
			}
			result.Updated = true
		}

		candidates, ignored, err := e.collectCandidates(ctx, tx, platform, program, raw)
		if err != nil {
			return err
		}
		result.Ignored = len(ignored)
		pending = append(pending, ignored...)

		persisted, err := tx.ListScopes(ctx, program.ID)
		if err != nil {
			return err
		}
		persistedValues := make(map[string]struct{}, len(persisted))
		for _, s := range persisted {
			persistedValues[s.Value] = struct{}{}
		}
		candidateValues := make(map[string]struct{}, len(candidates))
		for _, c := range candidates {
			candidateValues[c.value] = struct{}{}
		}

		for _, c := range candidates {
			if _, ok := persistedValues[c.value]; ok {
				continue
			}
			if err := tx.InsertScope(ctx, &types.Scope{
				ProgramID: program.ID,
				Value:     c.value,
				Type:      c.typ,
				IsInScope: c.isInScope,
				CreatedAt: e.now(),
			}); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, scopeEvent(program, platform, types.EventAddScope, c.value, c.typ, c.isInScope, e.now())); err != nil {
				return err
			}
			result.Added[c.typ]++
			e.log.LogScopeChange(ctx, "add", string(platform), program.Slug, c.value, string(c.typ))

			// a new program is announced once, with counts, instead of per scope
			if !skipNotifications && !result.NewProgram {
				pending = append(pending, core.NotificationEvent{
					Kind:        core.NotifyNewScope,
					Platform:    platform,
					ProgramSlug: program.Slug,
					ProgramName: program.Name,
					Value:       c.value,
					ScopeType:   c.typ,
					InScope:     c.isInScope,
				})
			}
		}

		for _, s := range persisted {
			if _, ok := candidateValues[s.Value]; ok {
				continue
			}
			if err := tx.DeleteScope(ctx, program.ID, s.Value); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, scopeEvent(program, platform, types.EventRemoveScope, s.Value, s.Type, s.IsInScope, e.now())); err != nil {
				return err
			}
			result.Removed++
			e.log.LogScopeChange(ctx, "remove", string(platform), program.Slug, s.Value, string(s.Type))

			if !skipNotifications {
				pending = append(pending, core.NotificationEvent{
					Kind:        core.NotifyRemovedScope,
					Platform:    platform,
					ProgramSlug: program.Slug,
					ProgramName: program.Name,
					Value:       s.Value,
					ScopeType:   s.Type,
					InScope:     s.IsInScope,
				})
			}
		}

		if result.NewProgram && !skipNotifications {
			counts := types.ScopeStats{}
			for t, n := range result.Added {
				counts[t] = n
			}
			pending = append([]core.NotificationEvent{{
				Kind:        core.NotifyNewProgram,
				Platform:    platform,
				ProgramSlug: program.Slug,
				ProgramName: program.Name,
				ScopeCounts: counts,
			}}, pending...)
		}

		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("process program %s/%s: %w", platform, raw.Slug, err)
	}

	e.dispatch(pending)
	return result, nil
}

// collectCandidates runs every raw scope through normalize, classify and
// validate. Rejected values are recorded as ignored assets the first time
// they are seen; their notifications are returned for dispatch after commit.
func (e *Engine) collectCandidates(ctx context.Context, tx core.Tx, platform scope.Platform, program *types.Program, raw scope.RawProgram) ([]candidate, []core.NotificationEvent, error) {
	var (
		candidates []candidate
		ignored    []core.NotificationEvent
		seen       = map[string]struct{}{}
	)

	for _, rs := range raw.Scopes {
		for _, value := range scope.Normalize(platform, rs.Value) {
			typ := scope.ClassifyOverride(value, rs.Type)

			if reason := scope.RejectionReason(value, typ); reason != "" {
				event, err := e.recordIgnored(ctx, tx, platform, program, value, typ, rs.IsInScope, reason)
				if err != nil {
					return nil, nil, err
				}
				if event != nil {
					ignored = append(ignored, *event)
				}
				continue
			}

			if typ == scope.AssetTypeAPI {
				typ = scope.AssetTypeWeb
			}
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			candidates = append(candidates, candidate{value: value, typ: typ, isInScope: rs.IsInScope})
		}
	}

	return candidates, ignored, nil
}

func (e *Engine) recordIgnored(ctx context.Context, tx core.Tx, platform scope.Platform, program *types.Program, value string, typ scope.AssetType, inScope bool, reason string) (*core.NotificationEvent, error) {
	exists, err := tx.IgnoredExists(ctx, platform, program.Slug, value)
	if err != nil || exists {
		return nil, err
	}

	if err := tx.InsertIgnored(ctx, &types.IgnoredAsset{
		Platform:    platform,
		ProgramSlug: program.Slug,
		Value:       value,
		Reason:      reason,
		CreatedAt:   e.now(),
	}); err != nil {
		return nil, err
	}

	event := scopeEvent(program, platform, types.EventAssetIgnored, value, typ, inScope, e.now())
	event.Details = fmt.Sprintf("%s ignored: %s", value, reason)
	event.ExtraData = &types.ExtraData{Slug: program.Slug, Reason: reason}
	if err := tx.AppendHistory(ctx, event); err != nil {
		return nil, err
	}
	e.log.LogScopeChange(ctx, "ignore", string(platform), program.Slug, value, string(typ))

	return &core.NotificationEvent{
		Kind:        core.NotifyIgnoredAsset,
		Platform:    platform,
		ProgramSlug: program.Slug,
		ProgramName: program.Name,
		Value:       value,
		ScopeType:   typ,
		InScope:     inScope,
		Reason:      reason,
	}, nil
}

// ProcessRemovedPrograms deletes every persisted program of platform that is
// missing from fetchedSlugs, after snapshotting its scopes into history. Each
// program is removed in its own transaction; failures are collected and the
// remaining programs are still processed. It returns the removed slugs.
func (e *Engine) ProcessRemovedPrograms(ctx context.Context, platform scope.Platform, fetchedSlugs map[string]struct{}, skipNotifications bool) ([]string, error) {
	programs, err := e.store.ListPrograms(ctx, core.ProgramFilter{Platform: platform})
	if err != nil {
		return nil, fmt.Errorf("list %s programs: %w", platform, err)
	}

	var (
		removed []string
		errs    *multierror.Error
	)
	for i := range programs {
		program := programs[i]
		if _, ok := fetchedSlugs[program.Slug]; ok {
			continue
		}

		if err := e.removeProgram(ctx, platform, &program); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove program %s/%s: %w", platform, program.Slug, err))
			continue
		}
		removed = append(removed, program.Slug)

		if !skipNotifications {
			e.dispatch([]core.NotificationEvent{{
				Kind:        core.NotifyRemovedProgram,
				Platform:    platform,
				ProgramSlug: program.Slug,
				ProgramName: program.Name,
			}})
		}
	}

	return removed, errs.ErrorOrNil()
}

func (e *Engine) removeProgram(ctx context.Context, platform scope.Platform, program *types.Program) error {
	return e.store.WithTx(ctx, func(tx core.Tx) error {
		scopes, err := tx.ListScopes(ctx, program.ID)
		if err != nil {
			return err
		}

		if err := tx.AppendHistory(ctx, &types.HistoryEvent{
			ProgramID:    &program.ID,
			PlatformName: string(platform),
			ProgramName:  program.Name,
			EventType:    types.EventRemoveProgram,
			Details:      fmt.Sprintf("program %s removed with %d scopes", program.Slug, len(scopes)),
			ExtraData: &types.ExtraData{
				Slug:   program.Slug,
				Scopes: types.NewScopeSnapshot(scopes),
			},
			CreatedAt: e.now(),
		}); err != nil {
			return err
		}

		e.log.WithProgram(program.Slug).Infow("Removing program",
			"platform", platform,
			"scopes", len(scopes),
		)
		return tx.DeleteProgram(ctx, program.ID)
	})
}

func (e *Engine) dispatch(events []core.NotificationEvent) {
	now := e.now()
	for _, event := range events {
		event.OccurredAt = now
		e.notifier.Notify(event)
	}
}

func scopeEvent(program *types.Program, platform scope.Platform, eventType types.EventType, value string, typ scope.AssetType, inScope bool, at time.Time) *types.HistoryEvent {
	verb := map[types.EventType]string{
		types.EventAddScope:    "added",
		types.EventRemoveScope: "removed",
	}[eventType]

	return &types.HistoryEvent{
		ProgramID:    &program.ID,
		PlatformName: string(platform),
		ProgramName:  program.Name,
		EventType:    eventType,
		Details:      fmt.Sprintf("%s %s", value, verb),
		ScopeType:    types.StringPtr(string(typ)),
		Category:     types.StringPtr(scope.Category(inScope)),
		CreatedAt:    at,
	}
}
