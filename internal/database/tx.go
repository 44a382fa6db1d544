package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

type sqlTx struct {
	tx *sqlx.Tx
}

var _ core.Tx = (*sqlTx)(nil)

func (t *sqlTx) GetProgram(ctx context.Context, platform scope.Platform, slug string) (*types.Program, error) {
	return getProgram(ctx, t.tx, platform, slug)
}

func (t *sqlTx) InsertProgram(ctx context.Context, program *types.Program) error {
	if program.LastUpdated.IsZero() {
		program.LastUpdated = time.Now().UTC()
	}
	query := t.tx.Rebind(`
		INSERT INTO programs (platform, slug, name, bounty, last_updated)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := t.tx.QueryRowxContext(ctx, query,
		string(program.Platform), program.Slug, program.Name, program.Bounty, program.LastUpdated,
	).Scan(&program.ID)
	if err != nil {
		return fmt.Errorf("failed to insert program %s/%s: %w", program.Platform, program.Slug, err)
	}
	return nil
}

func (t *sqlTx) UpdateProgram(ctx context.Context, program *types.Program) error {
	query := t.tx.Rebind("UPDATE programs SET name = ?, bounty = ?, last_updated = ? WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, query, program.Name, program.Bounty, program.LastUpdated, program.ID); err != nil {
		return fmt.Errorf("failed to update program %d: %w", program.ID, err)
	}
	return nil
}

// DeleteProgram removes the program row; its scopes go with it and history
// rows keep a NULL program_id.
func (t *sqlTx) DeleteProgram(ctx context.Context, programID int64) error {
	query := t.tx.Rebind("DELETE FROM programs WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, query, programID); err != nil {
		return fmt.Errorf("failed to delete program %d: %w", programID, err)
	}
	return nil
}

func (t *sqlTx) ListScopes(ctx context.Context, programID int64) ([]types.Scope, error) {
	return listScopes(ctx, t.tx, programID)
}

func (t *sqlTx) InsertScope(ctx context.Context, s *types.Scope) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	query := t.tx.Rebind(`
		INSERT INTO scopes (program_id, value, type, is_in_scope, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := t.tx.QueryRowxContext(ctx, query,
		s.ProgramID, s.Value, string(s.Type), s.IsInScope, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert scope %q: %w", s.Value, err)
	}
	return nil
}

func (t *sqlTx) DeleteScope(ctx context.Context, programID int64, value string) error {
	query := t.tx.Rebind("DELETE FROM scopes WHERE program_id = ? AND value = ?")
	if _, err := t.tx.ExecContext(ctx, query, programID, value); err != nil {
		return fmt.Errorf("failed to delete scope %q: %w", value, err)
	}
	return nil
}

func (t *sqlTx) IgnoredExists(ctx context.Context, platform scope.Platform, slug, value string) (bool, error) {
	var count int
	query := t.tx.Rebind("SELECT COUNT(*) FROM ignored_assets WHERE platform = ? AND program_slug = ? AND value = ?")
	if err := t.tx.GetContext(ctx, &count, query, string(platform), slug, value); err != nil {
		return false, fmt.Errorf("failed to look up ignored asset %q: %w", value, err)
	}
	return count > 0, nil
}

func (t *sqlTx) InsertIgnored(ctx context.Context, asset *types.IgnoredAsset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	query := t.tx.Rebind(`
		INSERT INTO ignored_assets (platform, program_slug, value, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := t.tx.QueryRowxContext(ctx, query,
		string(asset.Platform), asset.ProgramSlug, asset.Value, asset.Reason, asset.CreatedAt,
	).Scan(&asset.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ignored asset %q: %w", asset.Value, err)
	}
	return nil
}

func (t *sqlTx) AppendHistory(ctx context.Context, event *types.HistoryEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := t.tx.Rebind(`
		INSERT INTO history_events
			(program_id, platform_name, program_name, event_type, details, scope_type, category, extra_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := t.tx.QueryRowxContext(ctx, query,
		event.ProgramID, event.PlatformName, event.ProgramName, string(event.EventType),
		event.Details, event.ScopeType, event.Category, event.ExtraData, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to append %s history event: %w", event.EventType, err)
	}
	return nil
}
