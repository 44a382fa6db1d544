package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

// ErrNotFound is returned when a natural key lookup has no row.
var ErrNotFound = core.ErrNotFound

const (
	programColumns = "id, platform, slug, name, bounty, last_updated"
	scopeColumns   = "id, program_id, value, type, is_in_scope, created_at"
	ignoredColumns = "id, platform, program_slug, value, reason, created_at"
	historyColumns = "id, program_id, platform_name, program_name, event_type, details, scope_type, category, extra_data, created_at"
)

// Store persists programs, scopes, ignored assets and history on sqlite3 or
// postgres.
type Store struct {
	db      *sqlx.DB
	cfg     config.DatabaseConfig
	logger  *logger.Logger
	builder sq.StatementBuilderType
}

var _ core.Store = (*Store)(nil)

func NewStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (s *Store, err error) {
	log = log.WithComponent("database")

	start := time.Now()
	ctx, span := log.StartOperation(ctx, "database.NewStore",
		"driver", cfg.Driver,
		"dsn_masked", maskDSN(cfg.DSN),
	)
	defer func() {
		log.FinishOperation(ctx, span, "database.NewStore", start, err)
	}()

	dsn := cfg.DSN
	if cfg.Driver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if cfg.Driver == "sqlite3" {
		// One writer at a time; concurrent platform syncs queue on the
		// connection instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	s = &Store{
		db:      db,
		cfg:     cfg,
		logger:  log,
		builder: builder,
	}

	if err := s.Migrations().RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.WithContext(ctx).Infow("Database store initialized",
		"driver", cfg.Driver,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return s, nil
}

// sqliteDSN adds a busy timeout and WAL journaling unless the caller set them.
func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if !strings.Contains(dsn, "_journal_mode") && !strings.Contains(dsn, ":memory:") {
		params = append(params, "_journal_mode=WAL")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// maskDSN hides credentials in DSNs before they reach the logs.
func maskDSN(dsn string) string {
	if len(dsn) > 10 {
		return dsn[:5] + "***" + dsn[len(dsn)-5:]
	}
	return "***"
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Migrations() *MigrationRunner {
	return NewMigrationRunner(s.db, s.logger)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn in a single transaction. fn's error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnw("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetProgram(ctx context.Context, platform scope.Platform, slug string) (*types.Program, error) {
	return getProgram(ctx, s.db, platform, slug)
}

func (s *Store) ListPrograms(ctx context.Context, filter core.ProgramFilter) ([]types.Program, error) {
	q := s.builder.Select(programColumns).From("programs").OrderBy("platform", "slug")
	if filter.Platform != "" {
		q = q.Where(sq.Eq{"platform": string(filter.Platform)})
	}
	q = paginate(q, filter.Limit, filter.Offset)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build programs query: %w", err)
	}

	programs := []types.Program{}
	if err := s.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return programs, nil
}

func (s *Store) CountPrograms(ctx context.Context, platform scope.Platform) (int, error) {
	query, args, err := s.builder.Select("COUNT(*)").From("programs").
		Where(sq.Eq{"platform": string(platform)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count programs: %w", err)
	}
	return count, nil
}

func (s *Store) ListScopes(ctx context.Context, programID int64) ([]types.Scope, error) {
	return listScopes(ctx, s.db, programID)
}

func (s *Store) ListIgnored(ctx context.Context, platform scope.Platform) ([]types.IgnoredAsset, error) {
	q := s.builder.Select(ignoredColumns).From("ignored_assets").OrderBy("created_at DESC", "id DESC")
	if platform != "" {
		q = q.Where(sq.Eq{"platform": string(platform)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ignored query: %w", err)
	}

	assets := []types.IgnoredAsset{}
	if err := s.db.SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ignored assets: %w", err)
	}
	return assets, nil
}

// ListHistory returns events newest first.
func (s *Store) ListHistory(ctx context.Context, filter core.HistoryFilter) ([]types.HistoryEvent, error) {
	q := s.builder.Select(historyColumns).From("history_events").OrderBy("created_at DESC", "id DESC")
	if filter.Platform != "" {
		q = q.Where(sq.Eq{"platform_name": string(filter.Platform)})
	}
	if filter.EventType != "" {
		q = q.Where(sq.Eq{"event_type": string(filter.EventType)})
	}
	if filter.Since != nil {
		q = q.Where(sq.GtOrEq{"created_at": filter.Since.UTC()})
	}
	q = paginate(q, filter.Limit, filter.Offset)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	events := []types.HistoryEvent{}
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return events, nil
}

// PruneHistory deletes history events created before olderThan.
func (s *Store) PruneHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	query, args, err := s.builder.Delete("history_events").
		Where(sq.Lt{"created_at": olderThan.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build prune query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}

	s.logger.LogDatabaseOperation(ctx, "prune", "history_events", n, time.Since(start),
		"older_than", olderThan,
	)
	return n, nil
}

func paginate(q sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getProgram(ctx context.Context, q queryer, platform scope.Platform, slug string) (*types.Program, error) {
	var program types.Program
	query := q.Rebind("SELECT " + programColumns + " FROM programs WHERE platform = ? AND slug = ?")
	if err := q.GetContext(ctx, &program, query, string(platform), slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get program %s/%s: %w", platform, slug, err)
	}
	return &program, nil
}

func listScopes(ctx context.Context, q queryer, programID int64) ([]types.Scope, error) {
	scopes := []types.Scope{}
	query := q.Rebind("SELECT " + scopeColumns + " FROM scopes WHERE program_id = ? ORDER BY id")
	if err := q.SelectContext(ctx, &scopes, query, programID); err != nil {
		return nil, fmt.Errorf("failed to list scopes for program %d: %w", programID, err)
	}
	return scopes, nil
}
