package core

import (
	"context"
	"errors"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

// ErrNotFound is returned by lookups on a natural key that has no row.
var ErrNotFound = errors.New("not found")

// PlatformClient fetches programs from one bug bounty platform.
type PlatformClient interface {
	Name() string
	ValidAccess(ctx context.Context) bool
	FetchPrograms(ctx context.Context) ([]scope.RawProgram, error)
}

// Store is the persistence boundary. Mutations that belong to a single
// program go through a Tx obtained from WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetProgram(ctx context.Context, platform scope.Platform, slug string) (*types.Program, error)
	ListPrograms(ctx context.Context, filter ProgramFilter) ([]types.Program, error)
	CountPrograms(ctx context.Context, platform scope.Platform) (int, error)
	ListScopes(ctx context.Context, programID int64) ([]types.Scope, error)
	ListIgnored(ctx context.Context, platform scope.Platform) ([]types.IgnoredAsset, error)
	ListHistory(ctx context.Context, filter HistoryFilter) ([]types.HistoryEvent, error)
	PruneHistory(ctx context.Context, olderThan time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the write operations used by the diff engine. All calls made
// through one Tx commit or roll back together.
type Tx interface {
	GetProgram(ctx context.Context, platform scope.Platform, slug string) (*types.Program, error)
	InsertProgram(ctx context.Context, program *types.Program) error
	UpdateProgram(ctx context.Context, program *types.Program) error
	DeleteProgram(ctx context.Context, programID int64) error

	ListScopes(ctx context.Context, programID int64) ([]types.Scope, error)
	InsertScope(ctx context.Context, s *types.Scope) error
	DeleteScope(ctx context.Context, programID int64, value string) error

	IgnoredExists(ctx context.Context, platform scope.Platform, slug, value string) (bool, error)
	InsertIgnored(ctx context.Context, asset *types.IgnoredAsset) error

	AppendHistory(ctx context.Context, event *types.HistoryEvent) error
}

type ProgramFilter struct {
	Platform scope.Platform
	Limit    int
	Offset   int
}

type HistoryFilter struct {
	Platform  scope.Platform
	EventType types.EventType
	Since     *time.Time
	Limit     int
	Offset    int
}

// Notifier delivers change notifications. Notify must not block on delivery.
type Notifier interface {
	Notify(event NotificationEvent)
	Close() error
}

type NotificationKind string

const (
	NotifyNewProgram     NotificationKind = "new_program"
	NotifyRemovedProgram NotificationKind = "removed_program"
	NotifyNewScope       NotificationKind = "new_scope"
	NotifyRemovedScope   NotificationKind = "removed_scope"
	NotifyIgnoredAsset   NotificationKind = "ignored_asset"
	NotifyAccessError    NotificationKind = "access_error"
	NotifySyncError      NotificationKind = "sync_error"
	NotifyProgramError   NotificationKind = "program_error"
)

// NotificationEvent carries everything a transport needs to render a message.
// Fields that do not apply to a kind are left empty.
type NotificationEvent struct {
	Kind        NotificationKind
	Platform    scope.Platform
	ProgramSlug string
	ProgramName string
	Value       string
	ScopeType   scope.AssetType
	InScope     bool
	Reason      string
	ScopeCounts types.ScopeStats
	Error       string
	OccurredAt  time.Time
}
