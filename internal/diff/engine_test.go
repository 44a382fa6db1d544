package diff

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/database"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/notify"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

func setup(t *testing.T) (*Engine, *database.Store, *notify.Recorder) {
	t.Helper()
	store, err := database.NewStore(context.Background(), config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    ":memory:",
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := notify.NewRecorder()
	return NewEngine(store, rec, logger.NewNop()), store, rec
}

func webProgram(slug string, values ...string) scope.RawProgram {
	p := scope.RawProgram{Slug: slug, Name: slug}
	for _, v := range values {
		p.Scopes = append(p.Scopes, scope.RawScope{Value: v, Type: scope.AssetTypeWeb, IsInScope: true})
	}
	return p
}

func scopeValues(t *testing.T, store *database.Store, platform scope.Platform, slug string) []string {
	t.Helper()
	ctx := context.Background()
	program, err := store.GetProgram(ctx, platform, slug)
	require.NoError(t, err)
	scopes, err := store.ListScopes(ctx, program.ID)
	require.NoError(t, err)
	values := make([]string, 0, len(scopes))
	for _, s := range scopes {
		values = append(values, s.Value)
	}
	sort.Strings(values)
	return values
}

func history(t *testing.T, store *database.Store, eventType types.EventType) []types.HistoryEvent {
	t.Helper()
	events, err := store.ListHistory(context.Background(), core.HistoryFilter{EventType: eventType})
	require.NoError(t, err)
	return events
}

func TestProcessProgramDiff(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	_, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("acme", "a.com", "b.com"), true)
	require.NoError(t, err)
	require.Empty(t, rec.Events())

	result, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("acme", "b.com", "c.com"), false)
	require.NoError(t, err)

	assert.False(t, result.NewProgram)
	assert.Equal(t, types.ScopeStats{scope.AssetTypeWeb: 1}, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{"b.com", "c.com"}, scopeValues(t, store, scope.PlatformHackerOne, "acme"))

	added := history(t, store, types.EventAddScope)
	removed := history(t, store, types.EventRemoveScope)
	assert.Len(t, added, 3, "two from the first sync plus c.com")
	require.Len(t, removed, 1)
	assert.Equal(t, "a.com removed", removed[0].Details)
	assert.Equal(t, "web", *removed[0].ScopeType)
	assert.Equal(t, "in", *removed[0].Category)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, core.NotifyNewScope, events[0].Kind)
	assert.Equal(t, "c.com", events[0].Value)
	assert.Equal(t, core.NotifyRemovedScope, events[1].Kind)
	assert.Equal(t, "a.com", events[1].Value)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestProcessProgramIsIdempotent(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	raw := webProgram("acme", "a.com", "*.b.com", "*.co.uk")
	_, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, raw, false)
	require.NoError(t, err)

	before := len(history(t, store, ""))
	rec.Reset()

	result, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, raw, false)
	require.NoError(t, err)

	assert.Zero(t, result.Added.Total())
	assert.Zero(t, result.Removed)
	assert.Zero(t, result.Ignored)
	assert.Empty(t, rec.Events())
	assert.Len(t, history(t, store, ""), before)
}

func TestNewProgramAnnouncedOnce(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	raw := scope.RawProgram{
		Slug: "acme",
		Name: "Acme",
		Scopes: []scope.RawScope{
			{Value: "*.acme.com", Type: scope.AssetTypeOther, IsInScope: true},
			{Value: "api.acme.com", Type: scope.AssetTypeAPI, IsInScope: true},
			{Value: "https://github.com/acme/app", Type: scope.AssetTypeOther, IsInScope: false},
			{Value: "10.0.0.0/8", Type: scope.AssetTypeWeb, IsInScope: false},
		},
	}
	result, err := engine.ProcessProgram(ctx, scope.PlatformIntigriti, raw, false)
	require.NoError(t, err)

	assert.True(t, result.NewProgram)
	want := types.ScopeStats{scope.AssetTypeWeb: 2, scope.AssetTypeSourceCode: 1, scope.AssetTypeCIDR: 1}
	assert.Equal(t, want, result.Added)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.NotifyNewProgram, events[0].Kind)
	assert.Equal(t, want, events[0].ScopeCounts)
	assert.Equal(t, "Acme", events[0].ProgramName)

	assert.Len(t, history(t, store, types.EventAddProgram), 1)
	assert.Len(t, history(t, store, types.EventAddScope), 4)

	program, err := store.GetProgram(ctx, scope.PlatformIntigriti, "acme")
	require.NoError(t, err)
	scopes, err := store.ListScopes(ctx, program.ID)
	require.NoError(t, err)
	for _, s := range scopes {
		assert.NotEqual(t, scope.AssetTypeAPI, s.Type, "api is folded into web before persistence")
	}
}

func TestFirstSyncIsSilent(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	programs := []scope.RawProgram{
		webProgram("one", "one.com", "www.one.com"),
		webProgram("two", "two.com"),
		webProgram("three", "three.com", "*.three.com", "api.three.com"),
	}
	for _, p := range programs {
		_, err := engine.ProcessProgram(ctx, scope.PlatformYesWeHack, p, true)
		require.NoError(t, err)
	}

	assert.Len(t, history(t, store, types.EventAddProgram), 3)
	assert.Len(t, history(t, store, types.EventAddScope), 6)
	assert.Empty(t, rec.Events())
}

func TestIgnoredAssetsReportedOnceEvenOnFirstSync(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	raw := webProgram("acme", "acme.com", "*.co.uk", "{{tenant}}.acme.com")
	result, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, raw, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Ignored)
	assert.Equal(t, []core.NotificationKind{core.NotifyIgnoredAsset, core.NotifyIgnoredAsset}, rec.Kinds())

	ignored, err := store.ListIgnored(ctx, scope.PlatformHackerOne)
	require.NoError(t, err)
	require.Len(t, ignored, 2)

	events := history(t, store, types.EventAssetIgnored)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].ExtraData)
	assert.NotEmpty(t, events[0].ExtraData.Reason)

	rec.Reset()
	result, err = engine.ProcessProgram(ctx, scope.PlatformHackerOne, raw, false)
	require.NoError(t, err)
	assert.Zero(t, result.Ignored)
	assert.Empty(t, rec.Events())
	assert.Equal(t, []string{"acme.com"}, scopeValues(t, store, scope.PlatformHackerOne, "acme"))
}

func TestMetadataChangeIsSilent(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	raw := webProgram("acme", "acme.com")
	_, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, raw, true)
	require.NoError(t, err)

	raw.Name = "Acme Corp"
	raw.Bounty = true
	result, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, raw, false)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Empty(t, rec.Events())

	program, err := store.GetProgram(ctx, scope.PlatformBugcrowd, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", program.Name)
	assert.True(t, program.Bounty)
}

func TestTypeChangeProducesNoEvent(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	_, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, webProgram("acme", "acme.com"), true)
	require.NoError(t, err)
	before := len(history(t, store, ""))

	raw := scope.RawProgram{Slug: "acme", Name: "acme", Scopes: []scope.RawScope{
		{Value: "acme.com", Type: scope.AssetTypeOther, IsInScope: true},
	}}
	result, err := engine.ProcessProgram(ctx, scope.PlatformBugcrowd, raw, false)
	require.NoError(t, err)

	assert.Zero(t, result.Added.Total())
	assert.Zero(t, result.Removed)
	assert.Empty(t, rec.Events())
	assert.Len(t, history(t, store, ""), before)
}

func TestDuplicateCandidatesKeepFirst(t *testing.T) {
	engine, store, _ := setup(t)
	ctx := context.Background()

	raw := scope.RawProgram{Slug: "acme", Scopes: []scope.RawScope{
		{Value: "a.com, b.com", Type: scope.AssetTypeWeb, IsInScope: true},
		{Value: "A.com", Type: scope.AssetTypeOther, IsInScope: false},
	}}
	result, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, raw, true)
	require.NoError(t, err)
	assert.Equal(t, types.ScopeStats{scope.AssetTypeWeb: 2}, result.Added)

	program, err := store.GetProgram(ctx, scope.PlatformHackerOne, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", program.Name, "slug stands in for a missing name")
	scopes, err := store.ListScopes(ctx, program.ID)
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.True(t, scopes[0].IsInScope)
}

func TestProcessRemovedProgramsSnapshotsScopes(t *testing.T) {
	engine, store, rec := setup(t)
	ctx := context.Background()

	_, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("gone", "x.com"), true)
	require.NoError(t, err)
	_, err = engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("kept", "k.com"), true)
	require.NoError(t, err)
	_, err = engine.ProcessProgram(ctx, scope.PlatformBugcrowd, webProgram("other", "o.com"), true)
	require.NoError(t, err)

	removed, err := engine.ProcessRemovedPrograms(ctx, scope.PlatformHackerOne, map[string]struct{}{"kept": {}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, removed)

	_, err = store.GetProgram(ctx, scope.PlatformHackerOne, "gone")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = store.GetProgram(ctx, scope.PlatformBugcrowd, "other")
	assert.NoError(t, err, "other platforms are never touched")

	events := history(t, store, types.EventRemoveProgram)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].ProgramID)
	require.NotNil(t, events[0].ExtraData)
	assert.Equal(t, "gone", events[0].ExtraData.Slug)
	assert.Equal(t, types.ScopeSnapshot{
		"in":  {scope.AssetTypeWeb: {"x.com"}},
		"out": {},
	}, events[0].ExtraData.Scopes)

	assert.Equal(t, []core.NotificationKind{core.NotifyRemovedProgram}, rec.Kinds())
}

func TestProcessRemovedProgramsSilentWhenSkipped(t *testing.T) {
	engine, _, rec := setup(t)
	ctx := context.Background()

	_, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("gone", "x.com"), true)
	require.NoError(t, err)

	removed, err := engine.ProcessRemovedPrograms(ctx, scope.PlatformHackerOne, map[string]struct{}{}, true)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.Empty(t, rec.Events())
}

// failingStore fails InsertScope for one value inside otherwise real
// transactions.
type failingStore struct {
	*database.Store
	failValue string
}

type failingTx struct {
	core.Tx
	failValue string
}

func (f *failingStore) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx core.Tx) error {
		return fn(&failingTx{Tx: tx, failValue: f.failValue})
	})
}

func (f *failingTx) InsertScope(ctx context.Context, s *types.Scope) error {
	if s.Value == f.failValue {
		return errors.New("disk full")
	}
	return f.Tx.InsertScope(ctx, s)
}

func TestFailedProgramRollsBackAndStaysQuiet(t *testing.T) {
	_, store, rec := setup(t)
	ctx := context.Background()
	engine := NewEngine(&failingStore{Store: store, failValue: "bad.com"}, rec, logger.NewNop())

	_, err := engine.ProcessProgram(ctx, scope.PlatformHackerOne, webProgram("acme", "ok.com", "bad.com", "*.co.uk"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = store.GetProgram(ctx, scope.PlatformHackerOne, "acme")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	ignored, err := store.ListIgnored(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ignored)
	assert.Empty(t, rec.Events())
}
