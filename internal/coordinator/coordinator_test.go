package coordinator

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/auth"
	"github.com/robalobadob/phanda-client/internal/catalog"
	"github.com/robalobadob/phanda-client/internal/game"
	"github.com/robalobadob/phanda-client/internal/progress"
	"github.com/robalobadob/phanda-client/internal/store"
)

var errOffline = errors.New("connection refused")

// fakeRemote is a scripted API. When err is set every call fails with it.
type fakeRemote struct {
	mu         sync.Mutex
	err        error
	profileErr error
	calls      []string

	languages []api.Language
	levels    []api.Level
	records   []api.Progress
	completed api.Progress
	user      api.User
	remaining int
	total     int
}

func (f *fakeRemote) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeRemote) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.calls, name)
}

func (f *fakeRemote) Languages(context.Context) ([]api.Language, error) {
	return f.languages, f.record("languages")
}

func (f *fakeRemote) Levels(context.Context, string) ([]api.Level, error) {
	return f.levels, f.record("levels")
}

func (f *fakeRemote) AllProgress(context.Context) ([]api.Progress, error) {
	return f.records, f.record("all-progress")
}

func (f *fakeRemote) CompleteLevel(_ context.Context, req api.CompleteLevelRequest) (api.Progress, error) {
	return f.completed, f.record("complete-level")
}

func (f *fakeRemote) UseHint(context.Context) (api.HintResult, error) {
	return api.HintResult{GemsUsed: 20, RemainingGems: f.remaining}, f.record("use-hint")
}

func (f *fakeRemote) AddGems(_ context.Context, amount int) (api.GemsResult, error) {
	return api.GemsResult{TotalGems: f.total}, f.record("add-gems")
}

func (f *fakeRemote) Profile(context.Context) (api.User, error) {
	if err := f.record("profile"); err != nil {
		return api.User{}, err
	}
	return f.user, f.profileErr
}

type fakeSession struct {
	authed  bool
	user    *api.User
	patches []auth.UserPatch
}

func (s *fakeSession) IsAuthenticated() bool { return s.authed }
func (s *fakeSession) User() *api.User        { return s.user }
func (s *fakeSession) UpdateUser(_ context.Context, p auth.UserPatch) error {
	s.patches = append(s.patches, p)
	if s.user != nil {
		if p.TotalGems != nil {
			s.user.TotalGems = *p.TotalGems
		}
		if p.TotalHintsUsed != nil {
			s.user.TotalHintsUsed = *p.TotalHintsUsed
		}
	}
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func embedded(t *testing.T) *catalog.Catalog {
	t.Helper()
	p, err := catalog.Load("")
	require.NoError(t, err)
	return catalog.New(p)
}

func stored(t *testing.T, kv store.Store) progress.UserProgress {
	t.Helper()
	p, status, err := progress.Load(context.Background(), kv)
	require.NoError(t, err)
	require.Equal(t, progress.StatusLoaded, status)
	return p
}

func seed(t *testing.T, kv store.Store, p progress.UserProgress) {
	t.Helper()
	require.NoError(t, progress.Save(context.Background(), kv, p))
}

func newOffline(t *testing.T) (*Coordinator, store.Store, *recorder) {
	t.Helper()
	kv := store.NewMemoryStore()
	rec := &recorder{}
	return New(Options{Store: kv, Catalog: embedded(t), Observer: rec}), kv, rec
}

func newOnline(t *testing.T, remote *fakeRemote, sess *fakeSession) (*Coordinator, store.Store, *recorder) {
	t.Helper()
	kv := store.NewMemoryStore()
	rec := &recorder{}
	return New(Options{Store: kv, Remote: remote, Session: sess, Catalog: embedded(t), Observer: rec}), kv, rec
}

func TestOfflineCompleteLevel(t *testing.T) {
	ctx := context.Background()
	c, kv, rec := newOffline(t)

	assert.True(t, c.CompleteLevel(ctx, 1))
	snap := c.Snapshot()
	assert.Equal(t, 150, snap.Gems)
	assert.Equal(t, []int{1}, snap.Languages["english"].CompletedLevels)
	assert.Equal(t, snap, stored(t, kv), "written through")

	assert.False(t, c.CompleteLevel(ctx, 1))
	again := c.Snapshot()
	assert.Equal(t, snap, again, "second completion changes nothing")
	assert.Equal(t, []EventKind{ProgressChanged, ProgressChanged}, rec.kinds())
}

func TestUseHintGating(t *testing.T) {
	ctx := context.Background()
	for _, tt := range []struct {
		gems, want int
		ok         bool
	}{
		{15, 15, false},
		{25, 5, true},
	} {
		c, kv, _ := newOffline(t)
		p := progress.NewUser()
		p.Gems = tt.gems
		seed(t, kv, p)
		c.LoadProgress(ctx)

		assert.Equal(t, tt.ok, c.UseHint(ctx))
		snap := c.Snapshot()
		assert.Equal(t, tt.want, snap.Gems)
		if tt.ok {
			assert.Equal(t, 1, progress.CurrentLanguageProgress(snap).HintsUsed)
			assert.Equal(t, tt.want, stored(t, kv).Gems)
		}
	}
}

func TestConcurrentHintsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newOffline(t)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.UseHint(ctx) {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
	assert.Equal(t, 0, c.Snapshot().Gems)
	assert.Equal(t, 5, c.Snapshot().HintsUsed)
}

func TestAuthenticatedCompleteLevel(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{
		completed: api.Progress{LanguageID: "english", CurrentLevel: 2, CompletedLevels: []int{1}, TotalStars: 3},
		user:      api.User{TotalGems: 150, TotalHintsUsed: 4},
	}
	sess := &fakeSession{authed: true, user: &api.User{TotalGems: 100}}
	c, kv, _ := newOnline(t, remote, sess)

	assert.True(t, c.CompleteLevel(ctx, 1))
	snap := c.Snapshot()
	assert.Equal(t, 150, snap.Gems, "gems come from the profile")
	assert.Equal(t, 4, snap.HintsUsed)
	assert.Equal(t, progress.LanguageProgress{CurrentLevel: 2, CompletedLevels: []int{1}, TotalStars: 3}, snap.Languages["english"])
	assert.Equal(t, 150, sess.user.TotalGems)
	assert.Equal(t, snap, stored(t, kv))
	assert.True(t, remote.called("profile"))
	assert.Empty(t, c.LastError())
}

func TestAuthenticatedCompleteLevelWithoutProfile(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{
		completed:  api.Progress{LanguageID: "english", CurrentLevel: 2, CompletedLevels: []int{1}, TotalStars: 3},
		profileErr: errOffline,
	}
	c, _, rec := newOnline(t, remote, &fakeSession{authed: true})

	assert.True(t, c.CompleteLevel(ctx, 1))
	assert.Equal(t, 150, c.Snapshot().Gems, "local award when the profile is unavailable")
	assert.Contains(t, c.LastError(), "profile")
	assert.Contains(t, rec.kinds(), SyncFailed)
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{err: errOffline}
	c, kv, rec := newOnline(t, remote, &fakeSession{authed: true})

	assert.True(t, c.CompleteLevel(ctx, 1))
	snap := c.Snapshot()
	assert.Equal(t, 150, snap.Gems)
	assert.Equal(t, 2, snap.Languages["english"].CurrentLevel)
	assert.Equal(t, snap, stored(t, kv))
	assert.Contains(t, c.LastError(), "connection refused")
	assert.Equal(t, []EventKind{SyncFailed, ProgressChanged}, rec.kinds())

	assert.True(t, c.UseHint(ctx))
	assert.Equal(t, 130, c.Snapshot().Gems)

	c.AwardGems(ctx, 5)
	assert.Equal(t, 135, c.Snapshot().Gems)

	c.ClearError()
	assert.Empty(t, c.LastError())
}

func TestUnauthenticatedNeverCallsRemote(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	c, _, _ := newOnline(t, remote, &fakeSession{authed: false})

	c.CompleteLevel(ctx, 1)
	c.UseHint(ctx)
	c.AwardGems(ctx, 5)
	c.LoadProgress(ctx)
	assert.Empty(t, remote.calls)
	assert.Equal(t, 135, c.Snapshot().Gems)
}

func TestAuthenticatedUseHint(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{remaining: 80}
	sess := &fakeSession{authed: true, user: &api.User{TotalGems: 100, TotalHintsUsed: 2}}
	c, _, _ := newOnline(t, remote, sess)

	require.True(t, c.UseHint(ctx))
	snap := c.Snapshot()
	assert.Equal(t, 80, snap.Gems)
	assert.Equal(t, 1, snap.Languages["english"].HintsUsed)
	assert.Equal(t, 80, sess.user.TotalGems)
	assert.Equal(t, 3, sess.user.TotalHintsUsed)
}

func TestAwardGems(t *testing.T) {
	ctx := context.Background()

	t.Run("offline", func(t *testing.T) {
		c, kv, _ := newOffline(t)
		c.AwardGems(ctx, game.WordReward)
		assert.Equal(t, 105, c.Snapshot().Gems)
		assert.Equal(t, 105, stored(t, kv).Gems)
		c.AwardGems(ctx, 0)
		assert.Equal(t, 105, c.Snapshot().Gems)
	})

	t.Run("remote total wins", func(t *testing.T) {
		remote := &fakeRemote{total: 777}
		sess := &fakeSession{authed: true, user: &api.User{}}
		c, _, _ := newOnline(t, remote, sess)
		c.AwardGems(ctx, 5)
		assert.Equal(t, 777, c.Snapshot().Gems)
		assert.Equal(t, 777, sess.user.TotalGems)
	})
}

func TestLoadProgressFromRemote(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{records: []api.Progress{
		{LanguageID: "english", CurrentLevel: 3, CompletedLevels: []int{1, 2}, TotalStars: 6, HintsUsed: 1},
		{LanguageID: "spanish", CurrentLevel: 1},
	}}
	sess := &fakeSession{authed: true, user: &api.User{TotalGems: 300, TotalHintsUsed: 1}}
	c, kv, _ := newOnline(t, remote, sess)

	c.LoadProgress(ctx)
	snap := c.Snapshot()
	assert.Len(t, snap.Languages, 2)
	assert.Equal(t, 300, snap.Gems)
	assert.Equal(t, 6, progress.TotalStars(snap))
	assert.NotNil(t, snap.Languages["spanish"].CompletedLevels)
	assert.Equal(t, snap, stored(t, kv))
}

func TestLoadProgressFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{err: errOffline}
	c, kv, _ := newOnline(t, remote, &fakeSession{authed: true})
	require.NoError(t, kv.Set(ctx, store.KeyProgress,
		`{"currentLevel":4,"gems":80,"completedLevels":[1,2,3],"totalStars":9,"hintsUsed":2}`))

	c.LoadProgress(ctx)
	snap := c.Snapshot()
	assert.Equal(t, 80, snap.Gems)
	assert.Equal(t, 4, snap.Languages["english"].CurrentLevel)
	assert.Equal(t, snap, stored(t, kv), "legacy blob rewritten in the current format")
	assert.Contains(t, c.LastError(), "load")
}

func TestLoadProgressKeepsStateOnCorruption(t *testing.T) {
	ctx := context.Background()
	c, kv, rec := newOffline(t)
	c.CompleteLevel(ctx, 1)
	require.NoError(t, kv.Set(ctx, store.KeyProgress, "{garbage"))

	c.LoadProgress(ctx)
	assert.Equal(t, 150, c.Snapshot().Gems, "in-memory state kept")
	assert.Contains(t, rec.kinds(), PersistFailed)
	assert.NotEmpty(t, c.LastError())
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("remote catalog replaces the pack", func(t *testing.T) {
		remote := &fakeRemote{
			languages: []api.Language{{ID: "english"}, {ID: "spanish"}},
			levels: []api.Level{
				{ID: 11, LanguageID: "english", Letters: []string{"s", "u", "n"}, TargetWords: []string{"sun"}, OrderIndex: 1},
			},
		}
		c, _, _ := newOnline(t, remote, &fakeSession{authed: false})
		c.Initialize(ctx)

		assert.Len(t, c.Languages(), 2)
		levels := c.Levels()
		require.Len(t, levels, 1)
		assert.Equal(t, 11, levels[0].ID)
		assert.Equal(t, []string{"SUN"}, levels[0].TargetWords)
		assert.True(t, levels[0].IsUnlocked)
	})

	t.Run("catalog failure still loads progress", func(t *testing.T) {
		remote := &fakeRemote{err: errOffline}
		c, kv, rec := newOnline(t, remote, &fakeSession{authed: false})
		p := progress.NewUser()
		p.Gems = 42
		seed(t, kv, p)

		c.Initialize(ctx)
		assert.Equal(t, 42, c.Snapshot().Gems)
		assert.Len(t, c.Levels(), 3, "embedded pack kept")
		assert.True(t, remote.called("languages"))
		assert.True(t, remote.called("levels"))
		assert.Contains(t, rec.kinds(), SyncFailed)
	})

	t.Run("offline", func(t *testing.T) {
		c, kv, _ := newOffline(t)
		p := progress.NewUser()
		p.Gems = 7
		seed(t, kv, p)
		c.Initialize(ctx)
		assert.Equal(t, 7, c.Snapshot().Gems)
	})
}

func TestStartLevel(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newOffline(t)

	_, err := c.StartLevel(ctx, 99)
	assert.ErrorIs(t, err, ErrUnknownLevel)

	_, err = c.StartLevel(ctx, 2)
	assert.ErrorIs(t, err, ErrLevelLocked)

	lv, err := c.StartLevel(ctx, 1)
	require.NoError(t, err)
	assert.True(t, lv.IsUnlocked)
	assert.False(t, lv.IsCompleted)

	c.CompleteLevel(ctx, 1)
	lv, err = c.StartLevel(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Paris - Eiffel Tower", lv.Name)

	levels := c.Levels()
	require.Len(t, levels, 3)
	assert.True(t, levels[0].IsCompleted)
	assert.Equal(t, 3, levels[0].Stars)
	assert.False(t, levels[2].IsUnlocked)
}

func TestStartLevelSwitchesLanguage(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New(&catalog.Pack{Levels: []game.Level{
		catalog.FromAPI(api.Level{ID: 1, LanguageID: "english", Letters: []string{"C", "A", "T"}, TargetWords: []string{"CAT"}, OrderIndex: 1}),
		catalog.FromAPI(api.Level{ID: 20, LanguageID: "spanish", Letters: []string{"S", "O", "L"}, TargetWords: []string{"SOL"}, OrderIndex: 1}),
	}})
	kv := store.NewMemoryStore()
	c := New(Options{Store: kv, Catalog: cat})

	_, err := c.StartLevel(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "spanish", c.Snapshot().SelectedLanguage)
	assert.Equal(t, "spanish", stored(t, kv).SelectedLanguage)
}

func TestSetSelectedLanguageAndReset(t *testing.T) {
	ctx := context.Background()
	c, kv, _ := newOffline(t)
	c.CompleteLevel(ctx, 1)

	assert.True(t, c.SetSelectedLanguage(ctx, "zulu"))
	assert.Equal(t, "zulu", stored(t, kv).SelectedLanguage, "persisted immediately")
	assert.Empty(t, c.Levels())
	assert.False(t, c.SetSelectedLanguage(ctx, "english"))
	assert.Len(t, c.Levels(), 3)

	c.InitializeNewUser(ctx)
	assert.Equal(t, progress.NewUser(), c.Snapshot())
	assert.Equal(t, progress.NewUser(), stored(t, kv))
}

func TestSessionRewardsThroughCoordinator(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newOffline(t)
	lv, err := c.StartLevel(ctx, 1)
	require.NoError(t, err)

	s := game.NewSession(c, game.WithWheelOrder(func(l []string) []string { return slices.Clone(l) }))
	s.SetCurrentLevel(lv)
	for _, i := range []int{0, 1, 2} {
		require.True(t, s.ExtendPath(i))
	}
	word, isNew := s.CommitPath(ctx)
	assert.Equal(t, "CAT", word)
	assert.True(t, isNew)
	assert.Equal(t, 105, c.Snapshot().Gems)
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := LogObserver{Logger: zerolog.New(&buf)}

	obs.Observe(Event{Kind: ProgressChanged, Op: "complete-level", Progress: progress.NewUser()})
	obs.Observe(Event{Kind: SyncFailed, Op: "use-hint", Err: errOffline})
	obs.Observe(Event{Kind: PersistFailed, Op: "load", Err: progress.ErrMalformed})

	out := buf.String()
	assert.Contains(t, out, `"message":"progress changed"`)
	assert.Contains(t, out, `"op":"use-hint"`)
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, `"level":"error"`)
}
