// internal/coordinator/coordinator.go
//
// Sync coordinator: owns a player's progress for one session.
// Responsibilities:
//   - Route each progress mutation to the remote API when signed in, and to
//     the local model otherwise or when the remote call fails.
//   - Persist after every mutation (write-through).
//   - Load progress at start-up, remote first when signed in.
//   - Load the language and level catalogs concurrently.
//   - Gate level starts on the unlock rule.
//
// Notes:
//   - One mutex serialises every mutation, including the remote round trip,
//     so overlapping hint/complete requests cannot lose updates.
//   - Remote failures never escape: they become a SyncFailed event plus a
//     message in LastError, and the local path runs instead.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/auth"
	"github.com/robalobadob/phanda-client/internal/catalog"
	"github.com/robalobadob/phanda-client/internal/game"
	"github.com/robalobadob/phanda-client/internal/progress"
	"github.com/robalobadob/phanda-client/internal/store"
)

var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrLevelLocked  = errors.New("level is locked")
)

// Remote is the part of the API client the coordinator uses.
type Remote interface {
	Languages(ctx context.Context) ([]api.Language, error)
	Levels(ctx context.Context, languageID string) ([]api.Level, error)
	AllProgress(ctx context.Context) ([]api.Progress, error)
	CompleteLevel(ctx context.Context, req api.CompleteLevelRequest) (api.Progress, error)
	UseHint(ctx context.Context) (api.HintResult, error)
	AddGems(ctx context.Context, amount int) (api.GemsResult, error)
	Profile(ctx context.Context) (api.User, error)
}

// Session is the part of the auth session the coordinator uses.
type Session interface {
	IsAuthenticated() bool
	User() *api.User
	UpdateUser(ctx context.Context, patch auth.UserPatch) error
}

// Options wires a Coordinator. Remote and Session may be nil for a purely
// offline player.
type Options struct {
	Store    store.Store
	Remote   Remote
	Session  Session
	Catalog  *catalog.Catalog
	Observer Observer
}

// Coordinator owns the player's progress. It is safe for concurrent use.
type Coordinator struct {
	kv       store.Store
	remote   Remote
	session  Session
	catalog  *catalog.Catalog
	observer Observer

	mu         sync.Mutex
	progress   progress.UserProgress
	levelHints int // hints bought since the last StartLevel

	errMu   sync.Mutex
	lastErr string
}

var _ game.Rewarder = (*Coordinator)(nil)

// New returns a coordinator holding first-run progress. Call Initialize or
// LoadProgress to pick up stored state.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		kv:       opts.Store,
		remote:   opts.Remote,
		session:  opts.Session,
		catalog:  opts.Catalog,
		observer: opts.Observer,
		progress: progress.NewUser(),
	}
	if c.kv == nil {
		c.kv = store.NewMemoryStore()
	}
	if c.catalog == nil {
		c.catalog = catalog.New(nil)
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}

func (c *Coordinator) authenticated() bool {
	return c.remote != nil && c.session != nil && c.session.IsAuthenticated()
}

// ------------------------------ start-up -----------------------------------

// Initialize loads the catalogs concurrently, then progress. Catalog
// failures keep whatever catalog is already held.
func (c *Coordinator) Initialize(ctx context.Context) {
	if c.remote != nil {
		var g errgroup.Group
		g.Go(func() error {
			langs, err := c.remote.Languages(ctx)
			if err != nil {
				c.syncFailed("load-languages", err)
				return err
			}
			c.catalog.SetLanguages(langs)
			return nil
		})
		g.Go(func() error {
			remote, err := c.remote.Levels(ctx, "")
			if err != nil {
				c.syncFailed("load-levels", err)
				return err
			}
			levels := make([]game.Level, 0, len(remote))
			for _, l := range remote {
				levels = append(levels, catalog.FromAPI(l))
			}
			c.catalog.SetLevels(levels)
			return nil
		})
		_ = g.Wait()
	}
	c.LoadProgress(ctx)
}

// LoadProgress replaces the in-memory progress with the best available
// copy: the remote records when signed in, else local storage. When both
// fail the current in-memory state is kept.
func (c *Coordinator) LoadProgress(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated() {
		records, err := c.remote.AllProgress(ctx)
		if err == nil {
			p := c.progress.Clone()
			p.Languages = make(map[string]progress.LanguageProgress, len(records))
			for _, r := range records {
				p.Languages[r.LanguageID] = fromRemote(r)
			}
			if u := c.session.User(); u != nil {
				p.Gems, p.HintsUsed = u.TotalGems, u.TotalHintsUsed
			}
			c.progress = progress.Normalize(p)
			c.saveLocked(ctx, "load")
			c.changed("load")
			return
		}
		c.syncFailed("load", err)
	}

	p, status, err := progress.Load(ctx, c.kv)
	if err != nil {
		c.persistFailed("load", err)
		return
	}
	if status == progress.StatusAbsent {
		return
	}
	c.progress = p
	if status == progress.StatusMigrated {
		c.saveLocked(ctx, "migrate")
	}
	c.changed("load")
}

// ----------------------------- mutations -----------------------------------

// CompleteLevel records levelID as completed in the selected language and
// reports whether this was the first completion.
func (c *Coordinator) CompleteLevel(ctx context.Context, levelID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	lang := c.progress.SelectedLanguage
	first := !progress.CurrentLanguageProgress(c.progress).IsCompleted(levelID)

	if c.authenticated() {
		rec, err := c.remote.CompleteLevel(ctx, api.CompleteLevelRequest{
			LevelID:    levelID,
			LanguageID: lang,
			Stars:      progress.LevelCompleteStars,
			HintsUsed:  c.levelHints,
		})
		if err == nil {
			c.progress.ReplaceLanguage(lang, fromRemote(rec))
			if !c.refreshFromProfileLocked(ctx) && first {
				c.progress.AddGems(progress.LevelCompleteGems)
			}
			c.levelHints = 0
			c.saveLocked(ctx, "complete-level")
			c.changed("complete-level")
			return first
		}
		c.syncFailed("complete-level", err)
	}

	awarded := c.progress.CompleteLevel(levelID)
	c.levelHints = 0
	c.saveLocked(ctx, "complete-level")
	c.changed("complete-level")
	return awarded
}

// UseHint pays for a hint. It returns false, changing nothing, when the
// player cannot afford one.
func (c *Coordinator) UseHint(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !progress.CanUseHint(c.progress) {
		return false
	}

	if c.authenticated() {
		res, err := c.remote.UseHint(ctx)
		if err == nil {
			c.progress.Gems = max(res.RemainingGems, 0)
			c.progress.RecordHint()
			c.levelHints++
			patch := auth.UserPatch{TotalGems: &res.RemainingGems}
			if u := c.session.User(); u != nil {
				hints := u.TotalHintsUsed + 1
				patch.TotalHintsUsed = &hints
			}
			c.updateUser(ctx, patch)
			c.saveLocked(ctx, "use-hint")
			c.changed("use-hint")
			return true
		}
		c.syncFailed("use-hint", err)
	}

	if !c.progress.UseHint() {
		return false
	}
	c.levelHints++
	c.saveLocked(ctx, "use-hint")
	c.changed("use-hint")
	return true
}

// AwardGems adds amount gems, e.g. for a word discovery. It satisfies
// game.Rewarder.
func (c *Coordinator) AwardGems(ctx context.Context, amount int) {
	if amount <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated() {
		res, err := c.remote.AddGems(ctx, amount)
		if err == nil {
			c.progress.Gems = max(res.TotalGems, 0)
			c.updateUser(ctx, auth.UserPatch{TotalGems: &res.TotalGems})
			c.saveLocked(ctx, "add-gems")
			c.changed("add-gems")
			return
		}
		c.syncFailed("add-gems", err)
	}

	c.progress.AddGems(amount)
	c.saveLocked(ctx, "add-gems")
	c.changed("add-gems")
}

// SetSelectedLanguage switches language, creating its record when needed.
// It reports whether a record was created.
func (c *Coordinator) SetSelectedLanguage(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	created := c.progress.SetSelectedLanguage(id)
	c.saveLocked(ctx, "select-language")
	c.changed("select-language")
	return created
}

// InitializeNewUser resets progress to first-run defaults.
func (c *Coordinator) InitializeNewUser(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Reset()
	c.levelHints = 0
	c.saveLocked(ctx, "reset")
	c.changed("reset")
}

// ------------------------------- levels ------------------------------------

// StartLevel returns the level to play, switching the selected language to
// the level's own when they differ.
func (c *Coordinator) StartLevel(ctx context.Context, levelID int) (game.Level, error) {
	lv, ok := c.catalog.Get(levelID)
	if !ok {
		return game.Level{}, fmt.Errorf("%w: %d", ErrUnknownLevel, levelID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lp, ok := c.progress.Languages[lv.LanguageID]
	if !ok {
		lp = progress.NewLanguage()
	}
	states := catalog.WithUnlockState(c.catalog.Levels(lv.LanguageID), lp)
	i := slices.IndexFunc(states, func(l game.Level) bool { return l.ID == levelID })
	if i < 0 || !states[i].IsUnlocked {
		return game.Level{}, fmt.Errorf("%w: %d", ErrLevelLocked, levelID)
	}

	if lv.LanguageID != c.progress.SelectedLanguage {
		c.progress.SetSelectedLanguage(lv.LanguageID)
		c.saveLocked(ctx, "select-language")
		c.changed("select-language")
	}
	c.levelHints = 0
	return states[i], nil
}

// Levels returns the selected language's levels with unlock and completion
// flags for this player.
func (c *Coordinator) Levels() []game.Level {
	c.mu.Lock()
	lang := c.progress.SelectedLanguage
	lp := progress.CurrentLanguageProgress(c.progress).Clone()
	c.mu.Unlock()
	return catalog.WithUnlockState(c.catalog.Levels(lang), lp)
}

func (c *Coordinator) Languages() []api.Language { return c.catalog.Languages() }

// --------------------------------- state -----------------------------------

// Snapshot returns a copy of the current progress.
func (c *Coordinator) Snapshot() progress.UserProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Clone()
}

// LastError returns the message of the most recent recoverable failure.
func (c *Coordinator) LastError() string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Coordinator) ClearError() {
	c.errMu.Lock()
	c.lastErr = ""
	c.errMu.Unlock()
}

// ------------------------------- helpers -----------------------------------

// refreshFromProfileLocked copies gem and hint totals from the server's
// profile into progress and the session. It reports success.
func (c *Coordinator) refreshFromProfileLocked(ctx context.Context) bool {
	u, err := c.remote.Profile(ctx)
	if err != nil {
		c.syncFailed("profile", err)
		return false
	}
	c.progress.Gems = max(u.TotalGems, 0)
	c.progress.HintsUsed = max(u.TotalHintsUsed, 0)
	c.updateUser(ctx, auth.UserPatch{TotalGems: &u.TotalGems, TotalHintsUsed: &u.TotalHintsUsed})
	return true
}

func (c *Coordinator) updateUser(ctx context.Context, patch auth.UserPatch) {
	if err := c.session.UpdateUser(ctx, patch); err != nil {
		c.persistFailed("update-user", err)
	}
}

func (c *Coordinator) saveLocked(ctx context.Context, op string) {
	if err := progress.Save(ctx, c.kv, c.progress); err != nil {
		c.persistFailed(op, err)
	}
}

func (c *Coordinator) changed(op string) {
	c.observer.Observe(Event{Kind: ProgressChanged, Op: op, Progress: c.progress.Clone()})
}

func (c *Coordinator) syncFailed(op string, err error) {
	c.setError(op, err)
	c.observer.Observe(Event{Kind: SyncFailed, Op: op, Err: err})
}

func (c *Coordinator) persistFailed(op string, err error) {
	c.setError(op, err)
	c.observer.Observe(Event{Kind: PersistFailed, Op: op, Err: err})
}

func (c *Coordinator) setError(op string, err error) {
	c.errMu.Lock()
	c.lastErr = fmt.Sprintf("%s: %v", op, err)
	c.errMu.Unlock()
}

func fromRemote(r api.Progress) progress.LanguageProgress {
	completed := slices.Clone(r.CompletedLevels)
	if completed == nil {
		completed = []int{}
	}
	return progress.LanguageProgress{
		CurrentLevel:    r.CurrentLevel,
		CompletedLevels: completed,
		TotalStars:      r.TotalStars,
		HintsUsed:       r.HintsUsed,
	}
}
