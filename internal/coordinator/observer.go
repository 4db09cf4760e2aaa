package coordinator

import (
	"github.com/rs/zerolog"

	"github.com/robalobadob/phanda-client/internal/progress"
)

// EventKind names what happened.
type EventKind string

const (
	ProgressChanged EventKind = "progress_changed"
	SyncFailed      EventKind = "sync_failed"
	PersistFailed   EventKind = "persist_failed"
)

// Event is delivered to an Observer after the fact. Progress is set on
// ProgressChanged only.
type Event struct {
	Kind     EventKind
	Op       string // e.g. "complete-level", "use-hint", "load"
	Err      error
	Progress progress.UserProgress
}

// Observer receives coordinator events. Observe may be called from several
// goroutines during Initialize, and with the coordinator's lock held, so it
// must not call back into the coordinator.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// LogObserver writes events to a zerolog logger.
type LogObserver struct {
	Logger zerolog.Logger
}

func (o LogObserver) Observe(e Event) {
	switch e.Kind {
	case ProgressChanged:
		lp := progress.CurrentLanguageProgress(e.Progress)
		o.Logger.Debug().
			Str("op", e.Op).
			Str("language", e.Progress.SelectedLanguage).
			Int("gems", e.Progress.Gems).
			Int("currentLevel", lp.CurrentLevel).
			Ints("completed", lp.CompletedLevels).
			Msg("progress changed")
	case SyncFailed:
		o.Logger.Warn().Err(e.Err).Str("op", e.Op).Msg("remote sync failed; using local progress")
	case PersistFailed:
		o.Logger.Error().Err(e.Err).Str("op", e.Op).Msg("local progress storage failed")
	}
}
