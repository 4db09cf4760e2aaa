package progress

import (
	"context"
	"fmt"

	"github.com/robalobadob/phanda-client/internal/store"
)

// LoadStatus describes what Load found in storage.
type LoadStatus int

const (
	StatusAbsent   LoadStatus = iota // nothing stored; defaults returned
	StatusLoaded                     // current format
	StatusMigrated                   // legacy format, upgraded in memory
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusMigrated:
		return "migrated"
	default:
		return "absent"
	}
}

// Load reads progress from s. On a read or decode error it returns first-run
// defaults together with the error so callers can decide to keep their own
// in-memory state instead.
func Load(ctx context.Context, s store.Store) (UserProgress, LoadStatus, error) {
	raw, ok, err := s.Get(ctx, store.KeyProgress)
	if err != nil {
		return NewUser(), StatusAbsent, fmt.Errorf("load progress: %w", err)
	}
	if !ok || raw == "" {
		return NewUser(), StatusAbsent, nil
	}
	p, migrated, err := Decode([]byte(raw))
	if err != nil {
		return NewUser(), StatusAbsent, err
	}
	if migrated {
		return p, StatusMigrated, nil
	}
	return p, StatusLoaded, nil
}

// Save writes progress to s in the current format.
func Save(ctx context.Context, s store.Store, p UserProgress) error {
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.Set(ctx, store.KeyProgress, string(data)); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
