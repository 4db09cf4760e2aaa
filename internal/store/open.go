package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open returns the Store for driver.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		return OpenFile(path)
	case DriverSQLite, "sqlite3":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

// DeviceID returns the install's stable identifier, creating it on first use.
func DeviceID(ctx context.Context, s Store) (string, error) {
	if id, ok, err := s.Get(ctx, KeyDeviceID); err != nil {
		return "", err
	} else if ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := s.Set(ctx, KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
