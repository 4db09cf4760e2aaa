// internal/config/config.go
//
// Runtime configuration from the environment.
//
// Behavior:
//   - `.env` in the working directory is loaded first when present
//     (godotenv), without overriding variables already set.
//   - Every setting has a default, so an empty environment runs offline
//     against a JSON file in ./data.
//
// Variables:
//   PHANDA_API_URL       API root (default api.DefaultBaseURL)
//   PHANDA_API_TIMEOUT   per-request timeout, Go duration (default 10s)
//   PHANDA_OFFLINE       "true" disables the remote API entirely
//   STORAGE_DRIVER       memory | file | sqlite (default file)
//   STORAGE_PATH         file or database path (default per driver)
//   WORDS_FILE           dictionary override, one word per line
//   LEVELS_FILE          YAML level pack override
//   LOG_LEVEL            zerolog level (default info)

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/store"
)

type Config struct {
	APIBaseURL    string
	APITimeout    time.Duration
	Offline       bool
	StorageDriver string
	StoragePath   string
	WordsFile     string
	LevelsFile    string
	LogLevel      string
}

// Load reads `.env` (if any) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	c := Config{
		APIBaseURL:    getEnv("PHANDA_API_URL", api.DefaultBaseURL),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", store.DriverFile)),
		WordsFile:     os.Getenv("WORDS_FILE"),
		LevelsFile:    os.Getenv("LEVELS_FILE"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	timeout, err := time.ParseDuration(getEnv("PHANDA_API_TIMEOUT", api.DefaultTimeout.String()))
	if err != nil || timeout <= 0 {
		return Config{}, fmt.Errorf("config: PHANDA_API_TIMEOUT: invalid duration %q", os.Getenv("PHANDA_API_TIMEOUT"))
	}
	c.APITimeout = timeout

	if v := os.Getenv("PHANDA_OFFLINE"); v != "" {
		off, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: PHANDA_OFFLINE: %w", err)
		}
		c.Offline = off
	}

	switch c.StorageDriver {
	case store.DriverSQLite, "sqlite3":
		c.StoragePath = getEnv("STORAGE_PATH", "./data/phanda.db")
	case store.DriverFile:
		c.StoragePath = getEnv("STORAGE_PATH", "./data/phanda.json")
	case store.DriverMemory:
	default:
		return Config{}, fmt.Errorf("config: STORAGE_DRIVER: unsupported %q", c.StorageDriver)
	}
	return c, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
