package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// settingsCacheTTL bounds how stale a cached setting may be. Settings are
// read on hot paths (anomaly checks triggered per dashboard poll), so a few
// seconds of staleness is traded for avoiding a lookup per request.
const settingsCacheTTL = 30 * time.Second

type cachedSetting struct {
	value     string
	ok        bool
	fetchedAt time.Time
}

// SettingsStore reads the key/value configuration table. The dashboard
// writes it; this service only reads.
type SettingsStore struct {
	db  *sql.DB
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSetting
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{
		db:    db,
		now:   time.Now,
		cache: make(map[string]cachedSetting),
	}
}

// Get returns the raw value for key, or ok=false when the key is absent.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	now := s.now()

	s.mu.Lock()
	if c, hit := s.cache[key]; hit && now.Sub(c.fetchedAt) < settingsCacheTTL {
		s.mu.Unlock()
		return c.value, c.ok, nil
	}
	s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	ok := true
	if err == sql.ErrNoRows {
		value, ok, err = "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = cachedSetting{value: value, ok: ok, fetchedAt: now}
	s.mu.Unlock()

	return value, ok, nil
}

// Float reads a numeric setting, falling back to def when the key is absent
// or unparseable. Lookup failures also fall back: configuration must never
// break the engines that consume it.
func (s *SettingsStore) Float(ctx context.Context, key string, def float64) float64 {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings lookup failed, using default")
		return def
	}
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("setting is not numeric, using default")
		return def
	}
	return f
}
