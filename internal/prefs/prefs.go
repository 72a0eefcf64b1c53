// Package prefs persists client-side settings that must survive a
// restart: the global sound flag, per-category sound profiles, and
// session metadata. Everything else the client holds is a cache of
// server state and is rebuilt by refetch.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/edusuite/edusync/internal/model"
)

const (
	keySoundEnabled = "sound_enabled"
	keySessionStart = "session_started_at"

	// DefaultVolume applies to categories without a stored profile.
	DefaultVolume = 0.7
)

// SoundProfile is the persisted sound setting for one notification
// category.
type SoundProfile struct {
	Enabled bool    `db:"enabled"`
	Volume  float64 `db:"volume"`
}

// Store is the SQLite-backed preference store.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the preference database at dbPath, enables
// WAL mode, and runs any pending schema migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening prefs db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SoundEnabled reports the global sound flag. Defaults to true when
// never set.
func (s *Store) SoundEnabled() (bool, error) {
	value, err := s.getSetting(keySoundEnabled)
	if err != nil {
		return false, err
	}
	if value == "" {
		return true, nil
	}
	return value == "1", nil
}

// SetSoundEnabled persists the global sound flag.
func (s *Store) SetSoundEnabled(enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return s.setSetting(keySoundEnabled, value)
}

// SoundProfile returns the persisted profile for a category, or the
// enabled default when none is stored.
func (s *Store) SoundProfile(category model.Category) (SoundProfile, error) {
	var p SoundProfile
	err := s.db.Get(&p,
		"SELECT enabled, volume FROM sound_settings WHERE category = ?",
		string(category))
	if errors.Is(err, sql.ErrNoRows) {
		return SoundProfile{Enabled: true, Volume: DefaultVolume}, nil
	}
	if err != nil {
		return SoundProfile{}, fmt.Errorf("reading sound profile for %s: %w", category, err)
	}
	return p, nil
}

// SetSoundProfile persists the profile for a category.
func (s *Store) SetSoundProfile(category model.Category, p SoundProfile) error {
	enabled := 0
	if p.Enabled {
		enabled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO sound_settings (category, enabled, volume)
		VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET enabled = excluded.enabled, volume = excluded.volume`,
		string(category), enabled, p.Volume)
	if err != nil {
		return fmt.Errorf("saving sound profile for %s: %w", category, err)
	}
	return nil
}

// SessionStart returns the persisted session start time, if a session
// exists.
func (s *Store) SessionStart() (time.Time, bool, error) {
	value, err := s.getSetting(keySessionStart)
	if err != nil || value == "" {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing session start: %w", err)
	}
	return t, true, nil
}

// SetSessionStart records the session start time.
func (s *Store) SetSessionStart(t time.Time) error {
	return s.setSetting(keySessionStart, t.UTC().Format(time.RFC3339))
}

// ClearSession removes session metadata on logout. Sound settings are
// kept: they are user preferences, not session state.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", keySessionStart); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (s *Store) getSetting(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}
