package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
	_ "modernc.org/sqlite"
)

const savesSchema = `
CREATE TABLE IF NOT EXISTS save_slots (
	session_id       TEXT    NOT NULL,
	slot             INTEGER NOT NULL,
	scene_id         TEXT    NOT NULL,
	scene_title      TEXT    NOT NULL DEFAULT '',
	path             TEXT    NOT NULL DEFAULT '',
	playtime_seconds INTEGER NOT NULL DEFAULT 0,
	snapshot         TEXT    NOT NULL,
	saved_at         INTEGER NOT NULL,
	PRIMARY KEY (session_id, slot)
)`

// SaveStore keeps save slots in SQLite so they outlive Redis session TTLs.
type SaveStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.SaveStore = (*SaveStore)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// OpenSaveStore opens (creating if needed) the SQLite database at path.
func OpenSaveStore(path string, logger *slog.Logger) (*SaveStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("saves path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create saves dir: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(savesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create save_slots table: %w", err)
	}
	return &SaveStore{db: db, logger: logger}, nil
}

func (s *SaveStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutSave writes a slot, replacing whatever was saved there before.
func (s *SaveStore) PutSave(ctx context.Context, save *state.SaveSlot) error {
	if save == nil || save.Snapshot == nil {
		return errors.New("save requires a snapshot")
	}
	if !storage.ValidSlot(save.Slot) {
		return fmt.Errorf("%w: %d", storage.ErrInvalidSlot, save.Slot)
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}

	snap, err := json.Marshal(save.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO save_slots (session_id, slot, scene_id, scene_title, path, playtime_seconds, snapshot, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, slot) DO UPDATE SET
		   scene_id = excluded.scene_id,
		   scene_title = excluded.scene_title,
		   path = excluded.path,
		   playtime_seconds = excluded.playtime_seconds,
		   snapshot = excluded.snapshot,
		   saved_at = excluded.saved_at`,
		save.SessionID.String(),
		save.Slot,
		save.SceneID,
		save.SceneTitle,
		save.Path,
		save.PlaytimeSeconds,
		string(snap),
		toMillis(save.SavedAt),
	)
	if err != nil {
		s.logger.Error("Failed to write save slot", "session_id", save.SessionID, "slot", save.Slot, "error", err)
		return fmt.Errorf("put save: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSave(row rowScanner) (*state.SaveSlot, error) {
	var (
		save      state.SaveSlot
		sessionID string
		snap      string
		savedAt   int64
	)
	if err := row.Scan(&sessionID, &save.Slot, &save.SceneID, &save.SceneTitle, &save.Path,
		&save.PlaytimeSeconds, &snap, &savedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	save.SessionID = id
	save.SavedAt = fromMillis(savedAt)
	if err := json.Unmarshal([]byte(snap), &save.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &save, nil
}

const saveColumns = `session_id, slot, scene_id, scene_title, path, playtime_seconds, snapshot, saved_at`

// GetSave returns nil, nil for an empty slot.
func (s *SaveStore) GetSave(ctx context.Context, sessionID uuid.UUID, slot int) (*state.SaveSlot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+saveColumns+` FROM save_slots WHERE session_id = ? AND slot = ?`,
		sessionID.String(), slot)
	save, err := scanSave(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get save: %w", err)
	}
	return save, nil
}

// ListSaves returns the session's occupied slots in slot order.
func (s *SaveStore) ListSaves(ctx context.Context, sessionID uuid.UUID) ([]*state.SaveSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+saveColumns+` FROM save_slots WHERE session_id = ? ORDER BY slot`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	saves := make([]*state.SaveSlot, 0)
	for rows.Next() {
		save, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("list saves: %w", err)
		}
		saves = append(saves, save)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return saves, nil
}

func (s *SaveStore) DeleteSave(ctx context.Context, sessionID uuid.UUID, slot int) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM save_slots WHERE session_id = ? AND slot = ?`,
		sessionID.String(), slot); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}
