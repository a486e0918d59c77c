package state

import (
	"time"

	"github.com/google/uuid"
)

// Session is a persisted playthrough: a snapshot keyed by a session id.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Snapshot  *Snapshot `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession wraps the narrative's current snapshot in a new session.
func NewSession(n *Narrative) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New(),
		Snapshot:  n.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Capture replaces the stored snapshot with the narrative's current state.
func (s *Session) Capture(n *Narrative) {
	s.Snapshot = n.Snapshot()
	s.UpdatedAt = time.Now().UTC()
}

// SaveSlot is a named copy of a session's snapshot that the player can load
// back later. Slot numbers start at 1.
type SaveSlot struct {
	SessionID       uuid.UUID `json:"session_id"`
	Slot            int       `json:"slot"`
	SceneID         string    `json:"scene_id"`
	SceneTitle      string    `json:"scene_title"`
	Path            string    `json:"path,omitempty"`
	PlaytimeSeconds int64     `json:"playtime_seconds"`
	Snapshot        *Snapshot `json:"snapshot"`
	SavedAt         time.Time `json:"saved_at"`
}

// NewSaveSlot captures the narrative into a save slot for sessionID.
func NewSaveSlot(sessionID uuid.UUID, slot int, n *Narrative) *SaveSlot {
	snap := n.Snapshot()
	scene := n.CurrentScene()
	return &SaveSlot{
		SessionID:       sessionID,
		Slot:            slot,
		SceneID:         scene.ID,
		SceneTitle:      scene.Title,
		Path:            string(snap.Path),
		PlaytimeSeconds: snap.PlaytimeSeconds,
		Snapshot:        snap,
		SavedAt:         time.Now().UTC(),
	}
}
