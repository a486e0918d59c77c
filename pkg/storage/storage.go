package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// MaxSaveSlots is the number of save slots each session gets, numbered from 1.
const MaxSaveSlots = 10

var ErrInvalidSlot = errors.New("invalid save slot")

// ValidSlot reports whether slot is within 1..MaxSaveSlots.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= MaxSaveSlots
}

// Storage persists live sessions. Load methods return nil, nil when the
// session does not exist.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	SaveSession(ctx context.Context, sess *state.Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// SaveStore persists save slots. GetSave returns nil, nil for an empty slot.
type SaveStore interface {
	PutSave(ctx context.Context, save *state.SaveSlot) error
	GetSave(ctx context.Context, sessionID uuid.UUID, slot int) (*state.SaveSlot, error)
	ListSaves(ctx context.Context, sessionID uuid.UUID) ([]*state.SaveSlot, error)
	DeleteSave(ctx context.Context, sessionID uuid.UUID, slot int) error
	Close() error
}
