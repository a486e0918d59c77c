package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

func openTestSaves(t *testing.T) *SaveStore {
	t.Helper()
	s, err := OpenSaveStore(filepath.Join(t.TempDir(), "saves", "saves.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenSaveStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSave(sessionID uuid.UUID, slot int, sceneID string) *state.SaveSlot {
	return &state.SaveSlot{
		SessionID:       sessionID,
		Slot:            slot,
		SceneID:         sceneID,
		SceneTitle:      "Act II",
		Path:            "linux",
		PlaytimeSeconds: 321,
		Snapshot: &state.Snapshot{
			CurrentSceneID: sceneID,
			DialogueIndex:  1,
			Mode:           state.ModeDialogue,
			Path:           "linux",
		},
		SavedAt: time.Date(2045, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveStore_PutAndGet(t *testing.T) {
	s := openTestSaves(t)
	ctx := context.Background()
	sessionID := uuid.New()

	if err := s.PutSave(ctx, testSave(sessionID, 2, "linux_path")); err != nil {
		t.Fatalf("PutSave: %v", err)
	}

	got, err := s.GetSave(ctx, sessionID, 2)
	if err != nil {
		t.Fatalf("GetSave: %v", err)
	}
	if got == nil {
		t.Fatal("expected save, got nil")
	}
	if got.SessionID != sessionID || got.SceneID != "linux_path" || got.PlaytimeSeconds != 321 {
		t.Errorf("unexpected save: %+v", got)
	}
	if !got.SavedAt.Equal(time.Date(2045, time.March, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected saved_at: %s", got.SavedAt)
	}
	if got.Snapshot == nil || got.Snapshot.DialogueIndex != 1 {
		t.Errorf("snapshot not restored: %+v", got.Snapshot)
	}
}

func TestSaveStore_EmptySlot(t *testing.T) {
	s := openTestSaves(t)
	got, err := s.GetSave(context.Background(), uuid.New(), 1)
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for empty slot, got %v %v", got, err)
	}
}

func TestSaveStore_OverwriteAndList(t *testing.T) {
	s := openTestSaves(t)
	ctx := context.Background()
	sessionID := uuid.New()
	other := uuid.New()

	for _, save := range []*state.SaveSlot{
		testSave(sessionID, 3, "lab"),
		testSave(sessionID, 1, "intro"),
		testSave(sessionID, 3, "final_battle"),
		testSave(other, 1, "intro"),
	} {
		if err := s.PutSave(ctx, save); err != nil {
			t.Fatalf("PutSave: %v", err)
		}
	}

	saves, err := s.ListSaves(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListSaves: %v", err)
	}
	if len(saves) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(saves))
	}
	if saves[0].Slot != 1 || saves[1].Slot != 3 {
		t.Errorf("expected slots [1 3], got [%d %d]", saves[0].Slot, saves[1].Slot)
	}
	if saves[1].SceneID != "final_battle" {
		t.Errorf("expected slot 3 overwritten, got %s", saves[1].SceneID)
	}
}

func TestSaveStore_Delete(t *testing.T) {
	s := openTestSaves(t)
	ctx := context.Background()
	sessionID := uuid.New()

	if err := s.PutSave(ctx, testSave(sessionID, 4, "lab")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSave(ctx, sessionID, 4); err != nil {
		t.Fatalf("DeleteSave: %v", err)
	}
	if got, _ := s.GetSave(ctx, sessionID, 4); got != nil {
		t.Error("expected slot to be empty after delete")
	}
}

func TestSaveStore_RejectsInvalidSlot(t *testing.T) {
	s := openTestSaves(t)
	for _, slot := range []int{0, -1, storage.MaxSaveSlots + 1} {
		err := s.PutSave(context.Background(), testSave(uuid.New(), slot, "intro"))
		if !errors.Is(err, storage.ErrInvalidSlot) {
			t.Errorf("slot %d: expected ErrInvalidSlot, got %v", slot, err)
		}
	}
}
