package state

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	n := newTestNarrative(t)
	toChoices(t, n)
	if _, err := n.SelectChoice(2); err != nil {
		t.Fatal(err)
	}
	n.Advance()
	n.AddPlaytime(95 * time.Second)

	data, err := json.Marshal(n.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := newTestNarrative(t)
	mustRestore(t, restored, &decoded)

	if !reflect.DeepEqual(restored.Snapshot(), n.Snapshot()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), n.Snapshot())
	}
	if restored.Playtime() != 95*time.Second {
		t.Errorf("expected 95s playtime, got %s", restored.Playtime())
	}
}

func TestSnapshot_BattleProgress(t *testing.T) {
	n := newTestNarrative(t)
	mustRestore(t, n, &Snapshot{
		CurrentSceneID: "final_battle",
		Mode:           ModeBattle,
		Battle:         &BattleSnapshot{Health: battle.Health{Ally: 80, Enemy: 100}, Phase: 1},
	})

	snap := n.Snapshot()
	if snap.Battle == nil || snap.Battle.Phase != 1 {
		t.Fatalf("expected battle at phase 1, got %+v", snap.Battle)
	}
	r, ok := n.ProcessNextPhase()
	if !ok || r.Health != (battle.Health{Ally: 90, Enemy: 75}) || !r.Complete {
		t.Errorf("resumed battle should apply the second step, got %+v", r)
	}
}

func TestRestore_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		want State
		path content.Path
	}{
		{
			name: "nil resets",
			snap: nil,
			want: State{SceneID: "intro", Mode: ModeDialogue},
		},
		{
			name: "empty scene uses entry",
			snap: &Snapshot{DialogueIndex: 1},
			want: State{SceneID: "intro", DialogueIndex: 1, Mode: ModeDialogue},
		},
		{
			name: "partial snapshot",
			snap: &Snapshot{CurrentSceneID: "linux_path"},
			want: State{SceneID: "linux_path", Mode: ModeDialogue},
		},
		{
			name: "index clamped high",
			snap: &Snapshot{CurrentSceneID: "linux_path", DialogueIndex: 40},
			want: State{SceneID: "linux_path", DialogueIndex: 1, Mode: ModeDialogue},
		},
		{
			name: "index clamped low",
			snap: &Snapshot{CurrentSceneID: "linux_path", DialogueIndex: -4},
			want: State{SceneID: "linux_path", Mode: ModeDialogue},
		},
		{
			name: "unknown mode",
			snap: &Snapshot{CurrentSceneID: "intro", Mode: "cutscene"},
			want: State{SceneID: "intro", Mode: ModeDialogue},
		},
		{
			name: "battle mode on non-battle scene",
			snap: &Snapshot{CurrentSceneID: "lab", Mode: ModeBattle},
			want: State{SceneID: "lab", Mode: ModeDialogue},
		},
		{
			name: "choices mode with nothing on offer",
			snap: &Snapshot{CurrentSceneID: "linux_path", Mode: ModeChoices},
			want: State{SceneID: "linux_path", Mode: ModeDialogue},
		},
		{
			name: "battle without progress starts fresh",
			snap: &Snapshot{CurrentSceneID: "final_battle", Mode: ModeBattle},
			want: State{SceneID: "final_battle", Mode: ModeBattle},
		},
		{
			name: "invalid path dropped",
			snap: &Snapshot{CurrentSceneID: "intro", Path: "macos"},
			want: State{SceneID: "intro", Mode: ModeDialogue},
			path: content.PathNone,
		},
		{
			name: "valid path kept",
			snap: &Snapshot{CurrentSceneID: "intro", Path: content.PathLinux},
			want: State{SceneID: "intro", Mode: ModeDialogue},
			path: content.PathLinux,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNarrative(t)
			mustRestore(t, n, tt.snap)
			if n.State() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, n.State())
			}
			if n.Path() != tt.path {
				t.Errorf("expected path %q, got %q", tt.path, n.Path())
			}
			if n.Mode() == ModeBattle && n.Health() != battle.FullHealth() {
				t.Errorf("fresh battle should be at full health, got %+v", n.Health())
			}
		})
	}
}

func TestRestore_UnknownScene(t *testing.T) {
	n := newTestNarrative(t)
	toChoices(t, n)
	n.SelectChoice(1)

	err := n.Restore(&Snapshot{CurrentSceneID: "deleted_scene", Path: content.PathLinux})
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Fatalf("expected ErrSnapshotInvalid, got %v", err)
	}
	if n.State() != (State{SceneID: "intro", Mode: ModeDialogue}) || n.Path() != content.PathNone {
		t.Errorf("expected reset to initial state, got %s path=%q", n.State(), n.Path())
	}
}

func TestRestoreNarrative(t *testing.T) {
	table := testTable(t)
	n, err := RestoreNarrative(table, &Snapshot{CurrentSceneID: "end", Flags: map[string]any{"score": 3}})
	if err != nil {
		t.Fatalf("RestoreNarrative: %v", err)
	}
	if n.State().SceneID != "end" {
		t.Errorf("expected end, got %s", n.State())
	}
	if n.Flags()["score"] != 3.0 {
		t.Errorf("expected normalized flag, got %#v", n.Flags()["score"])
	}
}

func TestSaveSlot(t *testing.T) {
	n := newTestNarrative(t)
	toChoices(t, n)
	n.SelectChoice(2)
	n.AddPlaytime(2 * time.Minute)

	sess := NewSession(n)
	if sess.ID == uuid.Nil || sess.Snapshot.CurrentSceneID != "linux_path" {
		t.Errorf("unexpected session: %+v", sess)
	}

	slot := NewSaveSlot(sess.ID, 3, n)
	if slot.SceneTitle != "Linux" || slot.Path != "linux" || slot.PlaytimeSeconds != 120 {
		t.Errorf("unexpected save slot: %+v", slot)
	}

	n.Advance()
	sess.Capture(n)
	if sess.Snapshot.DialogueIndex != 1 {
		t.Errorf("capture should refresh the snapshot, got index %d", sess.Snapshot.DialogueIndex)
	}
	if slot.Snapshot.DialogueIndex != 0 {
		t.Error("save slot snapshot must not follow later progress")
	}
}
