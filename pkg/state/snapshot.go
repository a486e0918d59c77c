package state

import (
	"fmt"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// BattleSnapshot is the persisted progress of a running battle.
type BattleSnapshot struct {
	battle.Health
	Phase int `json:"phase"`
}

// Snapshot is the serializable form of a Narrative. It is what persistence
// adapters store and what Restore accepts.
type Snapshot struct {
	CurrentSceneID  string           `json:"currentSceneId"`
	DialogueIndex   int              `json:"dialogueIndex"`
	Mode            Mode             `json:"mode"`
	Path            content.Path     `json:"path,omitempty"`
	Flags           map[string]any   `json:"flags,omitempty"`
	ChoiceHistory   []ChoiceRecord   `json:"choiceHistory,omitempty"`
	DialogueHistory []DialogueRecord `json:"dialogueHistory,omitempty"`
	PlaytimeSeconds int64            `json:"playtimeSeconds"`
	Battle          *BattleSnapshot  `json:"battle,omitempty"` // Set only in battle mode
}

// Snapshot captures the current state. The result shares nothing with the
// Narrative.
func (n *Narrative) Snapshot() *Snapshot {
	snap := &Snapshot{
		CurrentSceneID:  n.state.SceneID,
		DialogueIndex:   n.state.DialogueIndex,
		Mode:            n.state.Mode,
		Path:            n.path,
		Flags:           n.Flags(),
		ChoiceHistory:   n.ChoiceHistory(),
		DialogueHistory: n.DialogueHistory(),
		PlaytimeSeconds: int64(n.playtime / time.Second),
	}
	if n.state.Mode == ModeBattle && n.battle != nil {
		snap.Battle = &BattleSnapshot{Health: n.battle.Health(), Phase: n.battle.Phase()}
	}
	return snap
}

// Restore replaces the current state with snap. A nil snapshot resets the
// machine. Missing or out-of-range fields fall back to initial values: the
// dialogue index is clamped to the scene, an unknown mode becomes dialogue,
// and battle or choices mode is dropped when the scene cannot support it.
// A scene id that is not in the table resets the machine and returns
// ErrSnapshotInvalid.
func (n *Narrative) Restore(snap *Snapshot) error {
	if snap == nil {
		n.Reset()
		return nil
	}

	sceneID := snap.CurrentSceneID
	if sceneID == "" {
		sceneID = n.table.EntryScene
	}
	s, ok := n.table.Scene(sceneID)
	if !ok {
		n.Reset()
		return fmt.Errorf("%w: unknown scene %q", ErrSnapshotInvalid, sceneID)
	}

	n.path = snap.Path
	if !n.path.Valid() {
		n.path = content.PathNone
	}
	n.flags = make(map[string]any, len(snap.Flags))
	for k, v := range snap.Flags {
		if norm, ok := content.NormalizeFlagValue(v); ok {
			n.flags[k] = norm
		}
	}
	n.choices = append([]ChoiceRecord(nil), snap.ChoiceHistory...)
	n.dialogue = append([]DialogueRecord(nil), snap.DialogueHistory...)
	if over := len(n.dialogue) - n.historyLimit; over > 0 {
		n.dialogue = n.dialogue[over:]
	}
	n.playtime = 0
	if snap.PlaytimeSeconds > 0 {
		n.playtime = time.Duration(snap.PlaytimeSeconds) * time.Second
	}

	mode := snap.Mode
	switch {
	case !mode.Valid():
		mode = ModeDialogue
	case mode == ModeBattle && !s.IsBattle:
		mode = ModeDialogue
	case mode == ModeChoices && len(n.available(s)) == 0:
		mode = ModeDialogue
	}

	index := 0
	if mode == ModeDialogue {
		index = snap.DialogueIndex
		if index >= len(s.Dialogues) {
			index = len(s.Dialogues) - 1
		}
		if index < 0 {
			index = 0
		}
	}
	n.state = State{SceneID: s.ID, DialogueIndex: index, Mode: mode}

	n.battle = nil
	if mode == ModeBattle {
		steps := n.table.AttacksFor(s)
		if snap.Battle != nil {
			n.battle = battle.Resume(steps, snap.Battle.Health, snap.Battle.Phase)
		} else {
			n.battle = battle.New(steps)
		}
	}

	n.notify(ReasonRestore)
	return nil
}

// RestoreNarrative builds a Narrative for table and restores snap into it.
// The returned error is ErrSnapshotInvalid-wrapped when the snapshot points
// outside the table; the Narrative is still usable in that case.
func RestoreNarrative(table *content.Table, snap *Snapshot, opts ...Option) (*Narrative, error) {
	n, err := NewNarrative(table, opts...)
	if err != nil {
		return nil, err
	}
	return n, n.Restore(snap)
}
