package state

import (
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// DialogueView is the current line as a presentation layer renders it.
type DialogueView struct {
	Index       int              `json:"index"`
	Total       int              `json:"total"`
	Speaker     string           `json:"speaker"`
	SpeakerName string           `json:"speaker_name"`
	Text        string           `json:"text"`
	Position    content.Position `json:"position,omitempty"`
	Emotion     string           `json:"emotion,omitempty"`
}

// ChoiceView is one choice on offer.
type ChoiceView struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	Consequence string `json:"consequence,omitempty"`
}

// BattleView is the progress of the running battle.
type BattleView struct {
	Health     battle.Health  `json:"health"`
	Phase      int            `json:"phase"`
	TotalSteps int            `json:"total_steps"`
	Complete   bool           `json:"complete"`
	Outcome    battle.Outcome `json:"outcome,omitempty"`
}

// View is everything a presentation layer needs to render the current state
// without knowing the transition rules.
type View struct {
	SceneID         string             `json:"scene_id"`
	SceneTitle      string             `json:"scene_title"`
	Atmosphere      content.Atmosphere `json:"atmosphere"`
	Track           string             `json:"track"`
	Mode            Mode               `json:"mode"`
	Path            content.Path       `json:"path,omitempty"`
	Dialogue        *DialogueView      `json:"dialogue,omitempty"`
	Choices         []ChoiceView       `json:"choices,omitempty"`
	Battle          *BattleView        `json:"battle,omitempty"`
	Flags           map[string]any     `json:"flags,omitempty"`
	PlaytimeSeconds int64              `json:"playtime_seconds"`
	Ended           bool               `json:"ended"` // Holding on the last line of a dead end
}

// View builds the aggregate read view of the current state.
func (n *Narrative) View() View {
	s := n.scene()
	v := View{
		SceneID:         s.ID,
		SceneTitle:      s.Title,
		Atmosphere:      s.Atmosphere,
		Track:           s.Track(),
		Mode:            n.state.Mode,
		Path:            n.path,
		Flags:           n.Flags(),
		PlaytimeSeconds: int64(n.playtime.Seconds()),
	}

	switch n.state.Mode {
	case ModeDialogue:
		if d, ok := n.CurrentDialogue(); ok {
			v.Dialogue = &DialogueView{
				Index:       n.state.DialogueIndex,
				Total:       len(s.Dialogues),
				Speaker:     d.Speaker,
				SpeakerName: n.table.SpeakerName(d.Speaker),
				Text:        d.Text,
				Position:    d.Position,
				Emotion:     d.Emotion,
			}
		}
		v.Ended = !s.IsBattle &&
			n.state.DialogueIndex >= len(s.Dialogues)-1 &&
			s.NextScene == "" &&
			len(n.available(s)) == 0
	case ModeChoices:
		for _, c := range n.AvailableChoices() {
			v.Choices = append(v.Choices, ChoiceView{ID: c.ID, Text: c.Text, Consequence: c.Consequence})
		}
	case ModeBattle:
		if n.battle != nil {
			v.Battle = &BattleView{
				Health:     n.battle.Health(),
				Phase:      n.battle.Phase(),
				TotalSteps: n.battle.TotalSteps(),
				Complete:   n.battle.IsComplete(),
				Outcome:    n.battle.Outcome(),
			}
		}
	}
	return v
}
