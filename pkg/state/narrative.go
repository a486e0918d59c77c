// Package state is the narrative state machine: it tracks the current scene,
// dialogue cursor, mode, story path, flags and the nested battle, and applies
// the transition rules against a validated content table.
package state

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// Mode is the UI mode of the machine. Exactly one is active at a time.
type Mode string

const (
	ModeDialogue Mode = "dialogue"
	ModeChoices  Mode = "choices"
	ModeBattle   Mode = "battle"
)

func (m Mode) Valid() bool {
	return m == ModeDialogue || m == ModeChoices || m == ModeBattle
}

// DefaultDialogueHistoryLimit bounds the dialogue history kept per session.
const DefaultDialogueHistoryLimit = 200

// State is the position of the machine. DialogueIndex is only meaningful in
// dialogue mode.
type State struct {
	SceneID       string `json:"sceneId"`
	DialogueIndex int    `json:"dialogueIndex"`
	Mode          Mode   `json:"mode"`
}

func (s State) String() string {
	switch s.Mode {
	case ModeDialogue:
		return fmt.Sprintf("Dialogue(%s, %d)", s.SceneID, s.DialogueIndex)
	case ModeChoices:
		return fmt.Sprintf("Choices(%s)", s.SceneID)
	default:
		return fmt.Sprintf("Battle(%s)", s.SceneID)
	}
}

// Transition is the result of an operation. Changed is false for ignored
// operations.
type Transition struct {
	From         State `json:"from"`
	To           State `json:"to"`
	Changed      bool  `json:"changed"`
	SceneChanged bool  `json:"sceneChanged"`
}

// Reason says which operation caused a scene change.
type Reason string

const (
	ReasonAdvance Reason = "advance"
	ReasonChoice  Reason = "choice"
	ReasonBattle  Reason = "battle"
	ReasonReset   Reason = "reset"
	ReasonRestore Reason = "restore"
)

// SceneChange is delivered to listeners whenever the current scene is
// (re)entered. Track is the audio association for the new scene.
type SceneChange struct {
	SceneID    string             `json:"scene_id"`
	Title      string             `json:"title"`
	Atmosphere content.Atmosphere `json:"atmosphere"`
	Track      string             `json:"track"`
	Mode       Mode               `json:"mode"`
	Reason     Reason             `json:"reason"`
}

// ChoiceRecord is one entry of the choice history.
type ChoiceRecord struct {
	SceneID   string    `json:"sceneId"`
	ChoiceID  int       `json:"choiceId"`
	Timestamp time.Time `json:"timestamp"`
}

// DialogueRecord is one line the player has been shown.
type DialogueRecord struct {
	SceneID string `json:"sceneId"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Option configures a Narrative.
type Option func(*Narrative)

// WithClock replaces time.Now for choice timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Narrative) { n.now = now }
}

// WithDialogueHistoryLimit sets how many dialogue lines are retained.
// Zero or less disables dialogue history.
func WithDialogueHistoryLimit(limit int) Option {
	return func(n *Narrative) { n.historyLimit = limit }
}

// Narrative is one playthrough of a content table. It is not safe for
// concurrent use; one owner drives it.
type Narrative struct {
	table        *content.Table
	now          func() time.Time
	historyLimit int
	listeners    []func(SceneChange)

	state    State
	path     content.Path
	flags    map[string]any
	choices  []ChoiceRecord
	dialogue []DialogueRecord
	playtime time.Duration
	battle   *battle.Battle
}

// NewNarrative creates a machine positioned at the table's entry scene. The
// table is checked on every call, so changes made to it since it was loaded
// are caught too.
func NewNarrative(table *content.Table, opts ...Option) (*Narrative, error) {
	if _, err := content.Check(table); err != nil {
		return nil, err
	}
	n := &Narrative{
		table:        table,
		now:          time.Now,
		historyLimit: DefaultDialogueHistoryLimit,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.init()
	return n, nil
}

func (n *Narrative) init() {
	n.state = State{SceneID: n.table.EntryScene, Mode: ModeDialogue}
	n.path = content.PathNone
	n.flags = make(map[string]any)
	n.choices = nil
	n.dialogue = nil
	n.playtime = 0
	n.battle = nil
	n.recordLine()
}

// Subscribe registers fn to be called after every scene transition.
func (n *Narrative) Subscribe(fn func(SceneChange)) {
	n.listeners = append(n.listeners, fn)
}

func (n *Narrative) notify(reason Reason) {
	if len(n.listeners) == 0 {
		return
	}
	s := n.scene()
	change := SceneChange{
		SceneID:    s.ID,
		Title:      s.Title,
		Atmosphere: s.Atmosphere,
		Track:      s.Track(),
		Mode:       n.state.Mode,
		Reason:     reason,
	}
	for _, fn := range n.listeners {
		fn(change)
	}
}

// scene returns the current scene. currentSceneId is always a table key.
func (n *Narrative) scene() *content.Scene {
	s, _ := n.table.Scene(n.state.SceneID)
	return s
}

func (n *Narrative) available(s *content.Scene) []content.Choice {
	out := make([]content.Choice, 0, len(s.Choices))
	for _, c := range s.Choices {
		if c.Condition == nil || c.Condition.Holds(n.flags, n.path) {
			out = append(out, c)
		}
	}
	return out
}

func (n *Narrative) recordLine() {
	if n.historyLimit <= 0 {
		return
	}
	s := n.scene()
	if n.state.Mode != ModeDialogue || n.state.DialogueIndex >= len(s.Dialogues) {
		return
	}
	d := s.Dialogues[n.state.DialogueIndex]
	n.dialogue = append(n.dialogue, DialogueRecord{SceneID: s.ID, Speaker: d.Speaker, Text: d.Text})
	if over := len(n.dialogue) - n.historyLimit; over > 0 {
		n.dialogue = append(n.dialogue[:0:0], n.dialogue[over:]...)
	}
}

// enter moves to Dialogue(id, 0). id must be a table key.
func (n *Narrative) enter(id string, reason Reason) {
	n.state = State{SceneID: id, Mode: ModeDialogue}
	n.battle = nil
	n.recordLine()
	n.notify(reason)
}

func (n *Narrative) transition(from State, sceneChanged bool) Transition {
	return Transition{
		From:         from,
		To:           n.state,
		Changed:      from != n.state || sceneChanged,
		SceneChanged: sceneChanged,
	}
}

// Advance moves the dialogue forward. In choices or battle mode it does
// nothing. At the last line it opens the choice menu, follows nextScene, or
// holds on a dead end.
func (n *Narrative) Advance() Transition {
	from := n.state
	if n.state.Mode != ModeDialogue {
		return n.transition(from, false)
	}
	s := n.scene()

	if s.IsBattle {
		n.state = State{SceneID: s.ID, Mode: ModeBattle}
		n.battle = battle.New(n.table.AttacksFor(s))
		return n.transition(from, false)
	}

	if n.state.DialogueIndex+1 < len(s.Dialogues) {
		n.state.DialogueIndex++
		n.recordLine()
		return n.transition(from, false)
	}

	if len(n.available(s)) > 0 {
		n.state = State{SceneID: s.ID, Mode: ModeChoices}
		return n.transition(from, false)
	}
	if s.NextScene != "" {
		n.enter(s.NextScene, ReasonAdvance)
		return n.transition(from, true)
	}
	return n.transition(from, false)
}

// SelectChoice takes the choice with the given id from the current scene. It
// only acts in choices mode. The state is unchanged on error.
func (n *Narrative) SelectChoice(id int) (Transition, error) {
	from := n.state
	if n.state.Mode != ModeChoices {
		return n.transition(from, false), nil
	}
	s := n.scene()

	c, ok := s.Choice(id)
	if !ok {
		return n.transition(from, false), &ChoiceNotFoundError{SceneID: s.ID, ChoiceID: id}
	}
	if c.Condition != nil && !c.Condition.Holds(n.flags, n.path) {
		return n.transition(from, false), fmt.Errorf("%w: choice %d in scene %q", ErrChoiceUnavailable, id, s.ID)
	}

	if p := choicePath(c); p != content.PathNone {
		n.path = p
	}
	for k, v := range c.SetFlags {
		if norm, ok := content.NormalizeFlagValue(v); ok {
			n.flags[k] = norm
		}
	}
	n.choices = append(n.choices, ChoiceRecord{SceneID: s.ID, ChoiceID: id, Timestamp: n.now().UTC()})
	n.enter(c.NextScene, ReasonChoice)
	return n.transition(from, true), nil
}

// choicePath works out which path a choice commits to: the declared path,
// else a keyword in the choice text, else a keyword in the target scene id.
func choicePath(c content.Choice) content.Path {
	if c.Path != content.PathNone {
		return c.Path
	}
	if p := pathKeyword(c.Text); p != content.PathNone {
		return p
	}
	return pathKeyword(c.NextScene)
}

func pathKeyword(s string) content.Path {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "windows"):
		return content.PathWindows
	case strings.Contains(s, "linux"):
		return content.PathLinux
	}
	return content.PathNone
}

// ProcessNextPhase applies the next attack step of the current battle. The
// bool is false when the machine is not in battle mode.
func (n *Narrative) ProcessNextPhase() (battle.PhaseResult, bool) {
	if n.state.Mode != ModeBattle || n.battle == nil {
		return battle.PhaseResult{}, false
	}
	return n.battle.ProcessNextPhase(), true
}

// CompleteBattle leaves battle mode once every phase has been processed. The
// outcome is recorded in the flag "battle.<sceneId>". Defeat goes to the
// scene's defeatScene when it declares one, otherwise to nextScene. With no
// successor the machine stays in battle mode.
func (n *Narrative) CompleteBattle() (Transition, error) {
	from := n.state
	if n.state.Mode != ModeBattle || n.battle == nil {
		return n.transition(from, false), nil
	}
	if !n.battle.IsComplete() {
		return n.transition(from, false), fmt.Errorf("%w: %d of %d phases remaining",
			ErrBattleInProgress, n.battle.Remaining(), n.battle.TotalSteps())
	}

	s := n.scene()
	outcome := n.battle.Outcome()
	next := s.NextScene
	if outcome == battle.OutcomeDefeat && s.DefeatScene != "" {
		next = s.DefeatScene
	}
	if next == "" {
		return n.transition(from, false), nil
	}

	n.flags[BattleFlag(s.ID)] = string(outcome)
	n.enter(next, ReasonBattle)
	return n.transition(from, true), nil
}

// BattleFlag is the flag key holding the outcome of the battle in sceneID.
func BattleFlag(sceneID string) string {
	return "battle." + sceneID
}

// Reset returns to the initial state, discarding progress, flags, history
// and any battle in progress.
func (n *Narrative) Reset() Transition {
	from := n.state
	n.init()
	n.notify(ReasonReset)
	return n.transition(from, true)
}

// AddPlaytime accumulates time reported by the presentation clock.
func (n *Narrative) AddPlaytime(d time.Duration) {
	if d > 0 {
		n.playtime += d
	}
}

func (n *Narrative) Table() *content.Table {
	return n.table
}

func (n *Narrative) State() State {
	return n.state
}

func (n *Narrative) Mode() Mode {
	return n.state.Mode
}

// Path is the story path chosen so far, PathNone until a path-defining
// choice is taken.
func (n *Narrative) Path() content.Path {
	return n.path
}

func (n *Narrative) Playtime() time.Duration {
	return n.playtime
}

// CurrentScene returns the current scene. Callers must not modify it.
func (n *Narrative) CurrentScene() *content.Scene {
	return n.scene()
}

// CurrentDialogue returns the line under the cursor. ok is false outside
// dialogue mode.
func (n *Narrative) CurrentDialogue() (content.Dialogue, bool) {
	s := n.scene()
	if n.state.Mode != ModeDialogue || n.state.DialogueIndex >= len(s.Dialogues) {
		return content.Dialogue{}, false
	}
	return s.Dialogues[n.state.DialogueIndex], true
}

// AvailableChoices lists the choices on offer. It is empty outside choices
// mode.
func (n *Narrative) AvailableChoices() []content.Choice {
	if n.state.Mode != ModeChoices {
		return nil
	}
	return n.available(n.scene())
}

// Flags returns a copy of the flag map.
func (n *Narrative) Flags() map[string]any {
	return maps.Clone(n.flags)
}

// ChoiceHistory returns a copy of the choice history, oldest first.
func (n *Narrative) ChoiceHistory() []ChoiceRecord {
	return append([]ChoiceRecord(nil), n.choices...)
}

// DialogueHistory returns a copy of the retained dialogue lines, oldest first.
func (n *Narrative) DialogueHistory() []DialogueRecord {
	return append([]DialogueRecord(nil), n.dialogue...)
}

// Health is the battle health, full when no battle is running.
func (n *Narrative) Health() battle.Health {
	if n.battle == nil {
		return battle.FullHealth()
	}
	return n.battle.Health()
}

// Outcome is the outcome of the running battle, pending until it completes.
func (n *Narrative) Outcome() battle.Outcome {
	if n.battle == nil {
		return battle.OutcomePending
	}
	return n.battle.Outcome()
}
