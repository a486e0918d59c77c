// Package content holds the authored scene table: scenes, dialogue lines, choices
// and battle scripts. Tables are read-only once loaded and validated.
package content

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Atmosphere is the mood of a scene, used for theming and audio.
type Atmosphere string

const (
	AtmosphereNeutral Atmosphere = "neutral"
	AtmosphereWindows Atmosphere = "windows"
	AtmosphereLinux   Atmosphere = "linux"
	AtmosphereChaos   Atmosphere = "chaos"
	AtmosphereVictory Atmosphere = "victory"
)

// Valid reports whether a is one of the known atmospheres.
func (a Atmosphere) Valid() bool {
	switch a {
	case AtmosphereNeutral, AtmosphereWindows, AtmosphereLinux, AtmosphereChaos, AtmosphereVictory:
		return true
	}
	return false
}

// Position is where a speaker's sprite stands on screen.
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
)

func (p Position) Valid() bool {
	switch p {
	case "", PositionLeft, PositionCenter, PositionRight:
		return true
	}
	return false
}

// Path is the coarse story branch chosen by the player. The zero value means
// no path has been chosen yet.
type Path string

const (
	PathNone    Path = ""
	PathWindows Path = "windows"
	PathLinux   Path = "linux"
)

func (p Path) Valid() bool {
	switch p {
	case PathNone, PathWindows, PathLinux:
		return true
	}
	return false
}

// Side identifies a party in a scripted battle.
type Side string

const (
	SideAlly  Side = "ally"
	SideEnemy Side = "enemy"
)

func (s Side) Valid() bool {
	return s == SideAlly || s == SideEnemy
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideAlly {
		return SideEnemy
	}
	return SideAlly
}

// Speakers that never need to be declared in Table.Characters.
const (
	SpeakerNarrator = "narrator"
	SpeakerPlayer   = "player"
)

// Dialogue is one line of text attributed to a speaker.
type Dialogue struct {
	Speaker  string   `json:"speaker" yaml:"speaker"`
	Text     string   `json:"text" yaml:"text"`
	Position Position `json:"position,omitempty" yaml:"position,omitempty"`
	Emotion  string   `json:"emotion,omitempty" yaml:"emotion,omitempty"`
}

// Choice is a player decision offered at the end of a scene. IDs are only
// unique within the scene that declares them.
type Choice struct {
	ID          int            `json:"id" yaml:"id"`
	Text        string         `json:"text" yaml:"text"`
	NextScene   string         `json:"nextScene" yaml:"nextScene"`
	Consequence string         `json:"consequence,omitempty" yaml:"consequence,omitempty"`
	Path        Path           `json:"path,omitempty" yaml:"path,omitempty"`         // Sets the story path explicitly
	SetFlags    map[string]any `json:"setFlags,omitempty" yaml:"setFlags,omitempty"` // Flags applied on selection
	Condition   *Condition     `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// AttackStep is one scripted entry of a battle. Side is the acting party:
// damage lands on the opponent, heal on the actor.
type AttackStep struct {
	Side   Side   `json:"side" yaml:"side"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Damage int    `json:"damage" yaml:"damage"`
	Heal   int    `json:"heal,omitempty" yaml:"heal,omitempty"`
}

// Scene is a single authored unit of story.
type Scene struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Atmosphere  Atmosphere   `json:"atmosphere" yaml:"atmosphere"`
	BGM         string       `json:"bgm,omitempty" yaml:"bgm,omitempty"`
	Dialogues   []Dialogue   `json:"dialogues" yaml:"dialogues"`
	Choices     []Choice     `json:"choices,omitempty" yaml:"choices,omitempty"`
	NextScene   string       `json:"nextScene,omitempty" yaml:"nextScene,omitempty"`
	DefeatScene string       `json:"defeatScene,omitempty" yaml:"defeatScene,omitempty"` // Battle successor on defeat
	IsBattle    bool         `json:"isBattle,omitempty" yaml:"isBattle,omitempty"`
	Ending      bool         `json:"ending,omitempty" yaml:"ending,omitempty"` // Deliberate dead end
	Attacks     []AttackStep `json:"attacks,omitempty" yaml:"attacks,omitempty"`
}

// Choice looks up a choice by id within this scene only.
func (s *Scene) Choice(id int) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Track returns the background music id associated with the scene.
func (s *Scene) Track() string {
	if s.BGM != "" {
		return s.BGM
	}
	if s.IsBattle {
		return "battle"
	}
	switch s.Atmosphere {
	case AtmosphereNeutral, "":
		return "intro"
	default:
		return string(s.Atmosphere)
	}
}

// Table is the full content set for one story.
type Table struct {
	Title      string            `json:"title" yaml:"title"`
	EntryScene string            `json:"entryScene" yaml:"entryScene"`
	Characters map[string]string `json:"characters,omitempty" yaml:"characters,omitempty"` // id -> display name
	Attacks    []AttackStep      `json:"attacks,omitempty" yaml:"attacks,omitempty"`       // Default battle script
	Scenes     map[string]*Scene `json:"scenes" yaml:"scenes"`

	validated bool
}

// Scene returns the scene with the given id. Callers must not modify it.
func (t *Table) Scene(id string) (*Scene, bool) {
	s, ok := t.Scenes[id]
	return s, ok
}

// AttacksFor returns the battle script for a scene, falling back to the
// table-wide default.
func (t *Table) AttacksFor(s *Scene) []AttackStep {
	if len(s.Attacks) > 0 {
		return s.Attacks
	}
	return t.Attacks
}

// Validated reports whether the last Validate call accepted this table. It
// does not notice changes made to the table afterwards.
func (t *Table) Validated() bool {
	return t.validated
}

// SpeakerName returns the display name for a speaker id.
func (t *Table) SpeakerName(speaker string) string {
	if name, ok := t.Characters[speaker]; ok && name != "" {
		return name
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.Und).String(strings.ReplaceAll(speaker, "_", " "))
}
