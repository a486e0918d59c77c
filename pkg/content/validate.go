package content

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrContentIntegrity matches any *IntegrityError via errors.Is.
var ErrContentIntegrity = errors.New("content integrity error")

// Problem is one integrity failure found while validating a table.
type Problem struct {
	SceneID string `json:"scene_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.SceneID != "" {
		fmt.Fprintf(&b, "scene %q: ", p.SceneID)
	}
	if p.Field != "" {
		b.WriteString(p.Field + ": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// IntegrityError collects every problem found in a table. A table that
// produces one must not be played.
type IntegrityError struct {
	Problems []Problem
}

func (e *IntegrityError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.String())
	}
	return fmt.Sprintf("content integrity: %d problem(s):\n%s", len(e.Problems), strings.Join(lines, "\n"))
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrContentIntegrity
}

// Warning is a non-fatal authoring issue.
type Warning struct {
	SceneID string `json:"scene_id"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("scene %q: %s", w.SceneID, w.Message)
}

type validator struct {
	t        *Table
	problems []Problem
	warnings []Warning
}

func (v *validator) fail(sceneID, field, format string, args ...any) {
	v.problems = append(v.problems, Problem{SceneID: sceneID, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warn(sceneID, format string, args ...any) {
	v.warnings = append(v.warnings, Warning{SceneID: sceneID, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) exists(id string) bool {
	_, ok := v.t.Scenes[id]
	return ok
}

// Validate checks every reference and enum in the table. It returns an
// *IntegrityError when the table cannot be played, and warnings for dead-end
// scenes that are not marked as endings. The table is marked validated only
// when this run passes.
func Validate(t *Table) ([]Warning, error) {
	if t == nil {
		return nil, &IntegrityError{Problems: []Problem{{Message: "table is nil"}}}
	}
	warnings, err := Check(t)
	t.validated = err == nil
	return warnings, err
}

// Check runs the same checks as Validate without marking the table, so it is
// safe on a table shared between goroutines.
func Check(t *Table) ([]Warning, error) {
	if t == nil {
		return nil, &IntegrityError{Problems: []Problem{{Message: "table is nil"}}}
	}
	v := &validator{t: t}

	if len(t.Scenes) == 0 {
		v.fail("", "scenes", "table has no scenes")
	}
	if t.EntryScene == "" {
		v.fail("", "entryScene", "entry scene is required")
	} else if !v.exists(t.EntryScene) {
		v.fail("", "entryScene", "entry scene %q does not exist", t.EntryScene)
	}
	for i, step := range t.Attacks {
		v.validateAttack("", fmt.Sprintf("attacks[%d]", i), step)
	}

	// Sorted for stable problem ordering.
	for _, id := range slices.Sorted(maps.Keys(t.Scenes)) {
		v.validateScene(id, t.Scenes[id])
	}

	if len(v.problems) > 0 {
		return v.warnings, &IntegrityError{Problems: v.problems}
	}
	return v.warnings, nil
}

func (v *validator) validateScene(key string, s *Scene) {
	if s == nil {
		v.fail(key, "", "scene is empty")
		return
	}
	if s.ID != key {
		v.fail(key, "id", "scene id %q does not match its table key", s.ID)
	}
	if !s.Atmosphere.Valid() {
		v.fail(key, "atmosphere", "unknown atmosphere %q", s.Atmosphere)
	}

	if len(s.Dialogues) == 0 && !s.IsBattle {
		v.fail(key, "dialogues", "scene has no dialogue")
	}
	for i, d := range s.Dialogues {
		field := fmt.Sprintf("dialogues[%d]", i)
		if strings.TrimSpace(d.Text) == "" {
			v.fail(key, field, "dialogue text is empty")
		}
		if d.Speaker == "" {
			v.fail(key, field, "speaker is required")
		} else if len(v.t.Characters) > 0 && d.Speaker != SpeakerNarrator && d.Speaker != SpeakerPlayer {
			if _, ok := v.t.Characters[d.Speaker]; !ok {
				v.fail(key, field, "speaker %q is not a declared character", d.Speaker)
			}
		}
		if !d.Position.Valid() {
			v.fail(key, field, "unknown position %q", d.Position)
		}
	}

	seen := make(map[int]bool, len(s.Choices))
	for _, c := range s.Choices {
		field := fmt.Sprintf("choice %d", c.ID)
		if seen[c.ID] {
			v.fail(key, field, "duplicate choice id")
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Text) == "" {
			v.fail(key, field, "choice text is empty")
		}
		if c.NextScene == "" {
			v.fail(key, field, "nextScene is required")
		} else if !v.exists(c.NextScene) {
			v.fail(key, field, "nextScene %q does not exist", c.NextScene)
		}
		if !c.Path.Valid() {
			v.fail(key, field, "unknown path %q", c.Path)
		}
		for flag, value := range c.SetFlags {
			if _, ok := NormalizeFlagValue(value); !ok {
				v.fail(key, field, "flag %q must be a bool, number or string", flag)
			}
		}
		if c.Condition != nil {
			if msg := c.Condition.check(); msg != "" {
				v.fail(key, field, "%s", msg)
			}
		}
	}

	if s.NextScene != "" && !v.exists(s.NextScene) {
		v.fail(key, "nextScene", "nextScene %q does not exist", s.NextScene)
	}
	if s.DefeatScene != "" {
		if !s.IsBattle {
			v.fail(key, "defeatScene", "defeatScene is only allowed on battle scenes")
		} else if !v.exists(s.DefeatScene) {
			v.fail(key, "defeatScene", "defeatScene %q does not exist", s.DefeatScene)
		}
	}

	if s.IsBattle {
		if s.NextScene == "" {
			v.fail(key, "nextScene", "battle scene must declare nextScene")
		}
		if len(v.t.AttacksFor(s)) == 0 {
			v.fail(key, "attacks", "battle scene has no attack steps")
		}
		for i, step := range s.Attacks {
			v.validateAttack(key, fmt.Sprintf("attacks[%d]", i), step)
		}
	} else if len(s.Attacks) > 0 {
		v.fail(key, "attacks", "attack steps are only allowed on battle scenes")
	}

	if !s.IsBattle && len(s.Choices) == 0 && s.NextScene == "" && !s.Ending {
		v.warn(key, "dead end: no choices and no nextScene, and not marked as an ending")
	}
}

func (v *validator) validateAttack(sceneID, field string, step AttackStep) {
	if !step.Side.Valid() {
		v.fail(sceneID, field, "unknown side %q", step.Side)
	}
	if step.Damage < 0 {
		v.fail(sceneID, field, "damage must not be negative")
	}
	if step.Heal < 0 {
		v.fail(sceneID, field, "heal must not be negative")
	}
}
