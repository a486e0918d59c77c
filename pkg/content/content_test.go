package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScene_Track(t *testing.T) {
	tests := []struct {
		scene Scene
		want  string
	}{
		{Scene{Atmosphere: AtmosphereNeutral}, "intro"},
		{Scene{Atmosphere: AtmosphereLinux}, "linux"},
		{Scene{Atmosphere: AtmosphereChaos, IsBattle: true}, "battle"},
		{Scene{Atmosphere: AtmosphereVictory}, "victory"},
		{Scene{Atmosphere: AtmosphereWindows, BGM: "boss_theme"}, "boss_theme"},
	}
	for _, tt := range tests {
		if got := tt.scene.Track(); got != tt.want {
			t.Errorf("Track() for %+v = %q, want %q", tt.scene, got, tt.want)
		}
	}
}

func TestScene_ChoiceLookupIsLocal(t *testing.T) {
	table := validTable()
	intro := table.Scenes["intro"]

	c, ok := intro.Choice(2)
	if !ok || c.NextScene != "linux_path" {
		t.Fatalf("expected choice 2 -> linux_path, got %+v (found=%v)", c, ok)
	}
	if _, ok := table.Scenes["end"].Choice(2); ok {
		t.Error("choice ids must resolve against the owning scene only")
	}
}

func TestTable_SpeakerName(t *testing.T) {
	table := &Table{Characters: map[string]string{"gates": "Microsoft Omega"}}

	if got := table.SpeakerName("gates"); got != "Microsoft Omega" {
		t.Errorf("declared character: got %q", got)
	}
	if got := table.SpeakerName("narrator"); got != "Narrator" {
		t.Errorf("fallback title case: got %q", got)
	}
	if got := table.SpeakerName("debian_student"); got != "Debian Student" {
		t.Errorf("underscore fallback: got %q", got)
	}
}

func TestCondition_Holds(t *testing.T) {
	flags := map[string]any{"bugs_fixed": 3.0, "met_tux": true, "os": "debian"}

	tests := []struct {
		name string
		cond Condition
		path Path
		want bool
	}{
		{"path equals", Condition{Type: ConditionPath, Operator: "==", Value: "linux"}, PathLinux, true},
		{"path differs", Condition{Type: ConditionPath, Operator: "==", Value: "linux"}, PathWindows, false},
		{"path not set", Condition{Type: ConditionPath, Operator: "!=", Value: "windows"}, PathNone, true},
		{"number gte with int value", Condition{Type: ConditionFlag, Key: "bugs_fixed", Operator: ">=", Value: 3}, PathNone, true},
		{"number lt", Condition{Type: ConditionFlag, Key: "bugs_fixed", Operator: "<", Value: 2}, PathNone, false},
		{"bool equals", Condition{Type: ConditionFlag, Key: "met_tux", Operator: "==", Value: true}, PathNone, true},
		{"string equals variable", Condition{Type: ConditionVariable, Key: "os", Operator: "==", Value: "debian"}, PathNone, true},
		{"ordering on strings", Condition{Type: ConditionFlag, Key: "os", Operator: ">", Value: "arch"}, PathNone, false},
		{"missing flag equals", Condition{Type: ConditionFlag, Key: "unset", Operator: "==", Value: false}, PathNone, false},
		{"missing flag not equals", Condition{Type: ConditionFlag, Key: "unset", Operator: "!=", Value: true}, PathNone, true},
		{"type mismatch", Condition{Type: ConditionFlag, Key: "bugs_fixed", Operator: "==", Value: "3"}, PathNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Holds(flags, tt.path); got != tt.want {
				t.Errorf("Holds() = %v, want %v", got, tt.want)
			}
		})
	}
}

const yamlTable = `
title: Mini
entryScene: intro
scenes:
  intro:
    atmosphere: neutral
    dialogues:
      - { speaker: narrator, text: "Pick one" }
    choices:
      - { id: 1, text: Go, nextScene: end, setFlags: { visits: 1 } }
  end:
    atmosphere: victory
    ending: true
    dialogues:
      - { speaker: narrator, text: "Done" }
`

const jsonTable = `{
  "title": "Mini",
  "entryScene": "intro",
  "scenes": {
    "intro": {
      "id": "intro",
      "title": "Intro",
      "atmosphere": "neutral",
      "dialogues": [{"speaker": "narrator", "text": "Pick one"}],
      "choices": [{"id": 1, "text": "Go", "nextScene": "end", "setFlags": {"visits": 1}}]
    },
    "end": {
      "id": "end",
      "title": "End",
      "atmosphere": "victory",
      "ending": true,
      "dialogues": [{"speaker": "narrator", "text": "Done"}]
    }
  }
}`

func TestDecode_Formats(t *testing.T) {
	for _, tc := range []struct {
		format Format
		data   string
	}{
		{FormatYAML, yamlTable},
		{FormatJSON, jsonTable},
	} {
		t.Run(string(tc.format), func(t *testing.T) {
			table, err := Decode([]byte(tc.data), tc.format)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if _, err := Validate(table); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			intro, _ := table.Scene("intro")
			if intro.ID != "intro" {
				t.Errorf("scene id should be filled from key, got %q", intro.ID)
			}
			// Both decoders end up with the same number type.
			if v, ok := intro.Choices[0].SetFlags["visits"].(float64); !ok || v != 1 {
				t.Errorf("expected normalized float64 flag, got %#v", intro.Choices[0].SetFlags["visits"])
			}
		})
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(yamlTable, "ending: true", "ending: true\n    soundtrack: x", 1)
	if _, err := Decode([]byte(bad), FormatYAML); err == nil {
		t.Error("expected yaml unknown field to be rejected")
	}
	badJSON := strings.Replace(jsonTable, `"title": "Mini"`, `"title": "Mini", "author": "me"`, 1)
	if _, err := Decode([]byte(badJSON), FormatJSON); err == nil {
		t.Error("expected json unknown field to be rejected")
	}
}

func TestFormatFor(t *testing.T) {
	if f, err := FormatFor("story.YML"); err != nil || f != FormatYAML {
		t.Errorf("story.YML: %v %v", f, err)
	}
	if f, err := FormatFor("story.json"); err != nil || f != FormatJSON {
		t.Errorf("story.json: %v %v", f, err)
	}
	if _, err := FormatFor("story.toml"); err == nil {
		t.Error("expected error for .toml")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.yaml")
	if err := os.WriteFile(path, []byte(yamlTable), 0o644); err != nil {
		t.Fatal(err)
	}

	table, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if !table.Validated() {
		t.Error("loaded table should be validated")
	}

	if _, _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_BundledStory(t *testing.T) {
	table, warnings, err := Load(filepath.Join("..", "..", "data", "scenes", "tux_adventure.yaml"))
	if err != nil {
		t.Fatalf("bundled story must validate: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("bundled story has warnings: %v", warnings)
	}
	battle, ok := table.Scene("final_battle")
	if !ok || !battle.IsBattle {
		t.Fatal("expected final_battle to be a battle scene")
	}
	if got := len(table.AttacksFor(battle)); got != 9 {
		t.Errorf("expected 9 default attack steps, got %d", got)
	}
}
