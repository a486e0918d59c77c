package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions
const (
	ActionAdvance        = "advance"
	ActionAdvanceUntil   = "advance_until" // Advance until Until mode is reached or the scene changes
	ActionChoice         = "choice"
	ActionBattleNext     = "battle_next"
	ActionBattleComplete = "battle_complete"
	ActionBattleFinish   = "battle_finish" // Process every remaining phase, then complete
	ActionReset          = "reset"
	ActionSave           = "save"
	ActionLoad           = "load"
	ActionPlaytime       = "playtime"
)

// TestSuite defines a complete scripted playthrough
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `yaml:"name"`
	Steps []TestStep `yaml:"steps,omitempty"` // Used for regular tests
	Cases []string   `yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one operation against the session and its expected outcome
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Action       string       `yaml:"action"`
	Choice       int          `yaml:"choice,omitempty"`
	Slot         int          `yaml:"slot,omitempty"`
	Seconds      int64        `yaml:"seconds,omitempty"`
	Until        string       `yaml:"until,omitempty"` // Mode for advance_until
	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a step executes. Unset fields
// are not checked.
type Expectations struct {
	Status          *int           `yaml:"status,omitempty"` // HTTP status, 200 when unset
	SceneID         *string        `yaml:"scene_id,omitempty"`
	Mode            *string        `yaml:"mode,omitempty"`
	Path            *string        `yaml:"path,omitempty"`
	Ended           *bool          `yaml:"ended,omitempty"`
	Speaker         *string        `yaml:"speaker,omitempty"`
	LineContains    []string       `yaml:"line_contains,omitempty"`
	Choices         []int          `yaml:"choices,omitempty"` // Offered choice ids, in order
	Flags           map[string]any `yaml:"flags,omitempty"`
	AllyHP          *int           `yaml:"ally_hp,omitempty"`
	EnemyHP         *int           `yaml:"enemy_hp,omitempty"`
	Outcome         *string        `yaml:"outcome,omitempty"` // Battle outcome in the view
	PlaytimeSeconds *int64         `yaml:"playtime_seconds,omitempty"`
	SceneChanged    *bool          `yaml:"scene_changed,omitempty"`
	ErrorContains   string         `yaml:"error_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Requests int
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Session  uuid.UUID
	Results  []TestResult
	Duration time.Duration
	Error    error
}
