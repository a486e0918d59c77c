package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// maxSteps bounds loops such as advance_until so a broken story cannot spin
// forever.
const maxSteps = 200

// Runner executes scripted playthroughs against a running novel-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite plays a suite against a fresh session, which is deleted afterwards
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	created, err := r.createSession(ctx)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = created.SessionID
	defer func() {
		if err := r.deleteSession(context.WithoutCancel(ctx), created.SessionID); err != nil {
			r.Logger("    warning: failed to delete session %s: %v", created.SessionID, err)
		}
	}()

	for i, step := range suite.Steps {
		name := step.Name
		if name == "" {
			name = step.Action
		}
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), name)

		stepResult := r.executeStep(ctx, created.SessionID, step)
		stepResult.StepName = name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep performs one step and checks its expectations
func (r *Runner) executeStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{}

	res, requests, err := r.perform(ctx, id, step)
	result.Requests = requests
	result.Duration = time.Since(start)

	want := http.StatusOK
	if step.Expectations.Status != nil {
		want = *step.Expectations.Status
	}

	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Status != want {
			result.Error = err
			return result
		}
		if s := step.Expectations.ErrorContains; s != "" && !strings.Contains(apiErr.Message, s) {
			result.Error = fmt.Errorf("expected error containing %q, got %q", s, apiErr.Message)
			return result
		}
		result.Success = true
		return result
	case err != nil:
		result.Error = err
		return result
	case want != http.StatusOK:
		result.Error = fmt.Errorf("expected status %d, got success", want)
		return result
	}

	if err := checkExpectations(step.Expectations, res); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// perform sends the requests for a step and returns the last response
func (r *Runner) perform(ctx context.Context, id uuid.UUID, step TestStep) (*handlers.SessionResponse, int, error) {
	switch step.Action {
	case ActionAdvance, ActionBattleNext, ActionBattleComplete, ActionReset:
		op := strings.ReplaceAll(step.Action, "_", "/")
		res, err := r.sessionOp(ctx, id, op, nil)
		return res, 1, err

	case ActionChoice:
		choice := step.Choice
		res, err := r.sessionOp(ctx, id, "choice", handlers.ChoiceRequest{ChoiceID: &choice})
		return res, 1, err

	case ActionPlaytime:
		res, err := r.sessionOp(ctx, id, "playtime", handlers.PlaytimeRequest{Seconds: step.Seconds})
		return res, 1, err

	case ActionSave:
		if err := r.saveSlot(ctx, id, step.Slot); err != nil {
			return nil, 1, err
		}
		var res handlers.SessionResponse
		err := r.send(ctx, http.MethodGet, "/v1/sessions/"+id.String(), nil, &res)
		return &res, 2, err

	case ActionLoad:
		res, err := r.sessionOp(ctx, id, fmt.Sprintf("saves/%d/load", step.Slot), nil)
		return res, 1, err

	case ActionAdvanceUntil:
		return r.advanceUntil(ctx, id, state.Mode(step.Until))

	case ActionBattleFinish:
		return r.battleFinish(ctx, id)
	}
	return nil, 0, fmt.Errorf("unknown action %q", step.Action)
}

// advanceUntil advances until the session reaches mode, or until the scene
// changes when mode is empty. It fails when advancing stops having effect.
func (r *Runner) advanceUntil(ctx context.Context, id uuid.UUID, mode state.Mode) (*handlers.SessionResponse, int, error) {
	for i := 1; i <= maxSteps; i++ {
		res, err := r.sessionOp(ctx, id, "advance", nil)
		if err != nil {
			return nil, i, err
		}
		switch {
		case mode != "" && res.View.Mode == mode:
			return res, i, nil
		case mode == "" && res.Transition != nil && res.Transition.SceneChanged:
			return res, i, nil
		case res.Transition == nil || !res.Transition.Changed:
			return res, i, fmt.Errorf("advance stopped in scene %s (%s) before reaching %q", res.View.SceneID, res.View.Mode, mode)
		}
	}
	return nil, maxSteps, fmt.Errorf("did not reach %q after %d advances", mode, maxSteps)
}

func (r *Runner) battleFinish(ctx context.Context, id uuid.UUID) (*handlers.SessionResponse, int, error) {
	for i := 1; i <= maxSteps; i++ {
		res, err := r.sessionOp(ctx, id, "battle/next", nil)
		if err != nil {
			return nil, i, err
		}
		if res.Phase == nil {
			return res, i, fmt.Errorf("not in battle mode (scene %s, %s)", res.View.SceneID, res.View.Mode)
		}
		if res.Phase.Complete {
			res, err = r.sessionOp(ctx, id, "battle/complete", nil)
			return res, i + 1, err
		}
	}
	return nil, maxSteps, fmt.Errorf("battle did not finish after %d phases", maxSteps)
}

// checkExpectations compares a response with the expected values
func checkExpectations(exp Expectations, res *handlers.SessionResponse) error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	v := res.View

	if exp.SceneID != nil && v.SceneID != *exp.SceneID {
		fail("scene_id: expected %q, got %q", *exp.SceneID, v.SceneID)
	}
	if exp.Mode != nil && string(v.Mode) != *exp.Mode {
		fail("mode: expected %q, got %q", *exp.Mode, v.Mode)
	}
	if exp.Path != nil && string(v.Path) != *exp.Path {
		fail("path: expected %q, got %q", *exp.Path, v.Path)
	}
	if exp.Ended != nil && v.Ended != *exp.Ended {
		fail("ended: expected %v, got %v", *exp.Ended, v.Ended)
	}
	if exp.PlaytimeSeconds != nil && v.PlaytimeSeconds != *exp.PlaytimeSeconds {
		fail("playtime_seconds: expected %d, got %d", *exp.PlaytimeSeconds, v.PlaytimeSeconds)
	}
	if exp.SceneChanged != nil {
		got := res.Transition != nil && res.Transition.SceneChanged
		if got != *exp.SceneChanged {
			fail("scene_changed: expected %v, got %v", *exp.SceneChanged, got)
		}
	}

	if exp.Speaker != nil || len(exp.LineContains) > 0 {
		if v.Dialogue == nil {
			fail("expected a dialogue line, got mode %q", v.Mode)
		} else {
			if exp.Speaker != nil && v.Dialogue.Speaker != *exp.Speaker {
				fail("speaker: expected %q, got %q", *exp.Speaker, v.Dialogue.Speaker)
			}
			for _, s := range exp.LineContains {
				if !strings.Contains(v.Dialogue.Text, s) {
					fail("line %q does not contain %q", v.Dialogue.Text, s)
				}
			}
		}
	}

	if exp.Choices != nil {
		got := make([]int, 0, len(v.Choices))
		for _, c := range v.Choices {
			got = append(got, c.ID)
		}
		if !slices.Equal(got, exp.Choices) {
			fail("choices: expected %v, got %v", exp.Choices, got)
		}
	}

	for key, want := range exp.Flags {
		got, ok := v.Flags[key]
		// Numbers decode as int from YAML and float64 from JSON
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			fail("flag %s: expected %v, got %v", key, want, got)
		}
	}

	if exp.AllyHP != nil || exp.EnemyHP != nil || exp.Outcome != nil {
		var health struct{ ally, enemy int }
		var outcome string
		switch {
		case res.Phase != nil:
			health.ally, health.enemy = res.Phase.Health.Ally, res.Phase.Health.Enemy
		case v.Battle != nil:
			health.ally, health.enemy = v.Battle.Health.Ally, v.Battle.Health.Enemy
		default:
			fail("expected battle state, got mode %q", v.Mode)
		}
		if v.Battle != nil {
			outcome = string(v.Battle.Outcome)
		}
		if exp.AllyHP != nil && health.ally != *exp.AllyHP {
			fail("ally_hp: expected %d, got %d", *exp.AllyHP, health.ally)
		}
		if exp.EnemyHP != nil && health.enemy != *exp.EnemyHP {
			fail("enemy_hp: expected %d, got %d", *exp.EnemyHP, health.enemy)
		}
		if exp.Outcome != nil && outcome != *exp.Outcome {
			fail("outcome: expected %q, got %q", *exp.Outcome, outcome)
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
