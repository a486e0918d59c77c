package runner

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInProcessRunner serves the bundled story from an in-memory store.
func newInProcessRunner(t *testing.T) (*Runner, *storage.MockStorage) {
	t.Helper()
	table, _, err := content.Load("../../data/scenes/tux_adventure.yaml")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := storage.NewMockStorage()
	sessions := handlers.NewSessionHandler(table, store, store, nil, logger)
	mux := http.NewServeMux()
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r := NewRunner(srv.URL + "/")
	r.Client = srv.Client()
	r.ErrorHandlingMode = ErrorHandlingExit
	r.Logger = t.Logf
	return r, store
}

func TestCases(t *testing.T) {
	r, _ := newInProcessRunner(t)

	jobs, err := LoadTestSuiteWithExpansion("../cases/all.yaml", "../cases")
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for _, job := range jobs {
		t.Run(job.Name, func(t *testing.T) {
			result, err := r.RunSuite(context.Background(), job.Suite)
			require.NoError(t, err)
			for _, step := range result.Results {
				assert.True(t, step.Success, "step %s failed: %v", step.StepName, step.Error)
			}
		})
	}
}

func TestRunSuite_DeletesSession(t *testing.T) {
	r, store := newInProcessRunner(t)

	result, err := r.RunSuite(context.Background(), TestSuite{
		Name:  "one step",
		Steps: []TestStep{{Action: ActionAdvance}},
	})
	require.NoError(t, err)

	sess, err := store.LoadSession(context.Background(), result.Session)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	r, _ := newInProcessRunner(t)
	r.ErrorHandlingMode = ErrorHandlingContinue
	wrong := "nowhere"

	result, err := r.RunSuite(context.Background(), TestSuite{
		Name: "failing",
		Steps: []TestStep{
			{Name: "wrong scene", Action: ActionAdvance, Expectations: Expectations{SceneID: &wrong}},
			{Name: "unknown action", Action: "jump"},
			{Name: "fine", Action: ActionAdvance},
		},
	})
	require.Error(t, err)
	require.Len(t, result.Results, 3, "continue mode runs every step")
	assert.Contains(t, result.Results[0].Error.Error(), `scene_id: expected "nowhere", got "intro"`)
	assert.Contains(t, result.Results[1].Error.Error(), "unknown action")
	assert.True(t, result.Results[2].Success)
}

func TestRunSuite_AdvanceUntilStuck(t *testing.T) {
	r, _ := newInProcessRunner(t)

	result, err := r.RunSuite(context.Background(), TestSuite{
		Name: "stuck",
		Steps: []TestStep{
			{Action: ActionAdvanceUntil, Until: string(state.ModeChoices)},
			{Action: ActionAdvanceUntil, Until: string(state.ModeBattle)},
		},
	})
	require.Error(t, err)
	assert.Contains(t, result.Results[1].Error.Error(), "advance stopped in scene intro")
}

func TestCheckExpectations(t *testing.T) {
	res := &handlers.SessionResponse{
		View: state.View{
			SceneID: "final_battle",
			Mode:    state.ModeBattle,
			Flags:   map[string]any{"hours": float64(2), "joined_linux": true},
			Battle:  &state.BattleView{Health: battle.Health{Ally: 55, Enemy: 0}, Complete: true, Outcome: battle.OutcomeVictory},
		},
	}
	ally, enemy, outcome := 55, 0, "victory"
	ok := Expectations{
		AllyHP:  &ally,
		EnemyHP: &enemy,
		Outcome: &outcome,
		Flags:   map[string]any{"hours": 2, "joined_linux": true},
	}
	assert.NoError(t, checkExpectations(ok, res))

	mode := "dialogue"
	err := checkExpectations(Expectations{Mode: &mode, Speaker: &mode, Choices: []int{1}}, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode:")
	assert.Contains(t, err.Error(), "expected a dialogue line")
	assert.Contains(t, err.Error(), "choices:")
}

func TestLoadTestSuite_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nsteps:\n  - action: advance\n    expect: { scene: intro }\n"), 0o644))

	_, err := LoadTestSuite(path)
	require.Error(t, err)
}
