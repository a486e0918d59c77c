package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	table, _, err := content.Load("../../data/scenes/tux_adventure.yaml")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := storage.NewMockStorage()

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(table, store, logger))
	sessions := handlers.NewSessionHandler(table, store, store, nil, logger)
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newAPIClient(srv.URL, srv.Client())
}

// playToChoices advances until the session offers choices.
func playToChoices(t *testing.T, api *apiClient, res *handlers.SessionResponse) *handlers.SessionResponse {
	t.Helper()
	for i := 0; res.View.Mode != state.ModeChoices; i++ {
		require.Less(t, i, 50, "never reached a choice")
		var err error
		res, err = api.advance(res.SessionID)
		require.NoError(t, err)
	}
	return res
}

func TestAPIClient_Playthrough(t *testing.T) {
	api := newTestAPI(t)
	require.True(t, api.testConnection())

	res, err := api.createSession()
	require.NoError(t, err)
	assert.Equal(t, "intro", res.View.SceneID)

	res = playToChoices(t, api, res)
	require.NotEmpty(t, res.View.Choices)

	res, err = api.choose(res.SessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, "linux_path", res.View.SceneID)
	assert.Equal(t, content.PathLinux, res.View.Path)
	assert.Equal(t, true, res.View.Flags["joined_linux"])

	_, err = api.choose(res.SessionID, 1)
	require.NoError(t, err, "a choice outside choices mode is ignored")

	got, err := api.getSession(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "linux_path", got.View.SceneID)
}

func TestAPIClient_ChoiceErrors(t *testing.T) {
	api := newTestAPI(t)
	res, err := api.createSession()
	require.NoError(t, err)
	res = playToChoices(t, api, res)

	_, err = api.choose(res.SessionID, 99)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "99"), "error should name the choice: %v", err)
}

func TestAPIClient_SaveAndLoad(t *testing.T) {
	api := newTestAPI(t)
	res, err := api.createSession()
	require.NoError(t, err)
	id := res.SessionID

	save, err := api.save(id, 1)
	require.NoError(t, err)
	assert.Equal(t, "intro", save.SceneID)

	res = playToChoices(t, api, res)
	_, err = api.choose(id, 1)
	require.NoError(t, err)

	saves, err := api.listSaves(id)
	require.NoError(t, err)
	require.Len(t, saves, 1)

	res, err = api.load(id, 1)
	require.NoError(t, err)
	assert.Equal(t, "intro", res.View.SceneID)
	assert.Empty(t, res.View.Path)

	_, err = api.load(id, 2)
	require.Error(t, err)

	require.NoError(t, api.addPlaytime(id, 45))
	res, err = api.reset(id)
	require.NoError(t, err)
	assert.Zero(t, res.View.PlaytimeSeconds)
}
