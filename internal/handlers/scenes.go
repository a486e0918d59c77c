package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/jwebster45206/novel-engine/pkg/content"
)

const scenesPrefix = "/v1/scenes"

type SceneSummary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Atmosphere content.Atmosphere `json:"atmosphere"`
	Track      string             `json:"track"`
	IsBattle   bool               `json:"is_battle,omitempty"`
	Ending     bool               `json:"ending,omitempty"`
	Lines      int                `json:"lines"`
	Choices    int                `json:"choices"`
}

type SceneListResponse struct {
	Title      string         `json:"title"`
	EntryScene string         `json:"entry_scene"`
	Scenes     []SceneSummary `json:"scenes"`
}

// ScenesHandler serves the loaded content read-only.
type ScenesHandler struct {
	table  *content.Table
	logger *slog.Logger
}

func NewScenesHandler(table *content.Table, logger *slog.Logger) *ScenesHandler {
	return &ScenesHandler{table: table, logger: logger}
}

// ServeHTTP handles HTTP requests for scenes
// Routes:
// GET /v1/scenes      - List scenes
// GET /v1/scenes/{id} - Full scene, including dialogue and choices
func (h *ScenesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	parts := pathParts(r.URL.Path, scenesPrefix)
	switch len(parts) {
	case 0:
		h.handleList(w)
	case 1:
		scene, ok := h.table.Scene(parts[0])
		if !ok {
			writeError(w, h.logger, http.StatusNotFound, "Scene not found")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, scene)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Invalid path. Expected /v1/scenes/{id}")
	}
}

func (h *ScenesHandler) handleList(w http.ResponseWriter) {
	res := SceneListResponse{
		Title:      h.table.Title,
		EntryScene: h.table.EntryScene,
		Scenes:     make([]SceneSummary, 0, len(h.table.Scenes)),
	}
	for _, s := range h.table.Scenes {
		res.Scenes = append(res.Scenes, SceneSummary{
			ID:         s.ID,
			Title:      s.Title,
			Atmosphere: s.Atmosphere,
			Track:      s.Track(),
			IsBattle:   s.IsBattle,
			Ending:     s.Ending,
			Lines:      len(s.Dialogues),
			Choices:    len(s.Choices),
		})
	}
	slices.SortFunc(res.Scenes, func(a, b SceneSummary) int {
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, h.logger, http.StatusOK, res)
}
