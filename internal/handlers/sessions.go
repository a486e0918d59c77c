package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/metrics"
	"github.com/jwebster45206/novel-engine/internal/services/events"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

const sessionsPrefix = "/v1/sessions"

// maxPlaytimeReport caps a single playtime report from a client.
const maxPlaytimeReport = time.Hour

// SessionResponse is returned by every session operation.
type SessionResponse struct {
	SessionID  uuid.UUID           `json:"session_id"`
	View       state.View          `json:"view"`
	Transition *state.Transition   `json:"transition,omitempty"`
	Phase      *battle.PhaseResult `json:"phase,omitempty"`
}

type ChoiceRequest struct {
	ChoiceID *int `json:"choice_id"`
}

type PlaytimeRequest struct {
	Seconds int64 `json:"seconds"`
}

// SessionHandler owns sessions: each request rehydrates a Narrative from the
// stored snapshot, applies one operation and writes the snapshot back.
type SessionHandler struct {
	table     *content.Table
	storage   storage.Storage
	saves     storage.SaveStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSessionHandler builds the handler. saves and publisher may be nil, which
// disables save slots and event publication.
func NewSessionHandler(table *content.Table, store storage.Storage, saves storage.SaveStore, publisher events.Publisher, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		table:     table,
		storage:   store,
		saves:     saves,
		publisher: publisher,
		logger:    logger,
	}
}

// ServeHTTP handles HTTP requests for sessions
// Routes:
// POST   /v1/sessions                            - Start a new session
// GET    /v1/sessions/{id}                       - Current view
// DELETE /v1/sessions/{id}                       - Delete session
// POST   /v1/sessions/{id}/advance               - Advance dialogue
// POST   /v1/sessions/{id}/choice                - Select a choice
// POST   /v1/sessions/{id}/battle/next           - Process the next battle phase
// POST   /v1/sessions/{id}/battle/complete       - Leave a finished battle
// POST   /v1/sessions/{id}/reset                 - Reset to the entry scene
// POST   /v1/sessions/{id}/playtime              - Add playtime
// *      /v1/sessions/{id}/saves[/{slot}[/load]] - Save slots
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, sessionsPrefix)

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	log := logger.WithSession(h.logger, id)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id, log)
		case http.MethodDelete:
			h.handleDelete(w, r, id, log)
		default:
			writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	if parts[1] == "saves" {
		h.serveSaves(w, r, id, parts[2:], log)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	switch op := joinOp(parts[1:]); op {
	case "advance":
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			tr := n.Advance()
			res.Transition = &tr
			return nil
		})
	case "choice":
		var req ChoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChoiceID == nil {
			writeError(w, log, http.StatusBadRequest, "Request body must be JSON with a choice_id")
			return
		}
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			tr, err := n.SelectChoice(*req.ChoiceID)
			res.Transition = &tr
			return err
		})
	case "battle/next":
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			result, ok := n.ProcessNextPhase()
			if ok {
				res.Phase = &result
			}
			return nil
		})
	case "battle/complete":
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			tr, err := n.CompleteBattle()
			res.Transition = &tr
			return err
		})
	case "reset":
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			tr := n.Reset()
			res.Transition = &tr
			return nil
		})
	case "playtime":
		var req PlaytimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds < 0 {
			writeError(w, log, http.StatusBadRequest, "Request body must be JSON with non-negative seconds")
			return
		}
		d := min(time.Duration(req.Seconds)*time.Second, maxPlaytimeReport)
		h.apply(w, r, id, log, op, func(n *state.Narrative, res *SessionResponse) error {
			n.AddPlaytime(d)
			return nil
		})
	default:
		writeError(w, log, http.StatusNotFound, "Unknown session operation")
	}
}

func joinOp(parts []string) string {
	if len(parts) == 2 && parts[0] == "battle" {
		return "battle/" + parts[1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	n, err := state.NewNarrative(h.table)
	if err != nil {
		h.logger.Error("Failed to start narrative", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to start session")
		return
	}
	sess := state.NewSession(n)
	if err := h.storage.SaveSession(r.Context(), sess); err != nil {
		h.logger.Error("Failed to save new session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}
	metrics.SessionsCreated.Inc()
	h.logger.Info("Session created", "session_id", sess.ID, "entry_scene", h.table.EntryScene)

	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{SessionID: sess.ID, View: n.View()})
}

// load fetches a session and rehydrates it. It writes the error response
// itself and returns nil when the caller should stop.
func (h *SessionHandler) load(w http.ResponseWriter, ctx context.Context, id uuid.UUID, log *slog.Logger) (*state.Session, *state.Narrative) {
	sess, err := h.storage.LoadSession(ctx, id)
	if err != nil {
		log.Error("Failed to load session", "error", err)
		writeError(w, log, http.StatusInternalServerError, "Failed to load session")
		return nil, nil
	}
	if sess == nil {
		writeError(w, log, http.StatusNotFound, "Session not found")
		return nil, nil
	}

	n, err := state.RestoreNarrative(h.table, sess.Snapshot)
	if err != nil {
		if !errors.Is(err, state.ErrSnapshotInvalid) {
			log.Error("Failed to restore session", "error", err)
			writeError(w, log, http.StatusInternalServerError, "Failed to restore session")
			return nil, nil
		}
		// Content changed under the session; it was reset to the entry scene.
		log.Warn("Stored snapshot no longer matches content, session reset", "error", err)
	}
	return sess, n
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	_, n := h.load(w, r.Context(), id, log)
	if n == nil {
		return
	}
	writeJSON(w, log, http.StatusOK, SessionResponse{SessionID: id, View: n.View()})
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger) {
	if err := h.storage.DeleteSession(r.Context(), id); err != nil {
		log.Error("Failed to delete session", "error", err)
		writeError(w, log, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	log.Info("Session deleted")
	w.WriteHeader(http.StatusNoContent)
}

type operation func(n *state.Narrative, res *SessionResponse) error

// apply runs one operation against a rehydrated session. On error nothing is
// saved; on success the snapshot is written back and events are published.
func (h *SessionHandler) apply(w http.ResponseWriter, r *http.Request, id uuid.UUID, log *slog.Logger, name string, op operation) {
	ctx := r.Context()
	sess, n := h.load(w, ctx, id, log)
	if n == nil {
		return
	}

	var changes []state.SceneChange
	n.Subscribe(func(c state.SceneChange) { changes = append(changes, c) })

	battleScene := n.CurrentScene().ID
	outcome := n.Outcome()

	res := SessionResponse{SessionID: id}
	if err := op(n, &res); err != nil {
		h.writeOpError(w, log, name, err)
		return
	}

	metrics.Transitions.WithLabelValues(name, metrics.Changed(operationChanged(name, &res))).Inc()

	// Saved even when the state did not move: reset clears flags and history,
	// and a restore may have fallen back to the entry scene.
	sess.Capture(n)
	if err := h.storage.SaveSession(ctx, sess); err != nil {
		log.Error("Failed to save session", "operation", name, "error", err)
		writeError(w, log, http.StatusInternalServerError, "Failed to save session")
		return
	}

	if name == "battle/complete" && res.Transition != nil && res.Transition.SceneChanged {
		metrics.BattleOutcomes.WithLabelValues(battleScene, string(outcome)).Inc()
		log.Info("Battle completed", "scene_id", battleScene, "outcome", outcome)
	}
	h.publish(ctx, id, log, name, &res, changes, battleScene, outcome)

	if res.Transition != nil && res.Transition.Changed {
		log.Debug("Transition applied", "operation", name, "from", res.Transition.From.String(), "to", res.Transition.To.String())
	}
	res.View = n.View()
	writeJSON(w, log, http.StatusOK, res)
}

// operationChanged reports whether an operation moved the session. A phase
// request on a finished battle reports no step and changes nothing.
func operationChanged(name string, res *SessionResponse) bool {
	switch {
	case name == "playtime":
		return true
	case res.Phase != nil:
		return res.Phase.Step != nil
	default:
		return res.Transition != nil && res.Transition.Changed
	}
}

func (h *SessionHandler) writeOpError(w http.ResponseWriter, log *slog.Logger, name string, err error) {
	switch {
	case errors.Is(err, state.ErrChoiceNotFound):
		metrics.ChoiceErrors.WithLabelValues("not_found").Inc()
		log.Warn("Choice not found in current scene", "error", err)
		writeError(w, log, http.StatusNotFound, err.Error())
	case errors.Is(err, state.ErrChoiceUnavailable):
		metrics.ChoiceErrors.WithLabelValues("unavailable").Inc()
		log.Warn("Choice not available", "error", err)
		writeError(w, log, http.StatusConflict, err.Error())
	case errors.Is(err, state.ErrBattleInProgress):
		log.Warn("Battle completion requested early", "error", err)
		writeError(w, log, http.StatusConflict, err.Error())
	default:
		log.Error("Session operation failed", "operation", name, "error", err)
		writeError(w, log, http.StatusInternalServerError, "Operation failed")
	}
}

// publish is best effort: a failed publish is logged and the request still
// succeeds.
func (h *SessionHandler) publish(ctx context.Context, id uuid.UUID, log *slog.Logger, name string, res *SessionResponse,
	changes []state.SceneChange, battleScene string, outcome battle.Outcome) {
	if h.publisher == nil {
		return
	}
	report := func(err error) {
		if err != nil {
			log.Warn("Failed to publish event", "operation", name, "error", err)
		}
	}

	switch name {
	case "battle/next":
		if res.Phase != nil && res.Phase.Step != nil {
			report(h.publisher.PublishBattlePhase(ctx, id, *res.Phase))
		}
	case "battle/complete":
		if res.Transition != nil && res.Transition.SceneChanged {
			report(h.publisher.PublishBattleCompleted(ctx, id, battleScene, outcome))
		}
	case "reset":
		report(h.publisher.PublishSessionReset(ctx, id))
	}
	for _, c := range changes {
		report(h.publisher.PublishSceneChanged(ctx, id, c))
	}
}
