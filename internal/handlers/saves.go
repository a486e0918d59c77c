package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/jwebster45206/novel-engine/pkg/storage"
)

type SaveListResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Saves     []*state.SaveSlot `json:"saves"`
}

// serveSaves handles save slots below a session
// Routes:
// GET    /v1/sessions/{id}/saves             - List filled slots
// GET    /v1/sessions/{id}/saves/{slot}      - Read a slot
// PUT    /v1/sessions/{id}/saves/{slot}      - Save the current session into a slot
// DELETE /v1/sessions/{id}/saves/{slot}      - Clear a slot
// POST   /v1/sessions/{id}/saves/{slot}/load - Load a slot into the session
func (h *SessionHandler) serveSaves(w http.ResponseWriter, r *http.Request, id uuid.UUID, parts []string, log *slog.Logger) {
	if h.saves == nil {
		writeError(w, log, http.StatusServiceUnavailable, "Save slots are not configured")
		return
	}

	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		saves, err := h.saves.ListSaves(r.Context(), id)
		if err != nil {
			log.Error("Failed to list saves", "error", err)
			writeError(w, log, http.StatusInternalServerError, "Failed to list saves")
			return
		}
		if saves == nil {
			saves = []*state.SaveSlot{}
		}
		writeJSON(w, log, http.StatusOK, SaveListResponse{SessionID: id, Saves: saves})
		return
	}

	slot, err := strconv.Atoi(parts[0])
	if err != nil || !storage.ValidSlot(slot) {
		writeError(w, log, http.StatusBadRequest, "Slot must be a number from 1 to "+strconv.Itoa(storage.MaxSaveSlots))
		return
	}
	log = log.With("slot", slot)

	if len(parts) == 2 && parts[1] == "load" {
		if r.Method != http.MethodPost {
			writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleLoadSave(w, r, id, slot, log)
		return
	}
	if len(parts) != 1 {
		writeError(w, log, http.StatusNotFound, "Unknown save operation")
		return
	}

	switch r.Method {
	case http.MethodGet:
		save, err := h.saves.GetSave(r.Context(), id, slot)
		if err != nil {
			log.Error("Failed to read save", "error", err)
			writeError(w, log, http.StatusInternalServerError, "Failed to read save")
			return
		}
		if save == nil {
			writeError(w, log, http.StatusNotFound, "Save slot is empty")
			return
		}
		writeJSON(w, log, http.StatusOK, save)
	case http.MethodPut:
		_, n := h.load(w, r.Context(), id, log)
		if n == nil {
			return
		}
		save := state.NewSaveSlot(id, slot, n)
		if err := h.saves.PutSave(r.Context(), save); err != nil {
			log.Error("Failed to write save", "error", err)
			writeError(w, log, http.StatusInternalServerError, "Failed to write save")
			return
		}
		log.Info("Game saved", "scene_id", save.SceneID)
		writeJSON(w, log, http.StatusOK, save)
	case http.MethodDelete:
		if err := h.saves.DeleteSave(r.Context(), id, slot); err != nil {
			log.Error("Failed to delete save", "error", err)
			writeError(w, log, http.StatusInternalServerError, "Failed to delete save")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, log, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT, DELETE")
	}
}

func (h *SessionHandler) handleLoadSave(w http.ResponseWriter, r *http.Request, id uuid.UUID, slot int, log *slog.Logger) {
	save, err := h.saves.GetSave(r.Context(), id, slot)
	if err != nil {
		log.Error("Failed to read save", "error", err)
		writeError(w, log, http.StatusInternalServerError, "Failed to read save")
		return
	}
	if save == nil {
		writeError(w, log, http.StatusNotFound, "Save slot is empty")
		return
	}

	h.apply(w, r, id, log, "load", func(n *state.Narrative, res *SessionResponse) error {
		from := n.State()
		// An out-of-date save falls back to the entry scene rather than failing.
		if err := n.Restore(save.Snapshot); err != nil {
			log.Warn("Save no longer matches content, session reset", "error", err)
		}
		res.Transition = &state.Transition{
			From:         from,
			To:           n.State(),
			Changed:      from != n.State(),
			SceneChanged: from.SceneID != n.State().SceneID,
		}
		return nil
	})
}
