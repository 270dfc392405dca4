package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"example.com/coach/internal/completion"
	"example.com/coach/internal/domain"
	"example.com/coach/internal/draft"
	"example.com/coach/internal/persistence"
	"example.com/coach/internal/quantity"
)

// DraftView is the active session as the client renders it.
type DraftView struct {
	State     completion.State       `json:"state"`
	Title     string                 `json:"title"`
	Exercises []domain.ExerciseEntry `json:"exercises"`
	Progress  completion.Progress    `json:"progress"`
	Resumed   bool                   `json:"resumed,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
	Result    *completion.Result     `json:"result,omitempty"`
}

func draftView(wf *completion.Workflow) DraftView {
	view := DraftView{State: wf.State(), Exercises: []domain.ExerciseEntry{}, Progress: wf.Progress()}
	if d, ok := wf.Draft(); ok {
		view.Title = d.Title
		view.Exercises = d.Exercises
	}
	if err := wf.LastError(); err != nil {
		view.LastError = err.Error()
	}
	if result, ok := wf.Result(); ok {
		view.Result = &result
		view.Title = result.Session.Title
		view.Exercises = result.Session.Exercises
	}
	return view
}

// EditEntryRequest is the payload for PATCH /v1/draft/entries/{id}.
type EditEntryRequest struct {
	Field string         `json:"field"`
	Value quantity.Value `json:"value"`
}

// RPERequest is the payload for POST /v1/draft/rpe.
type RPERequest struct {
	RPE int `json:"rpe"`
}

// FinishResponse carries the pre-completion summary.
type FinishResponse struct {
	State   completion.State    `json:"state"`
	Summary completion.Progress `json:"summary"`
}

// CompletionResponse describes a finalized session.
type CompletionResponse struct {
	Session      domain.CompletedSession `json:"session"`
	XP           int                     `json:"xp"`
	AllCompleted bool                    `json:"all_completed"`
	HistorySize  int                     `json:"history_size"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items      []domain.CompletedSession `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

func (h *Handler) openDraft(w http.ResponseWriter, r *http.Request, userID string) {
	var plan domain.WorkoutPlan
	if err := decode(r, &plan); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(plan.Title) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "title is required")
		return
	}
	if len(plan.Exercises) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "exercises are required")
		return
	}

	wf, resumed, err := h.deps.Workouts.Open(r.Context(), userID, plan)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	view := draftView(wf)
	view.Resumed = resumed
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, view)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request, userID string) {
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(wf))
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.deps.Workouts.Discard(r.Context(), userID); err != nil {
		writeWorkflowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleEntry(w http.ResponseWriter, r *http.Request, userID string) {
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	if _, err := wf.Toggle(r.Context(), r.PathValue("id")); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(wf))
}

func (h *Handler) editEntry(w http.ResponseWriter, r *http.Request, userID string) {
	var req EditEntryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	if _, err := wf.Edit(r.Context(), r.PathValue("id"), draft.Field(req.Field), req.Value); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(wf))
}

func (h *Handler) finishDraft(w http.ResponseWriter, r *http.Request, userID string) {
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	summary, err := wf.Finish()
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FinishResponse{State: wf.State(), Summary: summary})
}

func (h *Handler) cancelFinish(w http.ResponseWriter, r *http.Request, userID string) {
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	if err := wf.Cancel(); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(wf))
}

func (h *Handler) submitRPE(w http.ResponseWriter, r *http.Request, userID string) {
	var req RPERequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	result, err := wf.SubmitRPE(r.Context(), req.RPE)
	h.writeCompletion(w, wf, result, err)
}

func (h *Handler) retrySave(w http.ResponseWriter, r *http.Request, userID string) {
	wf, err := h.deps.Workouts.Get(r.Context(), userID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	result, err := wf.Retry(r.Context())
	h.writeCompletion(w, wf, result, err)
}

func (h *Handler) writeCompletion(w http.ResponseWriter, wf *completion.Workflow, result completion.Result, err error) {
	if err != nil {
		if wf.State() == completion.StatePersisting && wf.LastError() != nil && !isWorkflowSentinel(err) {
			writeError(w, http.StatusServiceUnavailable, "save_failed", "session could not be saved; the draft is kept, retry to save again")
			return
		}
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompletionResponse{
		Session:      result.Session,
		XP:           result.XP,
		AllCompleted: result.AllCompleted,
		HistorySize:  len(result.History),
	})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	items, next, err := h.deps.Sessions.ListSessions(r.Context(), userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if items == nil {
		items = []domain.CompletedSession{}
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.deps.Sessions.DeleteSession(r.Context(), userID, r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isWorkflowSentinel(err error) bool {
	return errors.Is(err, completion.ErrInvalidRPE) ||
		errors.Is(err, completion.ErrNoProgress) ||
		errors.Is(err, completion.ErrInvalidTransition) ||
		errors.Is(err, completion.ErrPersistInFlight)
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, completion.ErrNoActiveSession), errors.Is(err, draft.ErrNoDraft):
		writeError(w, http.StatusNotFound, "not_found", "no active session")
	case errors.Is(err, draft.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, draft.ErrUnknownField), errors.Is(err, completion.ErrInvalidRPE):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, completion.ErrNoProgress):
		writeError(w, http.StatusUnprocessableEntity, "no_progress", err.Error())
	case errors.Is(err, completion.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, completion.ErrPersistInFlight), errors.Is(err, draft.ErrLocked):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}
