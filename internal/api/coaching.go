package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/nutrition"
	"example.com/coach/internal/profile"
	"example.com/coach/internal/widget"
)

// ProfileView pairs the stored profile with its level.
type ProfileView struct {
	domain.Profile
	Level        profile.Level `json:"level_info"`
	NeedsCheckIn bool          `json:"needs_check_in"`
}

// EnergyRequest is the payload for POST /v1/checkin/energy.
type EnergyRequest struct {
	EnergyLevel int `json:"energy_level"`
}

// MeasurementRequest is the payload for POST /v1/measurements.
type MeasurementRequest struct {
	Weight float64 `json:"weight"`
}

// WeightRequest is the payload for PATCH /v1/nutrition/draft.
type WeightRequest struct {
	Weight float64 `json:"weight"`
}

// ConfirmFoodRequest is the payload for POST /v1/nutrition/log.
type ConfirmFoodRequest struct {
	MealType string `json:"meal_type"`
}

// JournalResponse is a day of the food journal.
type JournalResponse struct {
	Date    string            `json:"date"`
	Entries []domain.FoodLog  `json:"entries"`
	Totals  nutrition.Macros  `json:"totals"`
	Targets nutrition.Targets `json:"targets"`
}

// WidgetRequest is the payload for POST /v1/widgets.
type WidgetRequest struct {
	Text string `json:"text"`
}

// WidgetResponse is the cleaned reply plus what was done with its widget.
type WidgetResponse struct {
	Text    string          `json:"text"`
	Widget  *widget.Widget  `json:"widget,omitempty"`
	Applied *widget.Applied `json:"applied,omitempty"`
}

// ContextResponse wraps the coaching context text.
type ContextResponse struct {
	Context string `json:"context"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, h.deps.Progress.Overview(r.Context(), userID))
}

func (h *Handler) coachingContext(w http.ResponseWriter, r *http.Request, userID string) {
	writeJSON(w, http.StatusOK, ContextResponse{Context: h.deps.Progress.CoachingContext(r.Context(), userID)})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.deps.Profiles.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	needs, err := h.deps.Profiles.NeedsCheckIn(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ProfileView{Profile: *p, Level: profile.LevelInfo(p.XP), NeedsCheckIn: needs})
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var p domain.Profile
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "name is required")
		return
	}
	p.UserID = userID
	if err := h.deps.Profiles.Save(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	h.getProfile(w, r, userID)
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request, userID string) {
	var in profile.CheckIn
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	award, err := h.deps.Profiles.SubmitCheckIn(r.Context(), userID, in)
	if err != nil {
		writeProfileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, award)
}

func (h *Handler) updateEnergy(w http.ResponseWriter, r *http.Request, userID string) {
	var req EnergyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.deps.Profiles.UpdateEnergy(r.Context(), userID, req.EnergyLevel); err != nil {
		writeProfileError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordMeasurement(w http.ResponseWriter, r *http.Request, userID string) {
	var req MeasurementRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.deps.Profiles.RecordWeight(r.Context(), userID, req.Weight); err != nil {
		writeProfileError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeProfileError(w http.ResponseWriter, err error) {
	if errors.Is(err, profile.ErrInvalidCheckIn) {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

func (h *Handler) startFoodReview(w http.ResponseWriter, r *http.Request, userID string) {
	var a nutrition.Analysis
	if err := decode(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(a.DishName) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "dish_name is required")
		return
	}
	writeJSON(w, http.StatusCreated, h.deps.Nutrition.StartReview(userID, a))
}

func (h *Handler) adjustFoodWeight(w http.ResponseWriter, r *http.Request, userID string) {
	var req WeightRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	review, err := h.deps.Nutrition.AdjustWeight(userID, req.Weight)
	if err != nil {
		writeNutritionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *Handler) confirmFood(w http.ResponseWriter, r *http.Request, userID string) {
	var req ConfirmFoodRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	day, err := h.day(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	saved, err := h.deps.Nutrition.ConfirmReview(r.Context(), userID, req.MealType, day)
	if err != nil {
		writeNutritionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) foodJournal(w http.ResponseWriter, r *http.Request, userID string) {
	day, err := h.day(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	journal, err := h.deps.Nutrition.Journal(r.Context(), userID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	targets, err := h.deps.Nutrition.Targets(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, JournalResponse{
		Date:    day.Format(dateLayout),
		Entries: journal.Entries(),
		Totals:  journal.Totals(),
		Targets: targets,
	})
}

func (h *Handler) removeFood(w http.ResponseWriter, r *http.Request, userID string) {
	day, err := h.day(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	journal, err := h.deps.Nutrition.Journal(r.Context(), userID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if err := journal.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeNutritionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nutritionTargets computes targets for the posted profile attributes, or for
// the stored profile when the body is empty.
func (h *Handler) nutritionTargets(w http.ResponseWriter, r *http.Request, userID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		targets, err := h.deps.Nutrition.Targets(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, targets)
		return
	}

	var p domain.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	p.UserID = userID
	writeJSON(w, http.StatusOK, nutrition.CalculateTargets(p))
}

func writeNutritionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nutrition.ErrNoAnalysis):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, nutrition.ErrNegativeWeight):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrFoodNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func (h *Handler) applyWidget(w http.ResponseWriter, r *http.Request, userID string) {
	var req WidgetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	text, found := widget.Extract(req.Text)
	resp := WidgetResponse{Text: text, Widget: found}
	if found == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	applied, err := h.deps.Scheduler.Apply(r.Context(), userID, *found)
	if err != nil {
		if errors.Is(err, widget.ErrMalformed) || errors.Is(err, widget.ErrWrongKind) {
			writeError(w, http.StatusUnprocessableEntity, "malformed_widget", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	resp.Applied = &applied
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request, userID string) {
	upcoming, err := h.deps.Scheduler.Upcoming(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": upcoming})
}
