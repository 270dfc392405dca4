// Package api exposes the coach HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"example.com/coach/internal/auth"
	"example.com/coach/internal/completion"
	"example.com/coach/internal/domain"
	"example.com/coach/internal/nutrition"
	"example.com/coach/internal/profile"
	"example.com/coach/internal/progress"
	"example.com/coach/internal/widget"
)

const dateLayout = "2006-01-02"

// Dependencies are the services the handlers delegate to.
type Dependencies struct {
	Sessions  *domain.Service
	Workouts  *completion.Manager
	Progress  *progress.Service
	Profiles  *profile.Service
	Nutrition *nutrition.Service
	Scheduler *widget.Scheduler
}

// Handler coordinates HTTP requests with the coaching services.
type Handler struct {
	deps Dependencies
	now  func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("POST /v1/draft", h.write(h.openDraft))
	mux.HandleFunc("GET /v1/draft", h.read(h.getDraft))
	mux.HandleFunc("DELETE /v1/draft", h.write(h.discardDraft))
	mux.HandleFunc("POST /v1/draft/entries/{id}/toggle", h.write(h.toggleEntry))
	mux.HandleFunc("PATCH /v1/draft/entries/{id}", h.write(h.editEntry))
	mux.HandleFunc("POST /v1/draft/finish", h.write(h.finishDraft))
	mux.HandleFunc("POST /v1/draft/cancel", h.write(h.cancelFinish))
	mux.HandleFunc("POST /v1/draft/rpe", h.write(h.submitRPE))
	mux.HandleFunc("POST /v1/draft/retry", h.write(h.retrySave))

	mux.HandleFunc("GET /v1/sessions", h.read(h.listSessions))
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.write(h.deleteSession))

	mux.HandleFunc("GET /v1/stats", h.read(h.stats))
	mux.HandleFunc("GET /v1/stats/context", h.read(h.coachingContext))

	mux.HandleFunc("GET /v1/profile", h.read(h.getProfile))
	mux.HandleFunc("PUT /v1/profile", h.write(h.saveProfile))
	mux.HandleFunc("POST /v1/checkin", h.write(h.checkIn))
	mux.HandleFunc("POST /v1/checkin/energy", h.write(h.updateEnergy))
	mux.HandleFunc("POST /v1/measurements", h.write(h.recordMeasurement))

	mux.HandleFunc("POST /v1/nutrition/draft", h.write(h.startFoodReview))
	mux.HandleFunc("PATCH /v1/nutrition/draft", h.write(h.adjustFoodWeight))
	mux.HandleFunc("POST /v1/nutrition/log", h.write(h.confirmFood))
	mux.HandleFunc("GET /v1/nutrition/log", h.read(h.foodJournal))
	mux.HandleFunc("DELETE /v1/nutrition/log/{id}", h.write(h.removeFood))
	mux.HandleFunc("POST /v1/nutrition/targets", h.read(h.nutritionTargets))

	mux.HandleFunc("POST /v1/widgets", h.write(h.applyWidget))
	mux.HandleFunc("GET /v1/schedule", h.read(h.schedule))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (h *Handler) read(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.CanRead() {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeRead+" required")
			return
		}
		next(w, r, claims.Subject)
	}
}

func (h *Handler) write(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(auth.ScopeWrite) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeWrite+" required")
			return
		}
		next(w, r, claims.Subject)
	}
}

// day reads the optional date query parameter, defaulting to today.
func (h *Handler) day(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return domain.CalendarDay(h.now()), nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return parsed, nil
}

func decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
