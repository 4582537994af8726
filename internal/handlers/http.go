package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"roadside-portal/internal/lifecycle"
	"roadside-portal/internal/portal"
	"roadside-portal/internal/service"
	"roadside-portal/internal/storage"

	"github.com/gorilla/mux"
)

// HTTPHandler handles HTTP requests for the technician portal
type HTTPHandler struct {
	jobService   *service.JobService
	availability *service.AvailabilityService
	sessions     *portal.Registry
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(jobService *service.JobService, availability *service.AvailabilityService, sessions *portal.Registry) *HTTPHandler {
	return &HTTPHandler{
		jobService:   jobService,
		availability: availability,
		sessions:     sessions,
	}
}

// RegisterRoutes sets up HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	router.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")

	tech := router.PathPrefix("/technicians/{tid}").Subrouter()
	tech.HandleFunc("/views", h.GetViews).Methods("GET")
	tech.HandleFunc("/refresh", h.Refresh).Methods("POST")
	tech.HandleFunc("/jobs/{id}/accept", h.AcceptJob).Methods("POST")
	tech.HandleFunc("/jobs/{id}/reject", h.RejectJob).Methods("POST")
	tech.HandleFunc("/jobs/{id}/advance", h.AdvanceJob).Methods("POST")
	tech.HandleFunc("/jobs/{id}/location", h.UpdateJobLocation).Methods("POST")
	tech.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
	tech.HandleFunc("/session", h.CloseSession).Methods("DELETE")
	tech.HandleFunc("/earnings", h.GetEarnings).Methods("GET")
	tech.HandleFunc("/availability", h.GetAvailability).Methods("GET")
	tech.HandleFunc("/availability/toggle", h.ToggleAvailability).Methods("POST")
	tech.HandleFunc("/availability/location", h.UpdateAvailabilityLocation).Methods("PUT")
}

// Health returns service health status
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateJob stores a new pending roadside request
func (h *HTTPHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req service.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// GetJob retrieves a specific job
func (h *HTTPHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// ActiveStep describes where the active job sits in its lifecycle
type ActiveStep struct {
	StatusLabel string           `json:"status_label"`
	NextStatus  lifecycle.Status `json:"next_status,omitempty"`
	ActionLabel string           `json:"action_label,omitempty"`
	Step        int              `json:"step"`
	TotalSteps  int              `json:"total_steps"`
}

// ViewsResponse is a snapshot of a technician's dashboard
type ViewsResponse struct {
	portal.Views
	ActiveStep *ActiveStep `json:"active_step,omitempty"`
	Loading    bool        `json:"loading"`
}

// GetViews returns the technician's pending, active and history views
func (h *HTTPHandler) GetViews(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	resp := ViewsResponse{Views: session.Views(), Loading: session.Loading()}
	if job := resp.ActiveJob; job != nil {
		step, total := lifecycle.Progress(job.Status)
		resp.ActiveStep = &ActiveStep{
			StatusLabel: lifecycle.Label(job.Status),
			Step:        step,
			TotalSteps:  total,
		}
		if next, ok := lifecycle.Next(job.Status); ok {
			resp.ActiveStep.NextStatus = next
			resp.ActiveStep.ActionLabel = lifecycle.ActionLabel(next)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh re-runs the technician's initial load
func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	session.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// AcceptJob claims a pending job for the technician
func (h *HTTPHandler) AcceptJob(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	jobID := mux.Vars(r)["id"]
	if err := session.Accept(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(lifecycle.StatusAccepted), "job_id": jobID})
}

// RejectJob hides a pending job from this technician's list
func (h *HTTPHandler) RejectJob(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	jobID := mux.Vars(r)["id"]
	session.Reject(jobID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "job_id": jobID})
}

// AdvanceRequest asks for the next lifecycle step
type AdvanceRequest struct {
	Status lifecycle.Status `json:"status"`
	Lat    *float64         `json:"lat,omitempty"`
	Lng    *float64         `json:"lng,omitempty"`
}

// AdvanceJob moves the technician's job to the next status
func (h *HTTPHandler) AdvanceJob(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "Missing required field: status", http.StatusBadRequest)
		return
	}
	if !lifecycle.Valid(req.Status) {
		http.Error(w, "Unknown status: "+string(req.Status), http.StatusBadRequest)
		return
	}

	job, err := h.jobService.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	var coords *portal.Coordinates
	if req.Lat != nil && req.Lng != nil {
		coords = &portal.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	}

	if err := session.Advance(r.Context(), job, req.Status, coords); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(req.Status),
		"job_id":  job.ID,
		"message": lifecycle.Message(req.Status),
	})
}

// LocationRequest carries a position
type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func decodeLocation(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return 0, 0, false
	}
	if req.Lat == nil || req.Lng == nil {
		http.Error(w, "Missing required fields: lat, lng", http.StatusBadRequest)
		return 0, 0, false
	}
	return *req.Lat, *req.Lng, true
}

// UpdateJobLocation records a location ping against a job
func (h *HTTPHandler) UpdateJobLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	lat, lng, ok := decodeLocation(w, r)
	if !ok {
		return
	}

	session.UpdateLocation(r.Context(), mux.Vars(r)["id"], lat, lng)
	w.WriteHeader(http.StatusAccepted)
}

// GetNotifications drains the technician's pending notifications
func (h *HTTPHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, session.Notifications())
}

// CloseSession ends the technician's live session
func (h *HTTPHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(mux.Vars(r)["tid"])
	w.WriteHeader(http.StatusNoContent)
}

// GetEarnings returns the technician's earnings summary
func (h *HTTPHandler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	summary, err := h.jobService.GetEarnings(r.Context(), mux.Vars(r)["tid"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetAvailability returns whether the technician is online
func (h *HTTPHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.availability.Get(r.Context(), mux.Vars(r)["tid"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availability)
}

// ToggleAvailability flips the technician online or offline
func (h *HTTPHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	availability, message, err := h.availability.Toggle(r.Context(), mux.Vars(r)["tid"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"availability": availability,
		"message":      message,
	})
}

// UpdateAvailabilityLocation records the technician's current position
func (h *HTTPHandler) UpdateAvailabilityLocation(w http.ResponseWriter, r *http.Request) {
	lat, lng, ok := decodeLocation(w, r)
	if !ok {
		return
	}

	availability, err := h.availability.UpdateLocation(r.Context(), mux.Vars(r)["tid"], lat, lng)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availability)
}

func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*portal.Session, bool) {
	session, err := h.sessions.Get(mux.Vars(r)["tid"])
	if err != nil {
		slog.Error("Failed to start portal session", "technician_id", mux.Vars(r)["tid"], "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case portal.IsConflict(err), errors.Is(err, storage.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrTerminal):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
