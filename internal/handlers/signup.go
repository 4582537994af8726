package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"roadside-portal/internal/signup"

	"github.com/gorilla/mux"
)

// SignupHandler serves the technician signup wizard
type SignupHandler struct {
	store signup.ApplicationStore
}

// NewSignupHandler creates a new signup handler
func NewSignupHandler(store signup.ApplicationStore) *SignupHandler {
	return &SignupHandler{store: store}
}

// RegisterRoutes sets up signup HTTP routes
func (h *SignupHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signup/catalog", h.GetCatalog).Methods("GET")
	router.HandleFunc("/signup/validate/{step}", h.ValidateStep).Methods("POST")
	router.HandleFunc("/signup/applications", h.SubmitApplication).Methods("POST")
}

// GetCatalog returns the steps, services and vehicle types
func (h *SignupHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, signup.GetCatalog())
}

// StepValidation is the result of checking one wizard step
type StepValidation struct {
	Step       int               `json:"step"`
	Valid      bool              `json:"valid"`
	CanProceed bool              `json:"can_proceed"`
	Errors     map[string]string `json:"errors"`
}

// ValidateStep checks one step of a partially filled application
func (h *SignupHandler) ValidateStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(mux.Vars(r)["step"])
	if err != nil {
		http.Error(w, "Invalid step", http.StatusBadRequest)
		return
	}

	var app signup.Application
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	wizard := signup.NewWizardFrom(app)
	fieldErrors, err := wizard.Validate(step)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, StepValidation{
		Step:       step,
		Valid:      len(fieldErrors) == 0,
		CanProceed: wizard.StepComplete(step),
		Errors:     fieldErrors,
	})
}

// SubmitApplication validates every step and stores the application for review
func (h *SignupHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var app signup.Application
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	submitted, err := signup.NewWizardFrom(app).Submit(r.Context(), h.store)
	if err != nil {
		var validationErr *signup.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusUnprocessableEntity, StepValidation{
				Step:   validationErr.Step,
				Valid:  false,
				Errors: validationErr.Fields,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"application": submitted,
		"message":     "Application submitted successfully!",
		"description": "We'll review your application and get back to you within 24-48 hours.",
	})
}
