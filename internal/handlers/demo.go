package handlers

import (
	"net/http"

	"roadside-portal/internal/service"

	"github.com/gorilla/mux"
)

// DemoHandler drives the demo roadside request generator
type DemoHandler struct {
	requests *service.DemoRequestGenerator
}

func NewDemoHandler(requests *service.DemoRequestGenerator) *DemoHandler {
	return &DemoHandler{requests: requests}
}

// RegisterRoutes sets up the demo generator routes
func (h *DemoHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/demo/start", h.StartRequests).Methods("POST")
	router.HandleFunc("/demo/stop", h.StopRequests).Methods("POST")
	router.HandleFunc("/demo/status", h.RequestStatus).Methods("GET")
}

// StartRequests begins generating pending roadside requests
func (h *DemoHandler) StartRequests(w http.ResponseWriter, r *http.Request) {
	h.requests.Start()
	h.RequestStatus(w, r)
}

// StopRequests halts request generation. Requests already created stay pending.
func (h *DemoHandler) StopRequests(w http.ResponseWriter, r *http.Request) {
	h.requests.Stop()
	h.RequestStatus(w, r)
}

// RequestStatus reports whether requests are being generated and how full the pending backlog is
func (h *DemoHandler) RequestStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.requests.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
