package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"greengauge/internal/auth"
	"greengauge/internal/insights/application"
	insights "greengauge/internal/insights/domain"
	masterdata "greengauge/internal/masterdata/domain"
)

const anonymousViewer = "anonymous"

// Handler serves the insights panel.
type Handler struct {
	catalog *masterdata.Catalog
	service *application.Service
	logger  *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(catalog *masterdata.Catalog, service *application.Service, logger *log.Logger) (*Handler, error) {
	if catalog == nil {
		return nil, errors.New("insights http: nil catalog")
	}
	if service == nil {
		return nil, errors.New("insights http: nil service")
	}
	return &Handler{catalog: catalog, service: service, logger: logger}, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/devices/{device}/insights", h.generate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/devices/{device}/questions", h.ask).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/devices/{device}/conversation", h.conversation).Methods(http.MethodGet)
}

type questionRequest struct {
	Question string `json:"question"`
}

// generate handles POST /api/v1/devices/{device}/insights.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	device, ok := h.device(w, r)
	if !ok {
		return
	}
	result, err := h.service.GenerateInsights(r.Context(), viewer(r), device.Key)
	if err != nil {
		h.logf("insights: generate device=%s err=%v", device.Key, err)
		http.Error(w, "insights error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// ask handles POST /api/v1/devices/{device}/questions.
func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	device, ok := h.device(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	var req questionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.service.Ask(r.Context(), viewer(r), device.Key, req.Question)
	if errors.Is(err, insights.ErrEmptyQuestion) {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logf("insights: ask device=%s err=%v", device.Key, err)
		http.Error(w, "insights error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// conversation handles GET /api/v1/devices/{device}/conversation.
func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	device, ok := h.device(w, r)
	if !ok {
		return
	}
	writeJSON(w, application.Result{Messages: h.service.History(viewer(r), device.Key)})
}

func (h *Handler) device(w http.ResponseWriter, r *http.Request) (masterdata.Device, bool) {
	device, err := h.catalog.Get(mux.Vars(r)["device"])
	if err != nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return masterdata.Device{}, false
	}
	return device, true
}

func viewer(r *http.Request) string {
	if subject := auth.SubjectFromContext(r.Context()); subject != "" {
		return subject
	}
	return anonymousViewer
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
