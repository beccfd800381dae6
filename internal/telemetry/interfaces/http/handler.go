package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chrispappas/golang-generics-set/set"
	"github.com/gorilla/mux"

	masterdata "greengauge/internal/masterdata/domain"
	"greengauge/internal/telemetry/application"
	telemetry "greengauge/internal/telemetry/domain"
)

// Handler serves device and readings endpoints.
type Handler struct {
	catalog  *masterdata.Catalog
	hub      *application.Hub
	views    *application.ViewBuilder
	clock    application.Clock
	location *time.Location
	logger   *log.Logger
}

// Option customizes a Handler.
type Option func(*Handler)

// WithClock overrides the reference time used for windowing.
func WithClock(clock application.Clock) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithLocation sets the zone used for readable timestamps.
func WithLocation(location *time.Location) Option {
	return func(h *Handler) {
		if location != nil {
			h.location = location
		}
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// NewHandler constructs a Handler.
func NewHandler(catalog *masterdata.Catalog, hub *application.Hub, views *application.ViewBuilder, logger *log.Logger, opts ...Option) (*Handler, error) {
	if catalog == nil {
		return nil, errors.New("telemetry http: nil catalog")
	}
	if hub == nil {
		return nil, errors.New("telemetry http: nil hub")
	}
	if views == nil {
		return nil, errors.New("telemetry http: nil view builder")
	}
	h := &Handler{
		catalog:  catalog,
		hub:      hub,
		views:    views,
		clock:    wallClock{},
		location: time.UTC,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/devices", h.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/devices/{device}", h.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/devices/{device}/readings", h.readings).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/devices/{device}/readings/export.{format:csv|xlsx|pdf}", h.export).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/devices/{device}/stream", h.stream).Methods(http.MethodGet)
}

type deviceResponse struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	SourceID string  `json:"source_id"`
	Watts    float64 `json:"watts"`
}

func toDeviceResponse(device masterdata.Device) deviceResponse {
	return deviceResponse{
		Key:      device.Key,
		Name:     device.DisplayName(),
		SourceID: device.SourceID,
		Watts:    device.Watts,
	}
}

// listDevices handles GET /api/v1/devices.
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.catalog.List()
	out := make([]deviceResponse, 0, len(devices))
	for _, device := range devices {
		out = append(out, toDeviceResponse(device))
	}
	writeJSON(w, http.StatusOK, out)
}

// getDevice handles GET /api/v1/devices/{device}.
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.catalog.Get(mux.Vars(r)["device"])
	if err != nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(device))
}

// readings handles GET /api/v1/devices/{device}/readings.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseViewRequest(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	device, snapshot, err := h.hub.Snapshot(r.Context(), mux.Vars(r)["device"])
	if errors.Is(err, masterdata.ErrUnknownDevice) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "load readings error", http.StatusInternalServerError)
		return
	}
	view, err := h.views.Build(r.Context(), device, snapshot, req)
	if err != nil {
		h.logf("readings: build view device=%s err=%v", device.Key, err)
		http.Error(w, "build view error", http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if snapshot.Err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, view)
}

// parseViewRequest reads window, metrics and optionally page from the query.
func (h *Handler) parseViewRequest(r *http.Request, withPage bool) (application.ViewRequest, error) {
	query := r.URL.Query()
	window, err := telemetry.ParseWindow(query.Get("window"))
	if err != nil {
		return application.ViewRequest{}, err
	}
	metrics, err := parseMetricsQuery(query["metrics"])
	if err != nil {
		return application.ViewRequest{}, err
	}
	page := telemetry.NewPage()
	if withPage {
		page, err = telemetry.ParsePage(query.Get("page"), query.Get("size"))
		if err != nil {
			return application.ViewRequest{}, err
		}
	}
	return application.ViewRequest{
		Window:   window,
		Page:     page,
		Metrics:  metrics,
		Now:      h.clock.Now(),
		Location: h.location,
	}, nil
}

// parseMetricsQuery accepts repeated and comma-separated metrics values.
func parseMetricsQuery(values []string) (set.Set[telemetry.Field], error) {
	names := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				names = append(names, part)
			}
		}
	}
	return application.ParseMetrics(names)
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
