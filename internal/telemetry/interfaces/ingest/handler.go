package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"greengauge/internal/observability/metrics"
	telemetry "greengauge/internal/telemetry/domain"
)

const maxBodyBytes = 1 << 20

// Handler accepts raw device readings pushed by gateways.
type Handler struct {
	repo   telemetry.MeasurementRepository
	logger *log.Logger
}

// NewHandler constructs an ingest handler.
func NewHandler(repo telemetry.MeasurementRepository, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("telemetry ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{repo: repo, logger: logger}, nil
}

// ServeHTTP handles POST /ingest/telemetry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Printf("telemetry ingest: read body error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("telemetry ingest: decode error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("invalid_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	measurements, err := req.toMeasurements()
	if err != nil {
		h.logger.Printf("telemetry ingest: invalid payload: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.InsertMeasurements(r.Context(), measurements); err != nil {
		h.logger.Printf("telemetry ingest: insert error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("insert_error")
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"inserted": len(measurements)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ingestRequest struct {
	DeviceID string             `json:"deviceId"`
	TS       int64              `json:"ts"`
	Values   map[string]float64 `json:"values"`
	Quality  string             `json:"quality"`
	Points   []ingestPoint      `json:"points"`
}

type ingestPoint struct {
	TS      int64              `json:"ts"`
	Values  map[string]float64 `json:"values"`
	Quality string             `json:"quality"`
}

func (r ingestRequest) toMeasurements() ([]telemetry.Measurement, error) {
	if r.DeviceID == "" {
		return nil, errors.New("missing deviceId")
	}

	points := r.Points
	if len(points) == 0 && r.TS != 0 {
		points = []ingestPoint{{TS: r.TS, Values: r.Values, Quality: r.Quality}}
	}
	if len(points) == 0 {
		return nil, errors.New("no telemetry points")
	}

	measurements := make([]telemetry.Measurement, 0, len(points)*len(telemetry.Fields))
	for _, point := range points {
		ts, err := parseTimestamp(point.TS)
		if err != nil {
			return nil, err
		}
		if len(point.Values) == 0 {
			return nil, errors.New("empty values")
		}
		for key, value := range point.Values {
			field, err := telemetry.ParseField(key)
			if err != nil {
				return nil, err
			}
			v := value
			measurements = append(measurements, telemetry.Measurement{
				DeviceID:     r.DeviceID,
				PointKey:     string(field),
				TS:           ts,
				ValueNumeric: &v,
				Quality:      point.Quality,
			})
		}
	}
	return measurements, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
