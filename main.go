package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greengauge/internal/auth"
	insightsapp "greengauge/internal/insights/application"
	insights "greengauge/internal/insights/domain"
	"greengauge/internal/insights/infrastructure/csvsnapshot"
	"greengauge/internal/insights/infrastructure/openai"
	insightshttp "greengauge/internal/insights/interfaces/http"
	masterdata "greengauge/internal/masterdata/domain"
	masterdataconfig "greengauge/internal/masterdata/infrastructure/config"
	"greengauge/internal/observability/metrics"
	settlement "greengauge/internal/settlement/domain"
	"greengauge/internal/settlement/infrastructure/pricing"
	telemetryapp "greengauge/internal/telemetry/application"
	telemetry "greengauge/internal/telemetry/domain"
	"greengauge/internal/telemetry/infrastructure/influx"
	telemetrypostgres "greengauge/internal/telemetry/infrastructure/postgres"
	telemetryhttp "greengauge/internal/telemetry/interfaces/http"
	"greengauge/internal/telemetry/interfaces/ingest"
)

const (
	backendInflux   = "influx"
	backendPostgres = "postgres"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init(logger)

	catalog, err := masterdataconfig.LoadCatalog(cfg.DeviceCatalog)
	if err != nil {
		logger.Fatalf("device catalog error: %v", err)
	}

	source, measurements, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		logger.Fatalf("telemetry backend error: %v", err)
	}
	defer closeBackend()

	hub, err := telemetryapp.NewHub(catalog, source, telemetryapp.HubConfig{
		Interval: cfg.PollInterval,
		Lookback: cfg.Lookback,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatalf("telemetry hub error: %v", err)
	}
	defer hub.Close()

	tariffs, err := pricing.NewFixedPriceProvider(cfg.PricePerKWh, cfg.Currency)
	if err != nil {
		logger.Fatalf("price provider error: %v", err)
	}
	views, err := telemetryapp.NewViewBuilder(tariffs, tariffs.Currency())
	if err != nil {
		logger.Fatalf("view builder error: %v", err)
	}
	telemetryHandler, err := telemetryhttp.NewHandler(catalog, hub, views, logger, telemetryhttp.WithLocation(cfg.DisplayLocation))
	if err != nil {
		logger.Fatalf("telemetry handler error: %v", err)
	}

	denylist := auth.NewDenylist()
	sessionHandler := auth.NewSessionHandler([]byte(cfg.JWTSecret), denylist)
	authMiddleware := auth.NewMiddleware(
		[]byte(cfg.JWTSecret),
		auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"}),
		denylist,
	)

	router := mux.NewRouter()
	telemetryHandler.Register(router)

	if insightsHandler, err := buildInsightsHandler(cfg, catalog, logger); err != nil {
		logger.Printf("insights disabled: %v", err)
	} else {
		insightsHandler.Register(router)
	}

	if cfg.IngestSecret != "" {
		ingestHandler, err := ingest.NewHandler(measurements, logger)
		if err != nil {
			logger.Fatalf("ingest handler error: %v", err)
		}
		ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)
		router.Handle("/ingest/telemetry", ingestAuth.Wrap(ingestHandler)).Methods(http.MethodPost)
	} else {
		logger.Printf("ingest disabled: INGEST_SECRET is not set")
	}

	router.HandleFunc("/api/v1/me", sessionHandler.Me).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/auth/logout", sessionHandler.Logout).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = authMiddleware.Wrap(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)(handler)
	handler = handlers.RecoveryHandler(handlers.RecoveryLogger(logger))(handler)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s backend=%s devices=%d", cfg.HTTPAddr, cfg.Backend, len(catalog.List()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
	logger.Printf("http stopped")
}

// openBackend returns the telemetry source and the ingest sink of the
// configured backend.
func openBackend(cfg config, logger *log.Logger) (telemetry.Source, telemetry.MeasurementRepository, func(), error) {
	switch cfg.Backend {
	case backendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, nil, errors.New("DATABASE_URL or PG_DSN is required")
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		logger.Printf("telemetry backend: postgres")
		return telemetrypostgres.NewTelemetryQuery(db), telemetrypostgres.NewTelemetryRepository(db), func() { _ = db.Close() }, nil
	case backendInflux:
		if cfg.InfluxURL == "" || cfg.InfluxToken == "" {
			return nil, nil, nil, errors.New("INFLUX_URL and INFLUX_TOKEN are required")
		}
		client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		source, err := influx.NewSource(client, cfg.InfluxOrg, cfg.InfluxBucket)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		writer, err := influx.NewWriter(client, cfg.InfluxOrg, cfg.InfluxBucket)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		logger.Printf("telemetry backend: influx url=%s bucket=%s", cfg.InfluxURL, cfg.InfluxBucket)
		return source, writer, client.Close, nil
	default:
		return nil, nil, nil, errors.New("unknown TELEMETRY_BACKEND " + strconv.Quote(cfg.Backend))
	}
}

func buildInsightsHandler(cfg config, catalog *masterdata.Catalog, logger *log.Logger) (*insightshttp.Handler, error) {
	if cfg.OpenAIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	var snapshots insights.SnapshotLoader
	switch {
	case cfg.InsightsDataDir != "":
		loader, err := csvsnapshot.NewFileLoader(cfg.InsightsDataDir)
		if err != nil {
			return nil, err
		}
		snapshots = loader
	case cfg.InsightsDataURL != "":
		loader, err := csvsnapshot.NewHTTPLoader(cfg.InsightsDataURL, &http.Client{Timeout: 15 * time.Second})
		if err != nil {
			return nil, err
		}
		snapshots = loader
	default:
		return nil, errors.New("INSIGHTS_DATA_DIR or INSIGHTS_DATA_URL is required")
	}

	model, err := openai.NewClient(cfg.OpenAIURL, cfg.OpenAIKey,
		openai.WithModel(cfg.OpenAIModel),
		openai.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	if err != nil {
		return nil, err
	}
	service, err := insightsapp.NewService(snapshots, model, insightsapp.ServiceConfig{
		HistoryLimit: cfg.InsightsHistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return insightshttp.NewHandler(catalog, service, logger)
}

type config struct {
	HTTPAddr             string
	Backend              string
	DatabaseURL          string
	InfluxURL            string
	InfluxToken          string
	InfluxOrg            string
	InfluxBucket         string
	Lookback             time.Duration
	PollInterval         time.Duration
	PricePerKWh          float64
	Currency             string
	DeviceCatalog        string
	DisplayLocation      *time.Location
	CORSOrigins          []string
	InsightsDataDir      string
	InsightsDataURL      string
	InsightsHistoryLimit int
	OpenAIURL            string
	OpenAIKey            string
	OpenAIModel          string
	JWTSecret            string
	IngestSecret         string
	IngestSkewSeconds    int
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		Backend:              strings.ToLower(getenvDefault("TELEMETRY_BACKEND", backendInflux)),
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		InfluxURL:            getenvDefault("INFLUX_URL", ""),
		InfluxToken:          getenvDefault("INFLUX_TOKEN", ""),
		InfluxOrg:            getenvDefault("INFLUX_ORG", ""),
		InfluxBucket:         getenvDefault("INFLUX_BUCKET", ""),
		Lookback:             getenvDuration("TELEMETRY_LOOKBACK", telemetryapp.DefaultLookback),
		PollInterval:         getenvDuration("POLL_INTERVAL", telemetryapp.DefaultPollInterval),
		PricePerKWh:          getenvFloatDefault("PRICE_PER_KWH", settlement.DefaultTariff),
		Currency:             getenvDefault("CURRENCY", settlement.DefaultCurrency),
		DeviceCatalog:        getenvDefault("DEVICE_CATALOG", ""),
		DisplayLocation:      getenvLocation("DISPLAY_TZ", time.UTC),
		CORSOrigins:          getenvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		InsightsDataDir:      getenvDefault("INSIGHTS_DATA_DIR", ""),
		InsightsDataURL:      getenvDefault("INSIGHTS_DATA_URL", ""),
		InsightsHistoryLimit: getenvIntDefault("INSIGHTS_HISTORY_LIMIT", insights.DefaultHistoryLimit),
		OpenAIURL:            getenvDefault("OPENAI_API_URL", openai.DefaultURL),
		OpenAIKey:            getenvDefault("OPENAI_API_KEY", ""),
		OpenAIModel:          getenvDefault("OPENAI_MODEL", openai.DefaultModel),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:         getenvDefault("INGEST_SECRET", getenvDefault("INGEST_HMAC_SECRET", "")),
		IngestSkewSeconds:    getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration also accepts a day suffix, e.g. "7d".
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvLocation(key string, fallback *time.Location) *time.Location {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	location, err := time.LoadLocation(value)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return location
}

func getenvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent events streaming through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
