package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/field-readiness-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/field-readiness-service/internal/adapter/kafka"
	"github.com/couchcryptid/field-readiness-service/internal/adapter/memory"
	"github.com/couchcryptid/field-readiness-service/internal/adapter/openmeteo"
	redisadapter "github.com/couchcryptid/field-readiness-service/internal/adapter/redis"
	"github.com/couchcryptid/field-readiness-service/internal/adapter/sqlite"
	"github.com/couchcryptid/field-readiness-service/internal/calibration"
	"github.com/couchcryptid/field-readiness-service/internal/config"
	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fixture"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
	"github.com/couchcryptid/field-readiness-service/internal/pipeline"
	"github.com/couchcryptid/field-readiness-service/internal/store"
)

// backend is a document store the process owns and must close.
type backend interface {
	store.Backend
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("document store opened", "backend", cfg.StoreBackend)

	fields := store.NewFields(docs)
	if cfg.FieldsFile != "" {
		n, err := seedFields(ctx, fields, cfg.FieldsFile)
		if err != nil {
			logger.Error("failed to seed fields", "path", cfg.FieldsFile, "error", err)
			os.Exit(1)
		}
		logger.Info("fields seeded", "path", cfg.FieldsFile, "count", n)
	}

	weather, err := weatherProvider(ctx, cfg, fields, logger, metrics)
	if err != nil {
		logger.Error("failed to create weather provider", "error", err)
		os.Exit(1)
	}

	tuning := store.NewTuning(docs, logger)
	thresholds := store.NewThresholds(docs, logger)
	sim := fleet.New(fleet.Deps{
		Fields:       fields,
		Weather:      weather,
		Truth:        store.NewTruth(docs),
		Tuning:       tuning,
		Thresholds:   thresholds,
		Logger:       logger,
		Metrics:      metrics,
		Concurrency:  cfg.WriteConcurrency,
		HorizonHours: cfg.ETAHorizonHours,
	})

	auth := httpadapter.NewAuthenticator(cfg.AuthJWTSecret, cfg.AuthDisabled)
	if cfg.AuthDisabled {
		logger.Warn("edit permission checks disabled")
	}

	var (
		publisher   domain.AuditPublisher
		auditWriter *kafkaadapter.AuditWriter
	)
	if cfg.AuditKafkaEnabled {
		auditWriter = kafkaadapter.NewAuditWriter(cfg, logger)
		publisher = auditWriter
		logger.Info("calibration audit publishing enabled", "topic", cfg.KafkaAuditTopic)
	} else {
		logger.Info("calibration audit publishing disabled")
	}

	engine := calibration.NewEngine(calibration.Deps{
		Simulator:  sim,
		Thresholds: thresholds,
		Tuning:     tuning,
		Cooldown:   store.NewCooldown(docs, cfg.CooldownHours),
		Gate:       auth,
		Audit:      store.NewAudit(docs),
		Publisher:  publisher,
		Logger:     logger,
		Metrics:    metrics,
		Hysteresis: cfg.HysteresisPoints,
	})

	p := pipeline.New(sim, nil, logger, metrics, cfg.RollForwardInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.API{
		Readiness:         sim,
		Calibration:       engine,
		Auth:              auth,
		RebuildWindowDays: cfg.RebuildWindowDays,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start daily roll-forward.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("roll-forward error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if auditWriter != nil {
		if err := auditWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := docs.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.BackendRedis:
		return redisadapter.New(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// weatherProvider returns the offline fixture provider when WEATHER_FIXTURE
// is set, seeding its fields, and the cached Open-Meteo client otherwise.
func weatherProvider(ctx context.Context, cfg *config.Config, fields *store.Fields, logger *slog.Logger, metrics *observability.Metrics) (domain.WeatherSeriesProvider, error) {
	if cfg.WeatherFixture != "" {
		fx, err := fixture.Load(cfg.WeatherFixture)
		if err != nil {
			return nil, err
		}
		for _, f := range fx.Fields {
			if err := fields.Put(ctx, f); err != nil {
				return nil, fmt.Errorf("put fixture field %q: %w", f.ID, err)
			}
		}
		logger.Info("using weather fixture", "path", cfg.WeatherFixture, "fields", len(fx.Fields), "generated_for", fx.GeneratedFor)
		return fixture.NewProvider(fx), nil
	}

	client := openmeteo.NewClient(openmeteo.Options{
		BaseURL:      cfg.WeatherBaseURL,
		Timeout:      cfg.WeatherTimeout,
		HistoryDays:  cfg.WeatherHistoryDays,
		ForecastDays: cfg.WeatherForecastDays,
	}, logger, metrics)
	return openmeteo.NewCachedProvider(client, cfg.WeatherCacheSize, nil, metrics)
}

// seedFields upserts every field in a JSON array file.
func seedFields(ctx context.Context, fields *store.Fields, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var list []domain.Field
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, f := range list {
		if err := fields.Put(ctx, f); err != nil {
			return 0, fmt.Errorf("put field %q: %w", f.ID, err)
		}
	}
	return len(list), nil
}
