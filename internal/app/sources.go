// Package app wires configuration into the repositories, cache and
// telemetry shared by the command-line tools.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/adapters/cache"
	"github.com/zatekoja/noshowrisk/internal/adapters/database"
	"github.com/zatekoja/noshowrisk/internal/adapters/dataset"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/domain/repositories"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/clients/redis"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/pkg/config"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// CacheNamespace prefixes every key the tools write to Redis
const CacheNamespace = "noshow"

// Sources are the repositories the services read from
type Sources struct {
	Appointments repositories.AppointmentRepository
	Reference    repositories.ReferenceRepository
	Profiles     providers.PatientProfileProvider
	closeFn      func() error
}

// OpenSources connects to the configured appointment source
func OpenSources(ctx context.Context, cfg *config.Config) (*Sources, error) {
	switch cfg.Scoring.Source {
	case config.SourceDataset:
		store, err := dataset.Open(ctx, dataset.NewLoader(cfg.Dataset.BasePath), cfg.Dataset)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("path", cfg.Dataset.BasePath).
			Int("appointments", store.Len()).
			Msg("Dataset loaded")
		return &Sources{Appointments: store, Reference: store, Profiles: store}, nil

	case config.SourcePostgres:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		reference := database.NewReferenceAdapter(client)
		return &Sources{
			Appointments: database.NewAppointmentAdapter(client),
			Reference:    reference,
			Profiles:     reference,
			closeFn:      client.Close,
		}, nil
	}
	return nil, apperrors.NewValidationError("unknown appointment source " + cfg.Scoring.Source)
}

// Close releases the underlying connection, if any
func (s *Sources) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// OpenCache returns the result cache, or nil when Redis is disabled or
// unreachable. The returned func closes the connection.
func OpenCache(ctx context.Context, cfg *config.Config) (*cache.RedisAdapter, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		// Continue without Redis - scoring works without caching
		log.Warn().Err(err).Msg("Failed to initialize Redis client")
		return nil, func() {}
	}
	log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	return cache.NewRedisAdapter(client, CacheNamespace), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

// SetupTelemetry starts OpenTelemetry export when configured and returns the
// metric instruments plus a shutdown func. Metrics are nil when instruments
// cannot be created.
func SetupTelemetry(ctx context.Context, cfg *config.Config) (*observability.Metrics, func()) {
	shutdown := func() {}
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		stop, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
			shutdown = func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := stop(ctx); err != nil {
					log.Warn().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
		return nil, shutdown
	}
	return metrics, shutdown
}
