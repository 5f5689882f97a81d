package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
)

const rangeCacheName = "range_assessment"

// CachedRiskService caches complete range assessments. Keys carry the model
// version, so publishing a new model never serves stale scores. Patient
// scoring is not cached.
type CachedRiskService struct {
	next    RiskAssessor
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
	pending sync.WaitGroup
}

var _ RiskAssessor = (*CachedRiskService)(nil)

// NewCachedRiskService wraps next with a result cache
func NewCachedRiskService(next RiskAssessor, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *CachedRiskService {
	return &CachedRiskService{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

func rangeCacheKey(start, end, version string) string {
	return fmt.Sprintf("range:%s:%s:%s", start, end, version)
}

// ModelVersion identifies the scorer behind every assessment
func (c *CachedRiskService) ModelVersion() string {
	return c.next.ModelVersion()
}

// ScorePatient delegates to the wrapped service
func (c *CachedRiskService) ScorePatient(ctx context.Context, patientID string) (*entities.PatientAssessment, error) {
	return c.next.ScorePatient(ctx, patientID)
}

// ScoreRange serves a cached assessment when present. Incomplete assessments
// are never cached.
func (c *CachedRiskService) ScoreRange(ctx context.Context, start, end string) (*entities.RangeAssessment, error) {
	if _, err := ParseRange(start, end); err != nil {
		return nil, err
	}
	key := rangeCacheKey(start, end, c.next.ModelVersion())

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var assessment entities.RangeAssessment
		if err := json.Unmarshal(cached, &assessment); err == nil {
			observability.RecordCacheHit(ctx, c.metrics, rangeCacheName)
			return &assessment, nil
		}
		log.Warn().Str("key", key).Msg("Dropping undecodable cached range assessment")
		if err := c.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete cached range assessment")
		}
	}
	observability.RecordCacheMiss(ctx, c.metrics, rangeCacheName)

	assessment, err := c.next.ScoreRange(ctx, start, end)
	if err != nil || assessment == nil || assessment.Incomplete {
		return assessment, err
	}

	data, err := json.Marshal(assessment)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode range assessment")
		return assessment, nil
	}

	// Update cache asynchronously to avoid blocking the response
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.cache.Set(bgCtx, key, data, int(c.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache range assessment")
		}
	}()

	return assessment, nil
}

// Wait blocks until pending cache writes finish
func (c *CachedRiskService) Wait() {
	c.pending.Wait()
}
