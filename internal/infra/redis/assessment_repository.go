package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"statquiz-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store.
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID, variant string) (domain.Assessment, error)
}

// AssessmentRepository caches full assessment documents in Redis
// (SET quiz:content:{id}?{variant} -> JSON) and falls back to a loader on
// cache miss. Loads for the same key are deduplicated with singleflight so a
// cold cache does not stampede the backing store.
type AssessmentRepository struct {
	client *redis.Client
	loader AssessmentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAssessmentRepository(client *redis.Client, loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID, variant string) (domain.Assessment, error) {
	key := r.contentKey(assessmentID, variant)

	if cached, ok := r.fromCache(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := r.fromCache(ctx, key); ok {
			return cached, nil
		}

		assessment, err := r.loader.LoadAssessment(ctx, assessmentID, variant)
		if err != nil {
			return domain.Assessment{}, err
		}

		data, err := json.Marshal(assessment)
		if err != nil {
			return domain.Assessment{}, fmt.Errorf("marshal assessment: %w", err)
		}
		// best-effort: a failed cache write only costs the next reader a load
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		return assessment, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

func (r *AssessmentRepository) fromCache(ctx context.Context, key string) (domain.Assessment, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Assessment{}, false
	}
	var assessment domain.Assessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		return domain.Assessment{}, false
	}
	return assessment, true
}

func (r *AssessmentRepository) contentKey(assessmentID, variant string) string {
	return "quiz:content:" + assessmentID + "?" + variant
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
