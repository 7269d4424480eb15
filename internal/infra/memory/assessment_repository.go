package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"statquiz-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store.
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID, variant string) (domain.Assessment, error)
}

// AssessmentRepository caches assessments with TTL to avoid repeated backing
// store hits. Content is read-only, so the cache never needs invalidation
// beyond expiry.
type AssessmentRepository struct {
	loader AssessmentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAssessment
}

type cachedAssessment struct {
	assessment domain.Assessment
	expiresAt  time.Time
}

func NewAssessmentRepository(loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedAssessment),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID, variant string) (domain.Assessment, error) {
	key := assessmentID + "?" + variant
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.assessment, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.assessment, nil
		}
		r.mu.RUnlock()

		assessment, err := r.loader.LoadAssessment(ctx, assessmentID, variant)
		if err != nil {
			return domain.Assessment{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedAssessment{
			assessment: assessment,
			expiresAt:  now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return assessment, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAssessmentLoader serves assessments from an in-memory map keyed by
// id+variant (useful for tests/demos and for running without Postgres).
type StaticAssessmentLoader struct {
	assessments map[string]domain.Assessment
}

func NewStaticAssessmentLoader(assessments []domain.Assessment) *StaticAssessmentLoader {
	byKey := make(map[string]domain.Assessment, len(assessments))
	for _, a := range assessments {
		byKey[a.ID+"?"+a.Variant] = a
	}
	return &StaticAssessmentLoader{assessments: byKey}
}

func (l *StaticAssessmentLoader) LoadAssessment(_ context.Context, assessmentID, variant string) (domain.Assessment, error) {
	if a, ok := l.assessments[assessmentID+"?"+variant]; ok {
		return a, nil
	}
	return domain.Assessment{}, domain.ErrAssessmentNotFound
}
