package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"statquiz-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore persists sessions and attempt history in Redis.
// Layout:
//   - active session:  SET  quiz:active:{id}?{variant} -> JSON session, with TTL
//   - attempt history: RPUSH quiz:attempts:{id}?{variant} -> JSON attempts
//
// The active session is written whole on every save, so write ordering never
// matters; the attempts list is append-only and unbounded.
type SessionStore struct {
	client     *redis.Client
	sessionTTL time.Duration
}

func NewSessionStore(client *redis.Client, sessionTTL time.Duration) *SessionStore {
	return &SessionStore{client: client, sessionTTL: sessionTTL}
}

func (s *SessionStore) GetActiveSession(ctx context.Context, assessmentID, variant string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(assessmentID, variant)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) SaveActiveSession(ctx context.Context, assessmentID, variant string, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(assessmentID, variant), data, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) ClearActiveSession(ctx context.Context, assessmentID, variant string) error {
	if err := s.client.Del(ctx, s.sessionKey(assessmentID, variant)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SessionStore) AppendAttempt(ctx context.Context, assessmentID, variant string, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.client.RPush(ctx, s.attemptsKey(assessmentID, variant), data).Err(); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *SessionStore) GetHistory(ctx context.Context, assessmentID, variant string) (domain.History, error) {
	raws, err := s.client.LRange(ctx, s.attemptsKey(assessmentID, variant), 0, -1).Result()
	if err != nil {
		return domain.History{}, fmt.Errorf("load history: %w", err)
	}
	history := domain.History{Attempts: make([]domain.Attempt, 0, len(raws))}
	for _, raw := range raws {
		var attempt domain.Attempt
		if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
			return domain.History{}, fmt.Errorf("unmarshal attempt: %w", err)
		}
		history.Attempts = append(history.Attempts, attempt)
	}
	history.Fold()
	return history, nil
}

func (s *SessionStore) sessionKey(assessmentID, variant string) string {
	return "quiz:active:" + assessmentID + "?" + variant
}

func (s *SessionStore) attemptsKey(assessmentID, variant string) string {
	return "quiz:attempts:" + assessmentID + "?" + variant
}
