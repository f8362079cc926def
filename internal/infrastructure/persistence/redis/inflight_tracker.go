// Package redis implements Redis-backed advisory state for the oracle
// worker: the per-subject in-flight session tracker.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-FLIGHT TRACKER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSubjectIDEmpty is returned when subject ID is empty.
	ErrSubjectIDEmpty = errors.New("inflight_tracker: subject ID cannot be empty")
)

// InflightMark is the value stored for an active session.
type InflightMark struct {
	// SessionID is the session currently being processed.
	SessionID string `json:"session_id"`

	// StartedAt is when processing began.
	StartedAt time.Time `json:"started_at"`
}

// InflightTrackerConfig contains configuration for InflightTracker.
type InflightTrackerConfig struct {
	// KeyPrefix namespaces the tracker keys (default: "oracle:inflight").
	KeyPrefix string

	// TTL bounds how long a mark survives a crashed worker.
	TTL time.Duration
}

// DefaultInflightTrackerConfig returns sensible defaults.
func DefaultInflightTrackerConfig() InflightTrackerConfig {
	return InflightTrackerConfig{
		KeyPrefix: "oracle:inflight",
		TTL:       15 * time.Minute,
	}
}

// InflightTracker marks subjects whose insight session is being
// processed. Метки совещательные: TTL страхует от упавшего воркера,
// а занятый ключ не препятствует повторной обработке.
type InflightTracker struct {
	client redis.UniversalClient
	config InflightTrackerConfig
}

// NewInflightTracker creates a new InflightTracker.
func NewInflightTracker(client redis.UniversalClient, config InflightTrackerConfig) *InflightTracker {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "oracle:inflight"
	}
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	return &InflightTracker{client: client, config: config}
}

// Acquire marks the subject as in flight. Returns false when another
// session already holds the mark.
func (t *InflightTracker) Acquire(ctx context.Context, subjectID, sessionID string) (bool, error) {
	if subjectID == "" {
		return false, ErrSubjectIDEmpty
	}

	mark := InflightMark{
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(mark)
	if err != nil {
		return false, fmt.Errorf("marshal inflight mark: %w", err)
	}

	ok, err := t.client.SetNX(ctx, t.key(subjectID), data, t.config.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("set inflight mark: %w", err)
	}
	return ok, nil
}

// Lookup returns the active mark of a subject, nil when none.
func (t *InflightTracker) Lookup(ctx context.Context, subjectID string) (*InflightMark, error) {
	if subjectID == "" {
		return nil, ErrSubjectIDEmpty
	}

	data, err := t.client.Get(ctx, t.key(subjectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inflight mark: %w", err)
	}

	var mark InflightMark
	if err := json.Unmarshal(data, &mark); err != nil {
		return nil, fmt.Errorf("unmarshal inflight mark: %w", err)
	}
	return &mark, nil
}

// Release removes the subject's mark.
func (t *InflightTracker) Release(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return ErrSubjectIDEmpty
	}
	if err := t.client.Del(ctx, t.key(subjectID)).Err(); err != nil {
		return fmt.Errorf("delete inflight mark: %w", err)
	}
	return nil
}

func (t *InflightTracker) key(subjectID string) string {
	return t.config.KeyPrefix + ":" + subjectID
}
