// Package messaging implements the insight-session task queue for the
// oracle worker. Producers push JSON envelopes onto a Redis list; the
// consumer pops them with BRPOP and dispatches to the session handler
// through a bounded worker pool.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sparke-study/oracle-service/internal/application/command"
)

// DefaultQueueKey is the Redis list the worker consumes from.
const DefaultQueueKey = "oracle:insight-sessions"

// ErrConsumerClosed is returned when the consumer has been shut down.
var ErrConsumerClosed = errors.New("consumer is closed")

// TaskEnvelope is the wire format of one queued insight-session job.
type TaskEnvelope struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subjectId"`
	SessionID   string    `json:"sessionId"`
	DocumentIDs []string  `json:"documentIds,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// SessionHandler executes one insight-session run.
type SessionHandler interface {
	Handle(ctx context.Context, cmd command.RunInsightSessionCommand) (*command.RunInsightSessionResult, error)
}

// InflightTracker marks the subject whose session is being processed.
// Метки совещательные: занятый предмет не блокирует обработку, но
// попадает в лог.
type InflightTracker interface {
	Acquire(ctx context.Context, subjectID, sessionID string) (bool, error)
	Release(ctx context.Context, subjectID string) error
}

// ConsumerConfig contains configuration for Consumer.
type ConsumerConfig struct {
	// QueueKey is the Redis list to consume (default: DefaultQueueKey)
	QueueKey string

	// Workers is the number of concurrent session runs
	Workers int

	// PopTimeout bounds each BRPOP call so shutdown stays responsive
	PopTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultConsumerConfig returns sensible defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		QueueKey:   DefaultQueueKey,
		Workers:    4,
		PopTimeout: 5 * time.Second,
	}
}

// Consumer pops insight-session tasks from Redis and runs them.
type Consumer struct {
	client   redis.UniversalClient
	handler  SessionHandler
	inflight InflightTracker
	config   ConsumerConfig
	logger   *slog.Logger

	slots  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewConsumer creates a new queue consumer. The inflight tracker is
// optional.
func NewConsumer(client redis.UniversalClient, handler SessionHandler, inflight InflightTracker, config ConsumerConfig) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if handler == nil {
		return nil, errors.New("session handler is required")
	}
	if config.QueueKey == "" {
		config.QueueKey = DefaultQueueKey
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.PopTimeout <= 0 {
		config.PopTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Consumer{
		client:   client,
		handler:  handler,
		inflight: inflight,
		config:   config,
		logger:   config.Logger,
		slots:    make(chan struct{}, config.Workers),
	}, nil
}

// Start launches the BRPOP loop. Повторный вызов - ошибка.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConsumerClosed
	}
	if c.started {
		return errors.New("consumer already started")
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(loopCtx)
	}()

	c.logger.Info("queue consumer started",
		"queue", c.config.QueueKey,
		"workers", c.config.Workers,
	)
	return nil
}

// consumeLoop blocks on the queue until the context is cancelled.
func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c.slots <- struct{}{}:
		}

		payload, err := c.pop(ctx)
		if err != nil {
			<-c.slots
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("queue pop failed", "error", err)
			// Короткая пауза, чтобы не крутить цикл на лежачем Redis.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if payload == "" {
			<-c.slots
			continue
		}

		c.wg.Add(1)
		go func(raw string) {
			defer c.wg.Done()
			defer func() { <-c.slots }()
			c.process(ctx, raw)
		}(payload)
	}
}

// pop fetches one task, "" when the wait timed out empty.
func (c *Consumer) pop(ctx context.Context) (string, error) {
	vals, err := c.client.BRPop(ctx, c.config.PopTimeout, c.config.QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	// BRPOP возвращает пару [key, value].
	if len(vals) < 2 {
		return "", nil
	}
	return vals[1], nil
}

// process decodes and runs one task.
func (c *Consumer) process(ctx context.Context, raw string) {
	var task TaskEnvelope
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		c.logger.Error("malformed task dropped", "error", err)
		return
	}

	log := c.logger.With(
		"task_id", task.ID,
		"subject_id", task.SubjectID,
		"session_id", task.SessionID,
	)

	if c.inflight != nil {
		acquired, err := c.inflight.Acquire(ctx, task.SubjectID, task.SessionID)
		if err != nil {
			log.Warn("inflight acquire failed", "error", err)
		} else if !acquired {
			log.Warn("subject already has a session in flight")
		}
		// Снимать отметку может только тот воркер, который её поставил:
		// чужую (проигравшую гонку) отметку удалять нельзя.
		if err == nil && acquired {
			defer func() {
				if err := c.inflight.Release(ctx, task.SubjectID); err != nil {
					log.Warn("inflight release failed", "error", err)
				}
			}()
		}
	}

	start := time.Now()
	result, err := c.handler.Handle(ctx, command.RunInsightSessionCommand{
		SubjectID:     task.SubjectID,
		SessionID:     task.SessionID,
		DocumentIDs:   task.DocumentIDs,
		CorrelationID: task.ID,
	})
	if err != nil {
		log.Error("session run failed", "duration", time.Since(start), "error", err)
		return
	}

	log.Info("session run finished",
		"status", result.Status,
		"topics", result.Topics,
		"duration", time.Since(start),
	)
}

// Enqueue pushes a task envelope onto the queue. Используется
// для интеграционных сценариев и ручного перезапуска сессий.
func (c *Consumer) Enqueue(ctx context.Context, task TaskEnvelope) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := c.client.LPush(ctx, c.config.QueueKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Close stops the consume loop and waits for in-flight tasks.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.logger.Info("queue consumer closed")
	return nil
}
