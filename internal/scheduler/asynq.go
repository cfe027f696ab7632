package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeAutoAccept = "reservation:auto_accept"
	DefaultQueue   = "default"
)

type autoAcceptPayload struct {
	Key string `json:"key"`
}

// AsynqScheduler arms tasks in a Redis-backed asynq queue so they survive
// restarts. The task id is the key, which lets Cancel find it again.
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	logger    *zap.Logger
}

func NewAsynqScheduler(opt asynq.RedisConnOpt, logger *zap.Logger) *AsynqScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsynqScheduler{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     DefaultQueue,
		logger:    logger,
	}
}

func NewAutoAcceptTask(key string) (*asynq.Task, error) {
	b, err := json.Marshal(autoAcceptPayload{Key: key})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAutoAccept, b), nil
}

func (s *AsynqScheduler) Schedule(ctx context.Context, key string, delay time.Duration) error {
	task, err := NewAutoAcceptTask(key)
	if err != nil {
		return fmt.Errorf("failed to build task: %w", err)
	}
	if err := s.Cancel(ctx, key); err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(s.queue),
		asynq.TaskID(key),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", key, err)
	}
	return nil
}

func (s *AsynqScheduler) Cancel(_ context.Context, key string) error {
	err := s.inspector.DeleteTask(s.queue, key)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("failed to cancel %s: %w", key, err)
}

func (s *AsynqScheduler) Close() error {
	ierr := s.inspector.Close()
	if err := s.client.Close(); err != nil {
		return err
	}
	return ierr
}

// Mux routes auto-accept tasks to h.
func (s *AsynqScheduler) Mux(h Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAutoAccept, HandleAutoAccept(h, s.logger))
	return mux
}

func HandleAutoAccept(h Handler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p autoAcceptPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Warn("invalid auto-accept payload", zap.Error(err))
			return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
		}
		if p.Key == "" {
			return fmt.Errorf("empty key: %w", asynq.SkipRetry)
		}
		if err := h(ctx, p.Key); err != nil {
			logger.Warn("auto-accept failed", zap.String("key", p.Key), zap.Error(err))
			return err
		}
		return nil
	}
}

// NewWorker builds the asynq server that consumes the scheduler's queue.
func NewWorker(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
	})
}
