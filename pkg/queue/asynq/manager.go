package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"astroline/internal/model"
	"astroline/pkg/config"
	"astroline/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	// TypeConsultationEnded is emitted by the consultation lifecycle
	// service when a chat ends; the consumer drives release.
	TypeConsultationEnded = "consultation:ended"
)

// Manager wraps the completion-event queue: the lifecycle service
// enqueues, this process consumes.
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewManager creates the queue manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()

	return &Manager{
		client: client,
		server: server,
		mux:    mux,
	}, nil
}

// EnqueueCompletion enqueues a consultation-ended event. Exposed for the
// lifecycle-service side of the contract and for integration tests.
func (m *Manager) EnqueueCompletion(ctx context.Context, event *model.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	task := asynq.NewTask(TypeConsultationEnded, payload)

	opts := []asynq.Option{
		asynq.MaxRetry(config.GlobalConfig.Queue.MaxRetry),
	}

	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue completion event: %w", err)
	}

	logger.InfoCtx(ctx, "completion event enqueued for astrologer %s, queue: %s", event.AstrologerID, info.Queue)
	return nil
}

// RegisterHandler registers a task handler.
func (m *Manager) RegisterHandler(pattern string, handler asynq.Handler) {
	m.mux.Handle(pattern, handler)
}

// Start starts the queue consumer.
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting completion-event consumer")
	return m.server.Start(m.mux)
}

// Stop stops the queue consumer.
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping completion-event consumer")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes the client.
func (m *Manager) Close() error {
	return m.client.Close()
}

// ParseCompletionEvent decodes a consultation-ended task payload.
func ParseCompletionEvent(task *asynq.Task) (*model.CompletionEvent, error) {
	var event model.CompletionEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion event: %w", err)
	}
	if event.AstrologerID == "" {
		return nil, fmt.Errorf("completion event missing astrologer id")
	}
	if !event.Outcome.Valid() {
		return nil, fmt.Errorf("completion event has invalid outcome %q", event.Outcome)
	}
	return &event, nil
}
