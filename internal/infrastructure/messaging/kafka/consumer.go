package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/molforge/fragelab/internal/application/runs"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

// RetryPolicy bounds how a failed delivery is retried before dead-lettering.
// Only transient infrastructure failures retry; permanent pipeline errors go
// straight to the dead-letter topic.
type RetryPolicy struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topic           string
	AutoOffsetReset string // "earliest" | "latest"
	Retry           RetryPolicy
}

// ConsumerMetrics counts what the consumer has done since start.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	Lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// Consumer reads one topic inside a consumer group and feeds each message to
// the handler. Offsets are committed only after the handler, its retries, or
// the dead-letter publish have run, so a crash mid-message redelivers it.
type Consumer struct {
	reader  ReaderInterface
	dlq     *Producer
	handler common.MessageHandler
	config  ConsumerConfig
	logger  logging.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *ConsumerMetrics
}

// NewConsumer builds a consumer for cfg.Topic. When the retry policy names a
// dead-letter topic, a dedicated producer for it is created on the same
// brokers.
func NewConsumer(cfg ConsumerConfig, handler common.MessageHandler, logger logging.Logger) (*Consumer, error) {
	if err := validateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "message handler required")
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.RetryBackoff == 0 {
		cfg.Retry.RetryBackoff = time.Second
	}
	if cfg.Retry.MaxRetryBackoff == 0 {
		cfg.Retry.MaxRetryBackoff = 30 * time.Second
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
		MaxWait:     time.Second,
		StartOffset: startOffset,
	})

	var dlq *Producer
	if cfg.Retry.DeadLetterTopic != "" {
		p, err := NewProducer(ProducerConfig{Brokers: cfg.Brokers}, logger)
		if err != nil {
			reader.Close()
			return nil, err
		}
		dlq = p
	}

	return &Consumer{
		reader:  reader,
		dlq:     dlq,
		handler: handler,
		config:  cfg,
		logger:  logger.Named("consumer"),
		metrics: &ConsumerMetrics{},
	}, nil
}

func validateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "consumer group required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.Newf(errors.ErrCodeValidation, "invalid auto offset reset %q", cfg.AutoOffsetReset)
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "retries must be >= 0")
	}
	return nil
}

// Start launches the consume loop. It returns immediately; use Close to stop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started",
		logging.String("topic", c.config.Topic),
		logging.String("group", c.config.GroupID),
	)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.metrics.MessagesConsumed.Add(1)
		c.metrics.Lag.Store(m.HighWaterMark - m.Offset)

		if err := c.process(ctx, toMessage(m)); err != nil {
			// Only context cancellation escapes process; leave the message
			// uncommitted so it redelivers to the next assignee.
			return
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("commit failed", logging.Err(err),
				logging.Int64("offset", m.Offset))
		}
	}
}

// process runs the handler with the retry policy. It returns an error only
// when ctx is done; every other outcome (success, dead-lettered, dropped) is
// terminal for this delivery.
func (c *Consumer) process(ctx context.Context, msg *common.Message) error {
	err := c.handler(ctx, msg)
	if err == nil {
		c.metrics.MessagesProcessed.Add(1)
		return nil
	}

	if errors.IsRetryable(err) {
		backoff := c.config.Retry.RetryBackoff
		for attempt := 1; attempt <= c.config.Retry.MaxRetries; attempt++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			c.metrics.MessagesRetried.Add(1)
			if err = c.handler(ctx, msg); err == nil {
				c.metrics.MessagesProcessed.Add(1)
				return nil
			}
			if !errors.IsRetryable(err) {
				break
			}

			backoff *= 2
			if backoff > c.config.Retry.MaxRetryBackoff {
				backoff = c.config.Retry.MaxRetryBackoff
			}
		}
	}

	c.logger.Error("message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.String("code", string(errors.GetCode(err))),
		logging.Err(err),
	)
	c.deadLetter(ctx, msg, err)
	return nil
}

// deadLetter forwards the failed message, annotated with the failure, to the
// dead-letter topic. Without one the message is dropped after logging.
func (c *Consumer) deadLetter(ctx context.Context, msg *common.Message, cause error) {
	if c.dlq == nil || c.config.Retry.DeadLetterTopic == "" {
		return
	}

	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderErrorCode] = string(errors.GetCode(cause))
	headers[HeaderErrorMessage] = cause.Error()

	dlMsg := &common.ProducerMessage{
		Topic:   c.config.Retry.DeadLetterTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.dlq.Publish(ctx, dlMsg); err != nil {
		c.logger.Error("dead-letter publish failed", logging.Err(err))
		return
	}
	c.metrics.MessagesDeadLettered.Add(1)
}

// Snapshot returns the consumer counters.
func (c *Consumer) Snapshot() (consumed, processed, retried, deadLettered, lag int64) {
	return c.metrics.MessagesConsumed.Load(),
		c.metrics.MessagesProcessed.Load(),
		c.metrics.MessagesRetried.Load(),
		c.metrics.MessagesDeadLettered.Load(),
		c.metrics.Lag.Load()
}

// Close stops the loop, waits for the in-flight message, and closes the
// reader and dead-letter producer.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	if c.dlq != nil {
		if dlqErr := c.dlq.Close(); err == nil {
			err = dlqErr
		}
	}
	c.logger.Info("Kafka consumer closed",
		logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

func toMessage(m kafka.Message) *common.Message {
	msg := &common.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Timestamp: m.Time,
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// ─────────────────────────────────────────────────────────────────────────────
// Pose-job handler
// ─────────────────────────────────────────────────────────────────────────────

// JobRunner is the slice of the run service the handler invokes.
type JobRunner interface {
	ExecuteJob(ctx context.Context, runID common.ID) (*run.Run, error)
}

// NewPoseJobHandler decodes pose jobs and executes them through the run
// service. Malformed payloads are permanent failures, so they dead-letter on
// the first delivery instead of retrying.
func NewPoseJobHandler(runner JobRunner, logger logging.Logger) common.MessageHandler {
	log := logger.Named("pose_jobs")
	return func(ctx context.Context, msg *common.Message) error {
		var job runs.Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "decode pose job")
		}
		if job.RunID == "" {
			return errors.New(errors.ErrCodeValidation, "pose job missing run id")
		}

		start := time.Now()
		r, err := runner.ExecuteJob(ctx, job.RunID)
		if err != nil {
			return err
		}

		log.Info("pose job executed",
			logging.String("run_id", string(job.RunID)),
			logging.String("status", string(r.Status)),
			logging.Duration("took", time.Since(start)),
		)
		return nil
	}
}
