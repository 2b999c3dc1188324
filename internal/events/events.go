package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navada/insightlab/internal/models"
)

// ErrInvalidEvent marks a payload that can never be processed.
var ErrInvalidEvent = errors.New("invalid fetch run event")

// Writer is the subset of kafka.Writer used here.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// DLQTopic names the dead-letter topic for topic.
func DLQTopic(topic string) string {
	return topic + "_dlq"
}

// Publisher emits finished fetch runs.
type Publisher struct {
	w Writer
}

// NewPublisher returns a Publisher backed by a kafka.Writer on topic.
func NewPublisher(brokers []string, topic string) (*Publisher, func() error) {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}
	return &Publisher{w: w}, w.Close
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w Writer) *Publisher {
	return &Publisher{w: w}
}

// Publish sends run keyed by its ID.
func (p *Publisher) Publish(ctx context.Context, run models.FetchRun) error {
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal fetch run: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(run.ID),
		Value: value,
		Time:  run.FinishedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish fetch run %s: %w", run.ID, err)
	}
	return nil
}

// Decode parses a fetch run event. Malformed payloads wrap ErrInvalidEvent.
func Decode(value []byte) (models.FetchRun, error) {
	var run models.FetchRun
	if err := json.Unmarshal(value, &run); err != nil {
		return run, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if run.ID == "" {
		return run, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	switch run.Status {
	case models.RunSuccess, models.RunStale, models.RunFailed:
	default:
		return run, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, run.Status)
	}
	return run, nil
}

// DeadLetter copies msg with headers describing the failure.
func DeadLetter(msg kafka.Message, cause error, now time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}

// Backoff retries WriteMessages with exponential delays starting at base.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Log      *slog.Logger
}

// Write returns the attempt number that succeeded, or the last error.
func (b Backoff) Write(ctx context.Context, w Writer, msg kafka.Message) (int, error) {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		lastErr = w.WriteMessages(ctx, msg)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if attempt == attempts-1 {
			break
		}

		backoff := b.Base * time.Duration(1<<uint(attempt))
		if b.Log != nil {
			b.Log.Warn("DLQ write failed, retrying",
				slog.Any("err", lastErr),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return attempt + 1, ctx.Err()
		}
	}
	return attempts, lastErr
}
