package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/navada/insightlab/internal/events"
	"github.com/navada/insightlab/internal/models"
)

type stubWriter struct {
	fails int
	calls int
	msgs  []kafka.Message
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.calls++
	if s.calls <= s.fails {
		return errors.New("broker unavailable")
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func sampleRun() models.FetchRun {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return models.FetchRun{
		ID:           "run-1",
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Status:       models.RunSuccess,
		TotalRecords: 185,
		Persisted:    true,
		Outcomes: []models.EndpointOutcome{
			{Endpoint: models.EndpointSearch, OK: true, Records: 185},
			{Endpoint: models.EndpointTopCompanies, Error: "timeout", Fallback: true},
		},
	}
}

func TestPublishAndDecode(t *testing.T) {
	w := &stubWriter{}
	p := events.NewPublisherWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), sampleRun()))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "run-1", string(w.msgs[0].Key))

	run, err := events.Decode(w.msgs[0].Value)
	require.NoError(t, err)
	require.Equal(t, sampleRun(), run)
	require.Equal(t, 1, run.Failures())
}

func TestPublishError(t *testing.T) {
	p := events.NewPublisherWithWriter(&stubWriter{fails: 1})
	require.Error(t, p.Publish(context.Background(), sampleRun()))
}

func TestDecodeRejectsInvalid(t *testing.T) {
	noID, _ := json.Marshal(models.FetchRun{Status: models.RunSuccess})
	badStatus, _ := json.Marshal(models.FetchRun{ID: "x", Status: "weird"})

	for name, payload := range map[string][]byte{
		"not json":   []byte("{"),
		"missing id": noID,
		"bad status": badStatus,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := events.Decode(payload)
			require.ErrorIs(t, err, events.ErrInvalidEvent)
		})
	}
}

func TestDeadLetterHeaders(t *testing.T) {
	msg := kafka.Message{
		Key:       []byte("k"),
		Value:     []byte("v"),
		Partition: 2,
		Offset:    41,
		Headers:   []kafka.Header{{Key: "trace", Value: []byte("abc")}},
	}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	dlq := events.DeadLetter(msg, errors.New("render failed"), now)

	require.Equal(t, msg.Value, dlq.Value)
	got := map[string]string{}
	for _, h := range dlq.Headers {
		got[h.Key] = string(h.Value)
	}
	require.Equal(t, "abc", got["trace"])
	require.Equal(t, "2", got["original_partition"])
	require.Equal(t, "41", got["original_offset"])
	require.Equal(t, "render failed", got["error"])
	require.Equal(t, "2024-01-02T03:04:05Z", got["timestamp"])
	require.Len(t, msg.Headers, 1)
}

func TestBackoffRetriesUntilSuccess(t *testing.T) {
	w := &stubWriter{fails: 2}
	attempt, err := events.Backoff{Attempts: 5, Base: time.Millisecond}.Write(context.Background(), w, kafka.Message{})
	require.NoError(t, err)
	require.Equal(t, 3, attempt)
}

func TestBackoffExhausted(t *testing.T) {
	w := &stubWriter{fails: 10}
	attempt, err := events.Backoff{Attempts: 3, Base: time.Millisecond}.Write(context.Background(), w, kafka.Message{})
	require.Error(t, err)
	require.Equal(t, 3, attempt)
	require.Equal(t, 3, w.calls)
}

func TestBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &stubWriter{fails: 10}
	_, err := events.Backoff{Attempts: 5, Base: time.Hour}.Write(ctx, w, kafka.Message{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, w.calls)
}

func TestDLQTopic(t *testing.T) {
	require.Equal(t, "fetch_runs_dlq", events.DLQTopic("fetch_runs"))
}
