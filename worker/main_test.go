package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/navada/insightlab/internal/dedupe"
	"github.com/navada/insightlab/internal/events"
	"github.com/navada/insightlab/internal/models"
	"github.com/navada/insightlab/internal/snapshot"
)

type stubIndexer struct {
	calls int
	jobs  int
	err   error
}

func (s *stubIndexer) IndexJobs(_ context.Context, jobs []models.JobRecord) (int, error) {
	s.calls++
	s.jobs += len(jobs)
	return len(jobs), s.err
}

type stubRenderer struct {
	calls int
	stale bool
	err   error
}

func (s *stubRenderer) render(ds *models.Dataset) ([]models.ChartArtifact, error) {
	s.calls++
	s.stale = ds.Stale
	return make([]models.ChartArtifact, 16), s.err
}

func newHandler(t *testing.T, idx *stubIndexer, r *stubRenderer) *runHandler {
	t.Helper()
	store := snapshot.New(filepath.Join(t.TempDir(), "live_uk_ai_jobs.csv"))
	posted := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save([]models.JobRecord{
		{ID: "a", Title: "AI Engineer", Company: "Acme", Location: "London", PostedDate: posted, FetchedAt: posted},
		{ID: "b", Title: "Data Scientist", Company: "Beta", Location: "Leeds", PostedDate: posted, FetchedAt: posted},
	}))

	h := &runHandler{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:  store,
		render: r.render,
		seen:   dedupe.NewCache(100, time.Hour),
	}
	if idx != nil {
		h.indexer = idx
	}
	return h
}

func runMessage(t *testing.T, run models.FetchRun) kafka.Message {
	t.Helper()
	data, err := json.Marshal(run)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(run.ID), Value: data}
}

func TestProcessMessageSkipsInlineRenderedRun(t *testing.T) {
	idx := &stubIndexer{}
	r := &stubRenderer{}
	h := newHandler(t, idx, r)
	msg := runMessage(t, models.FetchRun{ID: "run-inline", Status: models.RunSuccess, Persisted: true, RenderedInline: true})

	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Zero(t, r.calls)
	require.Equal(t, 1, idx.calls)
	require.Equal(t, 2, idx.jobs)
	require.True(t, h.seen.IsSeen("run-inline"))
}

func TestProcessMessageRendersAndIndexes(t *testing.T) {
	idx := &stubIndexer{}
	r := &stubRenderer{}
	h := newHandler(t, idx, r)
	msg := runMessage(t, models.FetchRun{ID: "run-1", Status: models.RunSuccess, Persisted: true})

	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Equal(t, 1, r.calls)
	require.False(t, r.stale)
	require.Equal(t, 2, idx.jobs)

	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Equal(t, 1, r.calls)
	require.Equal(t, 1, idx.calls)
}

func TestProcessMessageStaleRunSkipsIndexing(t *testing.T) {
	idx := &stubIndexer{}
	r := &stubRenderer{}
	h := newHandler(t, idx, r)

	msg := runMessage(t, models.FetchRun{ID: "run-2", Status: models.RunStale})
	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Equal(t, 1, r.calls)
	require.True(t, r.stale)
	require.Zero(t, idx.calls)
}

func TestProcessMessageSkipsFailedRun(t *testing.T) {
	r := &stubRenderer{}
	h := newHandler(t, nil, r)

	msg := runMessage(t, models.FetchRun{ID: "run-3", Status: models.RunFailed})
	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Zero(t, r.calls)
}

func TestProcessMessageInvalidPayload(t *testing.T) {
	h := newHandler(t, nil, &stubRenderer{})

	err := h.processMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	require.ErrorIs(t, err, events.ErrInvalidEvent)
}

func TestProcessMessageRetriesAfterFailure(t *testing.T) {
	idx := &stubIndexer{err: errors.New("cluster red")}
	r := &stubRenderer{}
	h := newHandler(t, idx, r)
	msg := runMessage(t, models.FetchRun{ID: "run-4", Status: models.RunSuccess, Persisted: true})

	require.Error(t, h.processMessage(context.Background(), msg))

	idx.err = nil
	require.NoError(t, h.processMessage(context.Background(), msg))
	require.Equal(t, 2, r.calls)
	require.Equal(t, 2, idx.calls)
}

func TestProcessMessageRenderFailure(t *testing.T) {
	h := newHandler(t, nil, &stubRenderer{err: errors.New("disk full")})

	msg := runMessage(t, models.FetchRun{ID: "run-5", Status: models.RunSuccess})
	require.Error(t, h.processMessage(context.Background(), msg))
}
