package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/fanplan/internal/account"
)

type fakeWriter struct {
	batches [][]kafka.Message
	failAt  int
	closed  bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.failAt > 0 && len(f.batches)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, append([]kafka.Message(nil), msgs...))
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestProducer(w *fakeWriter, batch int) *Producer {
	return &Producer{writer: w, batchSize: batch, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func summaries(n int) []account.Summary {
	out := make([]account.Summary, n)
	for i := range out {
		out[i] = account.Summary{Season: "2024", AccountNumber: string(rune('a' + i)), NumGamesAttend: 1, GamesAttended: 1}
	}
	return out
}

func TestPublishSummariesBatchesAndKeys(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w, 2)
	runID := uuid.New()

	sent, err := p.PublishSummaries(context.Background(), runID, summaries(5))
	require.NoError(t, err)
	assert.Equal(t, 5, sent)

	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[2], 1)

	msg := w.batches[0][1]
	assert.Equal(t, "2024:b", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, runID.String(), string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "b", body["account_number"])
	assert.Contains(t, body, "cells")
}

func TestPublishSummariesStopsOnError(t *testing.T) {
	w := &fakeWriter{failAt: 2}
	p := newTestProducer(w, 2)

	sent, err := p.PublishSummaries(context.Background(), uuid.New(), summaries(5))
	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, 2, sent)
}

func TestPublishNothing(t *testing.T) {
	w := &fakeWriter{}
	sent, err := newTestProducer(w, 10).PublishSummaries(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, w.batches)

	require.NoError(t, newTestProducer(w, 10).Close())
	assert.True(t, w.closed)
}
