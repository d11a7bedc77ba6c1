// Package publish streams account summaries to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/albapepper/fanplan/internal/account"
)

// DefaultBatchSize is the number of messages sent per write.
const DefaultBatchSize = 500

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes summaries keyed by season and account so every update
// for an account lands on the same partition.
type Producer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewProducer returns a Producer writing to topic on brokers.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: w, batchSize: DefaultBatchSize, logger: logger}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Key returns the message key for a summary.
func Key(s *account.Summary) []byte {
	return []byte(s.Season + ":" + s.AccountNumber)
}

// PublishSummaries sends one message per summary and returns how many were
// written before any error.
func (p *Producer) PublishSummaries(ctx context.Context, runID uuid.UUID, summaries []account.Summary) (int, error) {
	header := kafka.Header{Key: "run_id", Value: []byte(runID.String())}
	batch := make([]kafka.Message, 0, p.batchSize)
	sent := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("write messages: %w", err)
		}
		sent += len(batch)
		p.logger.Debug("Published summary batch", "messages", len(batch), "sent", sent)
		batch = batch[:0]
		return nil
	}

	for i := range summaries {
		s := &summaries[i]
		value, err := json.Marshal(s)
		if err != nil {
			return sent, fmt.Errorf("marshal %s/%s: %w", s.Season, s.AccountNumber, err)
		}
		batch = append(batch, kafka.Message{
			Key:     Key(s),
			Value:   value,
			Headers: []kafka.Header{header},
		})
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}
	if err := flush(); err != nil {
		return sent, err
	}
	p.logger.Info("Published summaries", "messages", sent, "run_id", runID)
	return sent, nil
}
