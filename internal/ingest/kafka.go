package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/config"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes JSON state payloads from a Kafka topic.
type KafkaSource struct {
	reader messageReader
	logger *logrus.Entry
}

func NewKafkaSource(cfg config.KafkaConfig, logger *logrus.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &KafkaSource{
		reader: reader,
		logger: logger.WithFields(logrus.Fields{"component": "kafka", "topic": cfg.Topic}),
	}
}

// Run forwards decoded updates to out until ctx is done. Messages are
// committed once handed over; malformed ones are committed and dropped.
func (s *KafkaSource) Run(ctx context.Context, out chan<- models.StateUpdate) error {
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		u, err := DecodePayload(m.Value, m.Time.UTC())
		if err != nil {
			Updates.WithLabelValues("malformed").Inc()
			s.logger.WithField("offset", m.Offset).WithError(err).Warn("dropping message")
		} else {
			select {
			case out <- u:
			case <-ctx.Done():
				return nil
			}
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka commit: %w", err)
		}
	}
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
