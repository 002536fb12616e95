package repository

import (
	"context"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	pkgkafka "SignalBot/pkg/kafka"
)

// BatchProducer is the part of pkg/kafka.Producer the publisher uses.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// OutcomeEvent is the message value published per outcome.
type OutcomeEvent struct {
	RunID string `json:"run_id"`
	models.BacktestOutcome
	PublishedAt time.Time `json:"published_at"`
}

// KafkaPublisher publishes outcome events keyed by asset so one asset's
// events stay ordered on a partition.
type KafkaPublisher struct {
	producer BatchProducer
	topic    string
	now      func() time.Time
}

func NewKafkaPublisher(producer BatchProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) PublishOutcomes(ctx context.Context, runID string, outcomes []models.BacktestOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	at := p.now().UTC()
	msgs := make([]pkgkafka.Message, len(outcomes))
	for i, o := range outcomes {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(o.AssetID),
			Value: OutcomeEvent{RunID: runID, BacktestOutcome: o, PublishedAt: at},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
