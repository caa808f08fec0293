package repository

import (
	"context"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	pkgkafka "MacroPulse/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// overlayEvent is the message body published per snapshot.
type overlayEvent struct {
	Ticker  string         `json:"ticker"`
	Overlay models.Overlay `json:"overlay"`
}

// KafkaOverlayPublisher implements OverlayPublisher for Kafka, keyed by
// ticker so snapshots of one ticker stay ordered.
type KafkaOverlayPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaOverlayPublisher creates Kafka publisher.
func NewKafkaOverlayPublisher(producer *pkgkafka.Producer, topic string) *KafkaOverlayPublisher {
	return &KafkaOverlayPublisher{producer: producer, topic: topic}
}

func (p *KafkaOverlayPublisher) Publish(ctx context.Context, ticker string, o models.Overlay) error {
	return p.producer.Publish(ctx, p.topic, []byte(ticker), overlayEvent{Ticker: ticker, Overlay: o},
		kafka.Header{Key: "content-type", Value: []byte("application/json")})
}

func (p *KafkaOverlayPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.OverlayPublisher = (*KafkaOverlayPublisher)(nil)
