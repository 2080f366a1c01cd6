package repository

import (
	"context"
	"time"

	"CryptoCast/internal/domain/models"
	domrepo "CryptoCast/internal/domain/repository"
)

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// ForecastEvent is the message emitted after every inference run.
type ForecastEvent struct {
	Symbol      string                  `json:"symbol"`
	GeneratedAt time.Time               `json:"generated_at"`
	Summary     *models.ForecastSummary `json:"summary"`
}

// KafkaForecastPublisher emits forecast summaries keyed by symbol.
type KafkaForecastPublisher struct {
	producer keyedPublisher
	topic    string
	now      func() time.Time
}

var _ domrepo.Publisher = (*KafkaForecastPublisher)(nil)

// NewKafkaForecastPublisher creates Kafka publisher.
func NewKafkaForecastPublisher(producer keyedPublisher, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaForecastPublisher) PublishForecast(ctx context.Context, symbol string, s *models.ForecastSummary) error {
	return p.producer.Publish(ctx, p.topic, []byte(symbol), ForecastEvent{
		Symbol:      symbol,
		GeneratedAt: p.now().UTC(),
		Summary:     s,
	})
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
