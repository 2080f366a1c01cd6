package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
	err     error
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return p.err
}

func TestLogCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "fetch failed", map[string]interface{}{"symbol": "BTCUSDT"}, "fetcher.go:10")
	}
	c.AddLog("error", "split failed", nil, "split.go:5")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
	require.Equal(t, 3, pub.batches[0][0].Count, "noisiest entry should come first")
}

func TestLogCollectorReportsPublishErrors(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	var mu sync.Mutex
	var got error
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 1,
		Publisher:      pub,
		OnPublishError: func(err error) {
			mu.Lock()
			got = err
			mu.Unlock()
		},
	})
	c.AddLog("error", "boom", nil, "x.go:1")
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, got)
	require.Contains(t, got.Error(), "broker down")
}
