package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}

func TestProducerPublishEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "forecasts", []byte("BTCUSDT"), map[string]float64{"price": 42}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "raw line"))

	require.Len(t, w.msgs, 2)
	require.Equal(t, "forecasts", w.msgs[0].Topic)
	require.Equal(t, []byte("BTCUSDT"), w.msgs[0].Key)
	var decoded map[string]float64
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	require.Equal(t, 42.0, decoded["price"])
	require.Nil(t, w.msgs[1].Key)
	require.Equal(t, "raw line", string(w.msgs[1].Value))

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("leader not available")}, "gzip")
	err := p.Publish(context.Background(), "forecasts", nil, []byte("x"))
	require.ErrorContains(t, err, "leader not available")
	require.ErrorContains(t, err, "forecasts")
}

func TestProducerPublishBatchEmptyIsNoop(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")
	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	require.Empty(t, w.msgs)
}
