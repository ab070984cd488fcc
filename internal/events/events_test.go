package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisherKeysByToken(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w}

	asset := domain.DerivedAsset{Token: "tok", Filename: "converted_image.png", Width: 1024, Height: 1024}
	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeAssetCreated, Token: "tok", Asset: &asset}))
	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeIconSetDone, JobID: "job-9"}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "tok", string(w.msgs[0].Key))
	assert.Equal(t, "job-9", string(w.msgs[1].Key))
	assert.Equal(t, TypeAssetCreated, string(w.msgs[0].Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, 1024, decoded.Asset.Width)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &captureWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), Event{Type: TypeAssetCreated})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"k:9092"}, "")
	assert.Error(t, err)
}

func TestOpenFallsBackToNoop(t *testing.T) {
	p, err := Open(nil, "iconforge.assets")
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, p)

	p, err = Open([]string{"localhost:9092"}, "iconforge.assets")
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())
}
