package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewMemoryBroker()
	ch, err := b.Subscribe(ctx, Channel("doctorconnect.events", "review.submitted"))
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "doctorconnect.events.review.submitted", []byte(`{"rating":5}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"rating":5}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Len(t, b.Published("doctorconnect.events.review.submitted"), 1)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(ctx, "x", nil), ErrClosed)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "events.appointment.confirmed", Channel("events", "appointment.confirmed"))
	assert.Equal(t, "appointment.confirmed", Channel("", "appointment.confirmed"))
}
