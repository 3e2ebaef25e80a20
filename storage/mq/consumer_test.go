package mq

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingAcker struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
}

func (a *recordingAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *recordingAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestDispatch_RestoresPublisherTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(parent, HeaderCarrier(headers))
	require.NotEmpty(t, headers["traceparent"])

	var got trace.SpanContext
	acker := &recordingAcker{}
	dispatch(context.Background(), ConsumeOptions{
		Queue: "policy.submitted.audit",
		Handler: func(ctx context.Context, body []byte) error {
			got = trace.SpanContextFromContext(ctx)
			return nil
		},
	}, amqp.Delivery{Acknowledger: acker, Headers: headers, Body: []byte(`{}`)})

	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, 1, acker.acks)
}

func TestDispatch_Acknowledgement(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		wantAcks    int
		wantNacks   int
		wantRequeue bool
	}{
		{name: "success", wantAcks: 1},
		{name: "skip", err: &SkipMessageError{Reason: "duplicate"}, wantAcks: 1},
		{name: "failure_first_delivery", err: errors.New("sink down"), wantNacks: 1, wantRequeue: true},
		{name: "failure_redelivered", err: errors.New("sink down"), redelivered: true, wantNacks: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &recordingAcker{}
			dispatch(context.Background(), ConsumeOptions{
				Queue:   "q",
				Handler: func(context.Context, []byte) error { return tt.err },
			}, amqp.Delivery{Acknowledger: acker, Redelivered: tt.redelivered})

			assert.Equal(t, tt.wantAcks, acker.acks)
			assert.Equal(t, tt.wantNacks, acker.nacks)
			assert.Equal(t, tt.wantRequeue, acker.requeue)
		})
	}
}
