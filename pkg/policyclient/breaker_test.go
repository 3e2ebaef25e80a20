package policyclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/internal/wizard"
)

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) CreatePolicy(ctx context.Context, _ wizard.PolicySubmission) (*Result, error) {
	s.calls++
	if len(s.errs) == 0 {
		return &Result{Status: 201}, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return nil, err
}

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	upstream := &scriptedClient{errs: []error{
		&UpstreamError{Status: 503, Body: "down"},
		&UpstreamError{Status: 503, Body: "down"},
	}}
	b := NewBreakerClient(upstream, 2, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := b.CreatePolicy(context.Background(), sampleSubmission())
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, b.GetState())

	_, err := b.CreatePolicy(context.Background(), sampleSubmission())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, upstream.calls)
}

func TestBreakerClient_ClientErrorsDoNotTrip(t *testing.T) {
	upstream := &scriptedClient{errs: []error{
		&UpstreamError{Status: 422, Body: "bad"},
		&UpstreamError{Status: 422, Body: "bad"},
		context.Canceled,
	}}
	b := NewBreakerClient(upstream, 2, time.Minute)

	for i := 0; i < 3; i++ {
		_, _ = b.CreatePolicy(context.Background(), sampleSubmission())
	}
	assert.Equal(t, StateClosed, b.GetState())
}

func TestBreakerClient_HalfOpenRecovers(t *testing.T) {
	upstream := &scriptedClient{errs: []error{&UpstreamError{Status: 500, Body: "boom"}}}
	b := NewBreakerClient(upstream, 1, time.Minute)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_, err := b.CreatePolicy(context.Background(), sampleSubmission())
	require.Error(t, err)
	require.Equal(t, StateOpen, b.GetState())

	now = now.Add(2 * time.Minute)
	result, err := b.CreatePolicy(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, 201, result.Status)
	assert.Equal(t, StateClosed, b.GetState())
}

func TestBreakerClient_HalfOpenIgnoresInconclusiveCall(t *testing.T) {
	tests := []struct {
		name  string
		trial error
	}{
		{name: "cancelled", trial: context.Canceled},
		{name: "client_error", trial: &UpstreamError{Status: 400, Body: "bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &scriptedClient{errs: []error{
				&UpstreamError{Status: 503, Body: "down"},
				tt.trial,
				&UpstreamError{Status: 503, Body: "still down"},
			}}
			b := NewBreakerClient(upstream, 1, time.Minute)

			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			b.now = func() time.Time { return now }

			_, err := b.CreatePolicy(context.Background(), sampleSubmission())
			require.Error(t, err)
			require.Equal(t, StateOpen, b.GetState())

			now = now.Add(2 * time.Minute)
			_, err = b.CreatePolicy(context.Background(), sampleSubmission())
			require.ErrorIs(t, err, tt.trial)
			assert.Equal(t, StateHalfOpen, b.GetState())

			// 下一次试探仍失败则重新打开
			_, err = b.CreatePolicy(context.Background(), sampleSubmission())
			require.Error(t, err)
			assert.Equal(t, StateOpen, b.GetState())
			assert.Equal(t, 3, upstream.calls)

			_, err = b.CreatePolicy(context.Background(), sampleSubmission())
			assert.ErrorIs(t, err, ErrCircuitOpen)
		})
	}
}
