package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/internal/model"
	"PolicyWizard/internal/wizard"
	"PolicyWizard/storage/mq"
)

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) TryMark(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memoryDeduper) Done(ctx context.Context, id string) error { return nil }

func (d *memoryDeduper) Release(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func encode(t *testing.T, msg model.PolicySubmittedMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestPolicySubmittedHandler_Dedupes(t *testing.T) {
	var got []model.PolicySubmittedMessage
	sink := func(ctx context.Context, msg model.PolicySubmittedMessage) error {
		got = append(got, msg)
		return nil
	}
	handler := PolicySubmittedHandler(newMemoryDeduper(), sink)

	body := encode(t, model.PolicySubmittedMessage{
		MessageID:  "policy_submitted_1",
		SessionID:  "s1",
		Status:     201,
		Submission: wizard.PolicySubmission{ProductType: wizard.ProductLegal, Amount: wizard.Premium},
	})

	require.NoError(t, handler(context.Background(), body))

	err := handler(context.Background(), body)
	var skip *mq.SkipMessageError
	assert.True(t, errors.As(err, &skip))

	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, wizard.ProductLegal, got[0].Submission.ProductType)
}

func TestPolicySubmittedHandler_SkipsMalformed(t *testing.T) {
	handler := PolicySubmittedHandler(nil, LogAuditSink)

	var skip *mq.SkipMessageError
	assert.True(t, errors.As(handler(context.Background(), []byte("{")), &skip))
	assert.True(t, errors.As(handler(context.Background(), []byte(`{"session_id":"s1"}`)), &skip))
}

func TestPolicySubmittedHandler_ReleasesOnFailure(t *testing.T) {
	deduper := newMemoryDeduper()
	calls := 0
	sink := func(ctx context.Context, msg model.PolicySubmittedMessage) error {
		calls++
		if calls == 1 {
			return errors.New("sink unavailable")
		}
		return nil
	}
	handler := PolicySubmittedHandler(deduper, sink)
	body := encode(t, model.PolicySubmittedMessage{MessageID: "m1"})

	require.Error(t, handler(context.Background(), body))
	require.NoError(t, handler(context.Background(), body))
	assert.Equal(t, 2, calls)
}
