package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/internal/wizard"
)

func TestMemoryWizardStore_SaveLoadIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWizardStore(time.Minute)

	state := wizard.NewState()
	require.NoError(t, state.SubmitProduct(wizard.ProductLegal))
	require.NoError(t, store.Save(ctx, "s1", state))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, wizard.StepPrincipalDetails, loaded.Step)
	assert.Equal(t, wizard.ProductLegal, loaded.ProductType)

	// 修改读出的副本不影响存储
	loaded.Advance()
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, wizard.StepPrincipalDetails, again.Step)
}

func TestMemoryWizardStore_Missing(t *testing.T) {
	store := NewMemoryWizardStore(time.Minute)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryWizardStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWizardStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "s1", wizard.NewState()))

	now = now.Add(2 * time.Minute)
	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryWizardStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWizardStore(time.Minute)

	require.NoError(t, store.Save(ctx, "s1", wizard.NewState()))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryWizardStore_LockSerializes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWizardStore(time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := store.Lock(ctx, "s1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestMemoryWizardStore_LockRespectsContext(t *testing.T) {
	store := NewMemoryWizardStore(time.Minute)

	unlock, err := store.Lock(context.Background(), "s1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = store.Lock(ctx, "s1")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
