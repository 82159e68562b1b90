package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdempotency(t *testing.T, mutate func(*IdempotencyConfig)) *IdempotencyService {
	_, adapter := helpers.SetupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewIdempotencyService(adapter, cfg)
}

func TestIdempotencyService_AcquireProcessingLock(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt", func(t *testing.T) {
		svc := newTestIdempotency(t, nil)
		pc, err := svc.AcquireProcessingLock(ctx, "A0001")
		require.NoError(t, err)
		assert.Equal(t, "A0001", pc.Key)
		assert.Zero(t, pc.RetryCount)
		assert.False(t, pc.IsRetry)
		assert.True(t, pc.lockAcquired)
	})

	t.Run("concurrent holder is rejected", func(t *testing.T) {
		svc := newTestIdempotency(t, nil)
		_, err := svc.AcquireProcessingLock(ctx, "A0002")
		require.NoError(t, err)

		pc, err := svc.AcquireProcessingLock(ctx, "A0002")
		assert.ErrorIs(t, err, ErrLockAcquireFailed)
		assert.Nil(t, pc)
	})
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotency(t, nil)

	pc, err := svc.AcquireProcessingLock(ctx, "1700000000000-0")
	require.NoError(t, err)
	require.NoError(t, svc.MarkSuccess(ctx, pc))

	processed, err := svc.IsProcessed(ctx, "1700000000000-0")
	require.NoError(t, err)
	assert.True(t, processed)

	again, err := svc.AcquireProcessingLock(ctx, "1700000000000-0")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Nil(t, again)
}

func TestIdempotencyService_RetryBudget(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotency(t, func(c *IdempotencyConfig) { c.MaxRetries = 2 })

	for i := 0; i < 2; i++ {
		pc, err := svc.AcquireProcessingLock(ctx, "A0003")
		require.NoError(t, err, "attempt %d", i)
		assert.Equal(t, i, pc.RetryCount)
		assert.Equal(t, i > 0, pc.IsRetry)
		require.NoError(t, svc.MarkFailure(ctx, pc, errors.New("gateway down")))
	}

	count, err := svc.GetRetryCount(ctx, "A0003")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	pc, err := svc.AcquireProcessingLock(ctx, "A0003")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Nil(t, pc)
}

func TestIdempotencyService_ZeroMaxRetriesIsUnbounded(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotency(t, func(c *IdempotencyConfig) { c.MaxRetries = 0 })

	for i := 0; i < 5; i++ {
		pc, err := svc.AcquireProcessingLock(ctx, "A0004")
		require.NoError(t, err)
		require.NoError(t, svc.MarkFailure(ctx, pc, nil))
	}
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotency(t, func(c *IdempotencyConfig) { c.LockTTL = time.Minute })

	pc, err := svc.AcquireProcessingLock(ctx, "A0005")
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseLock(ctx, pc))
	assert.False(t, pc.lockAcquired)
	require.NoError(t, svc.ReleaseLock(ctx, pc))

	pc2, err := svc.AcquireProcessingLock(ctx, "A0005")
	require.NoError(t, err)
	assert.NotNil(t, pc2)
}
