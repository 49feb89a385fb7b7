package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/rux/pkg/adapters/memory"
	"github.com/aretw0/rux/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.DistributedLocker = (*memory.Locker)(nil)

func TestLocker_Contention(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "k", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	unlock2, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_ExpiredUnlockKeepsNewOwner(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)

	unlock2, err := locker.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, unlock1(ctx))
	assert.Equal(t, 1, locker.Held())

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "k", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second owner still holds the lock")

	require.NoError(t, unlock2(ctx))
	assert.Equal(t, 0, locker.Held())
}

func TestLocker_NoLeak(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		unlock, err := locker.Lock(ctx, fmt.Sprintf("snapshot:%d", i), 0)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))
	}
	assert.Equal(t, 0, locker.Held())
}
