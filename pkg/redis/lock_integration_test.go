//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/gigmarket-backend/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLocker_ExclusiveUntilReleased(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	defer rc.Terminate(context.Background())

	ctx := context.Background()
	locker := NewKeyLocker(rc.Client, "kyc:webhook:", 10*time.Second)

	release, err := locker.Acquire(ctx, "evt-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "evt-1")
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, "evt-2")
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(ctx, "evt-1")
	require.NoError(t, err)
	again()
}
