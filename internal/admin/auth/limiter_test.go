// Copyright (c) 2026 Atrium. All rights reserved.

package auth_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/admin/auth"
)

/*
TestMemoryLimiter_Window verifies the fixed-window attempt budget.
*/
func TestMemoryLimiter_Window(t *testing.T) {
	limiter := auth.NewMemoryLimiter(3, time.Minute)
	key := "10.0.0.1|0xabc"

	// First 3 attempts pass with a shrinking remaining count.
	for attempt := 1; attempt <= 3; attempt++ {
		decision, err := limiter.Check(key)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "attempt %d should be allowed", attempt)
		assert.Equal(t, 3-attempt, decision.Remaining)
	}

	// The 4th attempt is denied with a reset time in the future.
	decision, err := limiter.Check(key)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.True(t, decision.ResetAt.After(time.Now()))
}

/*
TestMemoryLimiter_KeysAreIndependent verifies per-key isolation.
*/
func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := auth.NewMemoryLimiter(1, time.Minute)

	first, err := limiter.Check("ip-a|wallet")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	// Exhausting key A leaves key B untouched.
	denied, err := limiter.Check("ip-a|wallet")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	other, err := limiter.Check("ip-b|wallet")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

/*
TestMemoryLimiter_Reset verifies that a reset restores the full budget.
*/
func TestMemoryLimiter_Reset(t *testing.T) {
	limiter := auth.NewMemoryLimiter(1, time.Hour)
	key := "10.0.0.1|0xabc"

	_, err := limiter.Check(key)
	require.NoError(t, err)

	denied, err := limiter.Check(key)
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	require.NoError(t, limiter.Reset(key))

	fresh, err := limiter.Check(key)
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)
}

/*
TestMemoryLimiter_Concurrency exercises the mutex under parallel checks.
*/
func TestMemoryLimiter_Concurrency(t *testing.T) {
	limiter := auth.NewMemoryLimiter(1000, time.Minute)

	done := make(chan struct{})
	for worker := 0; worker < 8; worker++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			key := fmt.Sprintf("worker-%d", id)
			for i := 0; i < 100; i++ {
				if _, err := limiter.Check(key); err != nil {
					t.Error(err)
					return
				}
			}
		}(worker)
	}
	for worker := 0; worker < 8; worker++ {
		<-done
	}
}
