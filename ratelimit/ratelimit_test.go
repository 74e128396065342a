package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "token %d", i)
	}
	assert.False(t, l.Allow())
}

func TestLimiter_Refills(t *testing.T) {
	l := NewLimiter(1000, 1)

	assert.True(t, l.Allow())

	// At 1000 tokens/s a token is back within a few milliseconds.
	deadline := 0
	for !l.Allow() {
		deadline++
		if deadline > 1_000_000 {
			t.Fatal("limiter never refilled")
		}
	}
}
