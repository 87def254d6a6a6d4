package resilience

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)
	boom := eris.New("boom")

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(boom)
	}
	assert.False(t, b.Open())

	require.NoError(t, b.Allow())
	b.Record(boom)
	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(3, 30*time.Second)
	boom := eris.New("boom")

	b.Record(boom)
	b.Record(boom)
	b.Record(nil)
	b.Record(boom)
	b.Record(boom)
	assert.False(t, b.Open())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 30*time.Second).WithNow(func() time.Time { return now })
	boom := eris.New("boom")

	b.Record(boom)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the reset timeout a probe is allowed.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())

	// Probe failure reopens immediately.
	b.Record(boom)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// Probe success closes the circuit.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(nil)
	require.NoError(t, b.Allow())
	assert.False(t, b.Open())
}
