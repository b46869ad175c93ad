package guard

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWindowAdmitsUpToCeiling(t *testing.T) {
	w := NewMemoryWindow(3, 60*time.Second)
	now := time.Now()

	for i := 1; i <= 3; i++ {
		count, ok, err := w.Admit(context.Background(), "10.0.0.1", now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, count)
	}

	count, ok, err := w.Admit(context.Background(), "10.0.0.1", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, count, "a denied request must not be recorded")
}

func TestMemoryWindowDeniedHitsLeaveNoTrace(t *testing.T) {
	w := NewMemoryWindow(1, time.Minute)
	now := time.Now()

	_, _, _ = w.Admit(context.Background(), "10.0.0.1", now)
	for i := 0; i < 5; i++ {
		_, ok, _ := w.Admit(context.Background(), "10.0.0.1", now)
		assert.False(t, ok)
	}

	count, err := w.Count(context.Background(), "10.0.0.1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryWindowExpiresOldHits(t *testing.T) {
	w := NewMemoryWindow(2, 60*time.Second)
	now := time.Now()

	_, ok, _ := w.Admit(context.Background(), "10.0.0.1", now)
	require.True(t, ok)
	_, ok, _ = w.Admit(context.Background(), "10.0.0.1", now.Add(30*time.Second))
	require.True(t, ok)
	_, ok, _ = w.Admit(context.Background(), "10.0.0.1", now.Add(31*time.Second))
	require.False(t, ok)

	// The first hit ages out, freeing one slot; the 31s-old one stays.
	count, ok, err := w.Admit(context.Background(), "10.0.0.1", now.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestMemoryWindowHitExpiresExactlyAtSpan(t *testing.T) {
	w := NewMemoryWindow(2, 60*time.Second)
	now := time.Now()

	_, ok, _ := w.Admit(context.Background(), "10.0.0.1", now)
	require.True(t, ok)

	count, err := w.Count(context.Background(), "10.0.0.1", now.Add(60*time.Second-time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A hit exactly span old is no longer inside the window.
	count, err = w.Count(context.Background(), "10.0.0.1", now.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryWindowTracksIPsIndependently(t *testing.T) {
	w := NewMemoryWindow(1, time.Minute)
	now := time.Now()

	_, ok, _ := w.Admit(context.Background(), "10.0.0.1", now)
	require.True(t, ok)
	_, ok, _ = w.Admit(context.Background(), "10.0.0.2", now)
	assert.True(t, ok, "another IP has its own window")
	_, ok, _ = w.Admit(context.Background(), "10.0.0.1", now)
	assert.False(t, ok)
}

func TestMemoryWindowCountIsSideEffectFree(t *testing.T) {
	w := NewMemoryWindow(5, time.Minute)
	now := time.Now()

	for i := 0; i < 10; i++ {
		count, err := w.Count(context.Background(), "10.0.0.1", now)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	}
}

type stubWindow struct {
	count int
	ok    bool
	err   error
}

func (s stubWindow) Admit(context.Context, string, time.Time) (int, bool, error) {
	return s.count, s.ok, s.err
}

func (s stubWindow) Count(context.Context, string, time.Time) (int, error) {
	return s.count, s.err
}

func TestRatePolicyDisabledSkipsWindow(t *testing.T) {
	p := NewRatePolicy(false, 1, time.Minute, stubWindow{ok: false}, nil)
	assert.Nil(t, p.Evaluate(context.Background(), &Request{ClientIP: "10.0.0.1"}))
}

func TestRatePolicyDeniesOverCeiling(t *testing.T) {
	p := NewRatePolicy(true, 30, 60*time.Second, stubWindow{count: 30, ok: false}, nil)
	d := p.Evaluate(context.Background(), &Request{ClientIP: "10.0.0.1"})
	require.NotNil(t, d)
	assert.Equal(t, http.StatusTooManyRequests, d.Status)
	assert.Equal(t, "rate_limited", d.Reason)
	assert.Contains(t, d.Message, "30 requests every 60 seconds")
}

func TestRatePolicyFailsOpenOnWindowError(t *testing.T) {
	p := NewRatePolicy(true, 1, time.Minute, stubWindow{err: errors.New("backend down")}, nil)
	assert.Nil(t, p.Evaluate(context.Background(), &Request{ClientIP: "10.0.0.1"}))
}
