package otp_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/otp"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T) (*otp.Manager, *otp.MemoryStore, *clock) {
	t.Helper()
	c := newClock()
	store := otp.NewMemoryStore(c.Now)
	m, err := otp.NewManager(store, otp.Config{Pepper: "test-pepper"}, otp.WithClock(c.Now))
	require.NoError(t, err)
	return m, store, c
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestNewManagerConfig(t *testing.T) {
	t.Parallel()

	_, err := otp.NewManager(nil, otp.Config{})
	assert.ErrorIs(t, err, otp.ErrMissingStore)

	_, err = otp.NewManager(otp.NewMemoryStore(nil), otp.Config{Length: 2})
	assert.ErrorIs(t, err, otp.ErrInvalidConfig)

	m, err := otp.NewManager(otp.NewMemoryStore(nil), otp.Config{})
	require.NoError(t, err)
	assert.Equal(t, 6, m.Config().Length)
	assert.Equal(t, 5*time.Minute, m.Config().TTL)
	assert.Equal(t, 3, m.Config().MaxAttempts)
}

func TestIssueStoresOnlyHash(t *testing.T) {
	t.Parallel()

	m, store, c := setup(t)
	ctx := context.Background()

	code, ch, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	assert.NotContains(t, ch.CodeHash, code)
	assert.Len(t, ch.CodeHash, 64)
	assert.Equal(t, c.Now().Add(5*time.Minute), ch.ExpiresAt)

	stored, err := store.Latest(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, ch.CodeHash, stored.CodeHash)
	assert.Zero(t, stored.Attempts)
	assert.False(t, stored.Used)
}

func TestVerifyScenario(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, wrongCode(code))
	var invalid *otp.InvalidCodeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.Remaining)
	assert.ErrorIs(t, err, otp.ErrInvalidCode)

	require.NoError(t, m.Verify(ctx, "user-1", otp.PurposeRegistration, code))

	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrNoChallenge)
}

func TestVerifyNoChallenge(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	err := m.Verify(context.Background(), "nobody", otp.PurposeRegistration, "123456")
	assert.ErrorIs(t, err, otp.ErrNoChallenge)
}

func TestVerifyPurposeIsolation(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposePasswordReset)
	require.NoError(t, err)

	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrNoChallenge)
	err = m.Verify(ctx, "user-2", otp.PurposePasswordReset, code)
	assert.ErrorIs(t, err, otp.ErrNoChallenge)

	require.NoError(t, m.Verify(ctx, "user-1", otp.PurposePasswordReset, code))
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	ctx := context.Background()

	first, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	second, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	if first != second {
		err = m.Verify(ctx, "user-1", otp.PurposeRegistration, first)
		assert.ErrorIs(t, err, otp.ErrInvalidCode)
	}
	require.NoError(t, m.Verify(ctx, "user-1", otp.PurposeRegistration, second))
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	m, store, _ := setup(t)
	ctx := context.Background()

	reg, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	reset, _, err := m.Issue(ctx, "user-1", otp.PurposePasswordReset)
	require.NoError(t, err)
	other, _, err := m.Issue(ctx, "user-2", otp.PurposePasswordReset)
	require.NoError(t, err)

	require.NoError(t, m.Discard(ctx, "user-1"))
	assert.Equal(t, 1, store.Len())

	assert.ErrorIs(t, m.Verify(ctx, "user-1", otp.PurposeRegistration, reg), otp.ErrNoChallenge)
	assert.ErrorIs(t, m.Verify(ctx, "user-1", otp.PurposePasswordReset, reset), otp.ErrNoChallenge)
	assert.NoError(t, m.Verify(ctx, "user-2", otp.PurposePasswordReset, other))
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	m, _, c := setup(t)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	c.Advance(5*time.Minute + time.Second)
	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrExpired)
}

func TestVerifyExhausted(t *testing.T) {
	t.Parallel()

	m, _, _ := setup(t)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	wrong := wrongCode(code)

	for want := 2; want >= 0; want-- {
		err := m.Verify(ctx, "user-1", otp.PurposeRegistration, wrong)
		var invalid *otp.InvalidCodeError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, want, invalid.Remaining)
	}

	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrAttemptsExhausted)

	// Exhaustion is terminal.
	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrNoChallenge)
}

func TestVerifyConcurrentSingleSuccess(t *testing.T) {
	t.Parallel()

	c := newClock()
	store := otp.NewMemoryStore(c.Now)
	m, err := otp.NewManager(store, otp.Config{MaxAttempts: 100}, otp.WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Verify(ctx, "user-1", otp.PurposeRegistration, code); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, otp.ErrNoChallenge)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestVerifyConcurrentNoLostIncrements(t *testing.T) {
	t.Parallel()

	c := newClock()
	store := otp.NewMemoryStore(c.Now)
	m, err := otp.NewManager(store, otp.Config{MaxAttempts: 5}, otp.WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	code, ch, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)
	wrong := wrongCode(code)

	var (
		wg      sync.WaitGroup
		invalid atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var ic *otp.InvalidCodeError
			if errors.As(m.Verify(ctx, "user-1", otp.PurposeRegistration, wrong), &ic) {
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly MaxAttempts comparisons happened, never more.
	assert.Equal(t, int32(5), invalid.Load())
	_, err = store.IncrementAttempts(ctx, ch.ID, 5)
	assert.ErrorIs(t, err, otp.ErrStale)
}

type flakyStore struct {
	*otp.MemoryStore
	staleIncrements atomic.Int32
}

func (s *flakyStore) IncrementAttempts(ctx context.Context, id string, limit int) (int, error) {
	if s.staleIncrements.Add(-1) >= 0 {
		return 0, otp.ErrStale
	}
	return s.MemoryStore.IncrementAttempts(ctx, id, limit)
}

func TestVerifyRetriesAfterLostRace(t *testing.T) {
	t.Parallel()

	c := newClock()
	store := &flakyStore{MemoryStore: otp.NewMemoryStore(c.Now)}
	m, err := otp.NewManager(store, otp.Config{}, otp.WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	code, _, err := m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	store.staleIncrements.Store(2)
	require.NoError(t, m.Verify(ctx, "user-1", otp.PurposeRegistration, code))

	code, _, err = m.Issue(ctx, "user-1", otp.PurposeRegistration)
	require.NoError(t, err)

	store.staleIncrements.Store(10)
	err = m.Verify(ctx, "user-1", otp.PurposeRegistration, code)
	assert.ErrorIs(t, err, otp.ErrNoChallenge, "persistent contention fails closed")
}
