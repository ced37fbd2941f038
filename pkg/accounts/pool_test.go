package accounts

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
)

// memStore records every Save so tests can check write-through.
type memStore struct {
	mu       sync.Mutex
	accounts []*Account
	saves    int
	saved    []Account
	failSave error
}

func (m *memStore) Load(ctx context.Context) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, len(m.accounts))
	for i, acc := range m.accounts {
		c := acc.clone()
		out[i] = &c
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, accounts []*Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.saved = m.saved[:0]
	for _, acc := range accounts {
		m.saved = append(m.saved, acc.clone())
	}
	return nil
}

func (m *memStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func newTestPool(t *testing.T, logins ...string) (*Pool, *memStore) {
	t.Helper()
	store := &memStore{}
	for i, login := range logins {
		store.accounts = append(store.accounts, &Account{
			ID:     string(rune('1' + i)),
			Login:  login,
			Status: StatusWorking,
		})
	}
	pool := NewPool(store,
		WithLogger(logger.NewNopLogger()),
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, pool.LoadAll(context.Background()))
	return pool, store
}

func logins(accs ...*Account) []string {
	out := make([]string, len(accs))
	for i, a := range accs {
		if a != nil {
			out[i] = a.Login
		}
	}
	return out
}

func TestNextRoundRobin(t *testing.T) {
	pool, _ := newTestPool(t, "a", "b", "c")

	first := logins(pool.Next(), pool.Next(), pool.Next())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, first)

	second := logins(pool.Next(), pool.Next(), pool.Next())
	assert.Equal(t, first, second)
}

func TestNextSkipsNonWorking(t *testing.T) {
	pool, _ := newTestPool(t, "a", "b", "c")
	ctx := context.Background()

	b, _ := pool.Find("b")
	require.NoError(t, pool.SetStatus(ctx, b, StatusBanned))

	for i := 0; i < 6; i++ {
		assert.NotEqual(t, "b", pool.Next().Login)
	}
}

func TestNextWorkingSetShrinksToZero(t *testing.T) {
	pool, _ := newTestPool(t, "a", "b", "c")
	ctx := context.Background()

	// advance the cursor past the end of the shrinking set
	for i := 0; i < 5; i++ {
		pool.Next()
	}
	for _, login := range []string{"c", "a", "b"} {
		acc, _ := pool.Find(login)
		require.NoError(t, pool.SetStatus(ctx, acc, StatusChallengeRequired))
		_ = pool.Next()
	}
	assert.Nil(t, pool.Next())
	assert.Equal(t, 3, pool.Stats()[StatusChallengeRequired])
}

func TestSetStatusPersists(t *testing.T) {
	pool, store := newTestPool(t, "a", "b")
	acc, _ := pool.Find("a")

	require.NoError(t, pool.SetStatus(context.Background(), acc, StatusCheckpointRequired))
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, StatusCheckpointRequired, store.saved[0].Status)
	require.NotNil(t, store.saved[0].LastChecked)

	assert.Error(t, pool.SetStatus(context.Background(), acc, Status("healed")))
}

func TestSetStatusReturnsStoreError(t *testing.T) {
	pool, store := newTestPool(t, "a")
	store.failSave = errors.New("disk full")
	acc, _ := pool.Find("a")

	err := pool.SetStatus(context.Background(), acc, StatusBanned)
	assert.ErrorContains(t, err, "disk full")
}

func TestSetSessionAndToken(t *testing.T) {
	pool, store := newTestPool(t, "a")
	acc, _ := pool.Find("a")
	assert.False(t, acc.HasSession())

	require.NoError(t, pool.SetSessionAndToken(context.Background(), acc, "123:abc", "tok"))
	view := pool.View(acc)
	assert.Equal(t, "123:abc", view.SessionID)
	assert.Equal(t, "tok", view.Token)
	assert.True(t, view.HasSession())
	assert.Equal(t, "tok", store.saved[0].Token)
}

func TestReportSuccessIsNoopWhenHealthy(t *testing.T) {
	pool, store := newTestPool(t, "a")
	acc, _ := pool.Find("a")
	ctx := context.Background()

	before := pool.View(acc)
	require.NoError(t, pool.ReportSuccess(ctx, acc))
	assert.Equal(t, before, pool.View(acc))
	assert.Zero(t, store.Saves())

	require.NoError(t, pool.ReportFailure(ctx, acc))
	require.NoError(t, pool.ReportFailure(ctx, acc))
	assert.Equal(t, 2, pool.View(acc).FailCount)
	assert.Equal(t, StatusWorking, pool.View(acc).Status)

	require.NoError(t, pool.ReportSuccess(ctx, acc))
	assert.Zero(t, pool.View(acc).FailCount)
	assert.Equal(t, 3, store.Saves())
}

func TestWaitForHealthyReturnsWorking(t *testing.T) {
	pool, _ := newTestPool(t, "a", "b")
	a, _ := pool.Find("a")
	require.NoError(t, pool.SetStatus(context.Background(), a, StatusBanned))

	acc, err := pool.WaitForHealthy(context.Background(), 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", acc.Login)
}

func TestWaitForHealthyTimesOut(t *testing.T) {
	pool, _ := newTestPool(t, "a")
	a, _ := pool.Find("a")
	require.NoError(t, pool.SetStatus(context.Background(), a, StatusTempBlocked))

	_, err := pool.WaitForHealthy(context.Background(), 10*time.Millisecond, 50*time.Millisecond)
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestWaitForHealthyPicksUpRecoveredAccount(t *testing.T) {
	pool, _ := newTestPool(t, "a")
	ctx := context.Background()
	a, _ := pool.Find("a")
	require.NoError(t, pool.SetStatus(ctx, a, StatusTempBlocked))

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = pool.SetStatus(ctx, a, StatusWorking)
	}()

	acc, err := pool.WaitForHealthy(ctx, 10*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Same(t, a, acc)
}

func TestAddReplacesByLogin(t *testing.T) {
	pool, store := newTestPool(t, "a")
	ctx := context.Background()

	require.NoError(t, pool.Add(ctx, Account{Login: "b", Password: "pw"}))
	require.NoError(t, pool.Add(ctx, Account{Login: "a", Password: "new"}))

	list := pool.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Password)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, StatusWorking, list[1].Status)
	assert.Equal(t, 2, store.Saves())

	assert.Error(t, pool.Add(ctx, Account{}))
}

func TestSanitized(t *testing.T) {
	acc := Account{Login: "a", Password: "pw", SessionID: "1234567890:abcdef", Headers: map[string]string{"k": "v"}}
	s := acc.Sanitized()
	assert.Equal(t, "********", s.Password)
	assert.Equal(t, "1234...cdef", s.SessionID)
	assert.Empty(t, s.Token)
	assert.Equal(t, "pw", acc.Password)
}
