package hold

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
)

const (
	testTTL = 5 * time.Minute
	testCap = 3
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, config.HoldConfig{TTL: testTTL, MaxSeatsPerUser: testCap}), mr
}

func TestStoreAcquireFreeSeat(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	outcome, h, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcquired, outcome)
	require.NotNil(t, h)
	assert.Equal(t, uint64(7), h.HolderID)
	assert.True(t, h.ExpiresAt.After(time.Now()))

	val, err := mr.Get(holdKey(10, 42))
	require.NoError(t, err)
	assert.Equal(t, "7", val)
}

func TestStoreAcquireRenewal(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)

	// Let most of the TTL lapse, then re-acquire as the same holder.
	mr.FastForward(testTTL - time.Minute)
	outcome, h, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)
	require.NotNil(t, h)

	// The renewal reset the clock: the hold survives another near-full TTL.
	mr.FastForward(testTTL - time.Minute)
	holders, err := s.HoldersFor(ctx, 10, []uint64{42})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{42: 7}, holders)
}

func TestStoreAcquireConflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)

	outcome, h, err := s.Acquire(ctx, 10, 42, 8)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, outcome)
	require.NotNil(t, h)
	assert.Equal(t, uint64(7), h.HolderID, "conflict reply names the current holder")
}

func TestStoreAcquireCap(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for seat := uint64(1); seat <= testCap; seat++ {
		outcome, _, err := s.Acquire(ctx, 10, seat, 7)
		require.NoError(t, err)
		require.Equal(t, OutcomeAcquired, outcome)
	}

	outcome, h, err := s.Acquire(ctx, 10, 99, 7)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCapExceeded, outcome)
	assert.Nil(t, h)

	// Renewing an already-held seat is not a new hold and stays allowed.
	outcome, _, err = s.Acquire(ctx, 10, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)

	// Once the existing holds expire the stale index entries are swept and
	// the user can hold seats again.
	mr.FastForward(testTTL + time.Second)
	outcome, _, err = s.Acquire(ctx, 10, 99, 7)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcquired, outcome)
}

func TestStoreRelease(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)

	// Another user cannot release the hold.
	ok, err := s.Release(ctx, 10, 42, 8)
	require.NoError(t, err)
	assert.False(t, ok)
	holders, err := s.HoldersFor(ctx, 10, []uint64{42})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{42: 7}, holders)

	// The owner can.
	ok, err = s.Release(ctx, 10, 42, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Releasing again is a harmless no-op.
	ok, err = s.Release(ctx, 10, 42, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreReleaseAll(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, seat := range []uint64{1, 2, 3} {
		_, _, err := s.Acquire(ctx, 10, seat, 7)
		require.NoError(t, err)
	}
	_, _, err := s.Acquire(ctx, 10, 4, 8)
	require.NoError(t, err)

	released, err := s.ReleaseAll(ctx, 10, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, released)

	// The other user's hold is untouched.
	holders, err := s.HoldersFor(ctx, 10, []uint64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{4: 8}, holders)

	// Nothing left to release.
	released, err = s.ReleaseAll(ctx, 10, 7)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestStoreExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, 10, 42, 7)
	require.NoError(t, err)

	mr.FastForward(testTTL + time.Second)

	holders, err := s.HoldersFor(ctx, 10, []uint64{42})
	require.NoError(t, err)
	assert.Empty(t, holders, "expired holds vanish without any release call")

	held, err := s.ListHeld(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, held)

	// The seat is immediately acquirable by someone else.
	outcome, _, err := s.Acquire(ctx, 10, 42, 8)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcquired, outcome)
}

func TestStoreListHeld(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Acquire(ctx, 10, 1, 7)
	require.NoError(t, err)
	_, _, err = s.Acquire(ctx, 10, 2, 8)
	require.NoError(t, err)
	// A hold on a different showtime must not leak into the listing.
	_, _, err = s.Acquire(ctx, 11, 3, 7)
	require.NoError(t, err)

	held, err := s.ListHeld(ctx, 10)
	require.NoError(t, err)
	require.Len(t, held, 2)

	byShowtimeSeat := make(map[uint64]uint64, len(held))
	for _, h := range held {
		assert.Equal(t, uint64(10), h.ShowtimeID)
		assert.True(t, h.ExpiresAt.After(time.Now()))
		byShowtimeSeat[h.SeatID] = h.HolderID
	}
	assert.Equal(t, map[uint64]uint64{1: 7, 2: 8}, byShowtimeSeat)
}

func TestStoreConcurrentAcquireSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const contenders = 16
	outcomes := make([]AcquireOutcome, contenders)
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _, errs[i] = s.Acquire(ctx, 10, 42, uint64(100+i))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var acquired, conflicted int
	for _, o := range outcomes {
		switch o {
		case OutcomeAcquired:
			acquired++
		case OutcomeConflict:
			conflicted++
		}
	}
	assert.Equal(t, 1, acquired, "exactly one contender wins the seat")
	assert.Equal(t, contenders-1, conflicted)
}
