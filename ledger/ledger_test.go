package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/rollcall/store"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, ist)
}

func newTestLedger(t *testing.T) (*Ledger, *FixedClock, *store.Memory) {
	t.Helper()
	clock := NewFixedClock(day(2024, time.January, 1))
	mem := store.NewMemory()
	return New(clock, WithStore(mem)), clock, mem
}

func TestRecord_DuplicateIsNoOp(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)
	assert.Equal(t, Accepted, first.Outcome)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, "09:30", first.Time)

	second, err := l.Record(ctx, 1, 10, "Asha renamed")
	require.NoError(t, err)
	assert.Equal(t, DuplicateIgnored, second.Outcome)
	assert.Equal(t, 1, second.Streak)

	assert.Equal(t, 1, l.Streak(1, 10))
	assert.Equal(t, []Member{{ID: 10, Name: "Asha"}}, l.Members(1), "duplicate must not touch the registry")
}

func TestRecord_StreakContinuity(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Record(ctx, 1, 10, "Asha")
		require.NoError(t, err)
		assert.Equal(t, i, res.Streak)
		clock.AddDays(1)
	}
	assert.Equal(t, 3, l.Streak(1, 10))
	assert.Equal(t, "2024-01-03", l.LastDate(1, 10))
}

func TestRecord_GapResetsStreak(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)
	clock.AddDays(2)
	res, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
}

func TestRecord_AcrossMonthBoundary(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	clock.Set(day(2024, time.February, 28))

	for _, want := range []int{1, 2, 3} {
		res, err := l.Record(ctx, 1, 10, "Asha")
		require.NoError(t, err)
		assert.Equal(t, want, res.Streak, "date %s", res.Date)
		clock.AddDays(1)
	}
	assert.Equal(t, "2024-03-01", l.LastDate(1, 10))
}

func TestRecord_OutOfOrderDateRestarts(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()
	clock.Set(day(2024, time.January, 5))
	_, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)

	clock.Set(day(2024, time.January, 4))
	res, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "2024-01-04", l.LastDate(1, 10))
}

func TestRecord_GroupsAreIndependent(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err)
	b, err := l.Record(ctx, 2, 10, "Asha")
	require.NoError(t, err)
	assert.Equal(t, Accepted, a.Outcome)
	assert.Equal(t, Accepted, b.Outcome)
	assert.Empty(t, l.Members(3))
}

func TestRecord_ConcurrentSameMemberAcceptsOnce(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	const workers = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Record(ctx, 7, 70, "Ravi")
			assert.NoError(t, err)
			if res.Outcome == Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, l.Streak(7, 70))
}

func TestRecord_WriteFailureKeepsState(t *testing.T) {
	l, _, mem := newTestLedger(t)
	ctx := context.Background()
	mem.SetFailSaves(true)

	res, err := l.Record(ctx, 1, 10, "Asha")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, l.Streak(1, 10))

	dup, err := l.Record(ctx, 1, 10, "Asha")
	require.NoError(t, err, "duplicates never write")
	assert.Equal(t, DuplicateIgnored, dup.Outcome)
}

func TestRecord_EmptyNameDefaults(t *testing.T) {
	l, _, _ := newTestLedger(t)
	res, err := l.Record(context.Background(), 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, res.Name)
}

func TestObserve_LatestNameWins(t *testing.T) {
	l, _, mem := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Observe(ctx, 1, 10, "Asha"))
	require.NoError(t, l.Observe(ctx, 1, 10, "Asha K"))
	assert.Equal(t, []Member{{ID: 10, Name: "Asha K"}}, l.Members(1))

	// unchanged names are not written through
	mem.SetFailSaves(true)
	assert.NoError(t, l.Observe(ctx, 1, 10, "Asha K"))
	assert.ErrorIs(t, l.Observe(ctx, 1, 10, "Asha"), ErrPersistence)
}

func TestLoad_MissingSnapshotStartsEmpty(t *testing.T) {
	l, _, _ := newTestLedger(t)
	require.NoError(t, l.Load(context.Background()))
	assert.Empty(t, l.Members(1))
}

func TestLoad_CorruptSnapshotDegrades(t *testing.T) {
	l, _, mem := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, mem.Save(ctx, store.KeyLedger, []byte("{not json")))

	err := l.Load(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, l.Members(1))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	l, clock, mem := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Observe(ctx, 100, 3, "Meena"))
	_, err := l.Record(ctx, 100, 1, "Asha")
	require.NoError(t, err)
	clock.AddDays(1)
	_, err = l.Record(ctx, 100, 1, "Asha")
	require.NoError(t, err)
	_, err = l.Record(ctx, 100, 2, "Ravi")
	require.NoError(t, err)
	_, err = l.Record(ctx, 200, 9, "Kiran")
	require.NoError(t, err)

	reloaded := New(clock, WithStore(mem))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, l.Snapshot(), reloaded.Snapshot())
	assert.Equal(t, l.Report(100, 4), reloaded.Report(100, 4))

	// subsequent operations behave the same on both
	clock.AddDays(1)
	a, err := l.Record(ctx, 100, 1, "Asha")
	require.NoError(t, err)
	b, err := reloaded.Record(ctx, 100, 1, "Asha")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 3, b.Streak)
	assert.Equal(t, l.Top(100, 5), reloaded.Top(100, 5))
	assert.Equal(t, l.Pending(100, 4), reloaded.Pending(100, 4))
}
