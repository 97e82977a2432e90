package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/rollcall/models"
	"github.com/cppla/rollcall/store"
)

type mutableContent struct {
	mu    sync.Mutex
	items []models.ContentItem
	err   error
}

func (m *mutableContent) Items(context.Context) ([]models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.ContentItem(nil), m.items...), nil
}

func (m *mutableContent) set(items ...models.ContentItem) {
	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
}

func sampleItems(n int) []models.ContentItem {
	out := make([]models.ContentItem, n)
	for i := range out {
		out[i] = models.ContentItem{ID: string(rune('a' + i)), Title: "Item", Body: string(rune('A' + i))}
	}
	return out
}

func newTestRotation(src ContentSource) (*Rotation, *FixedClock, *store.Memory) {
	clock := NewFixedClock(day(2024, time.January, 1))
	mem := store.NewMemory()
	return NewRotation(clock, src, mem, nil), clock, mem
}

func TestRotation_SameDayIsIdempotent(t *testing.T) {
	r, _, _ := newTestRotation(StaticContent(sampleItems(3)))
	ctx := context.Background()

	first, err := r.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)

	for i := 0; i < 3; i++ {
		again, err := r.Next(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, models.RotationState{Next: 1, Date: "2024-01-01", Index: 0}, r.State(1))
}

func TestRotation_AdvancesDailyUntilExhausted(t *testing.T) {
	r, clock, _ := newTestRotation(StaticContent(sampleItems(3)))
	ctx := context.Background()

	for _, want := range []string{"a", "b", "c"} {
		it, err := r.Next(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, it.ID)
		clock.AddDays(1)
	}

	_, err := r.Next(ctx, 1)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, r.State(1).Next, "pointer stays at the end")
}

func TestRotation_GroupsAreIndependent(t *testing.T) {
	r, clock, _ := newTestRotation(StaticContent(sampleItems(3)))
	ctx := context.Background()

	_, err := r.Next(ctx, 1)
	require.NoError(t, err)
	clock.AddDays(1)
	_, err = r.Next(ctx, 1)
	require.NoError(t, err)

	it, err := r.Next(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", it.ID)
	assert.Equal(t, -1, r.State(3).Index)
}

func TestRotation_AppendedItemsResume(t *testing.T) {
	src := &mutableContent{items: sampleItems(1)}
	r, clock, _ := newTestRotation(src)
	ctx := context.Background()

	_, err := r.Next(ctx, 1)
	require.NoError(t, err)
	clock.AddDays(1)
	_, err = r.Next(ctx, 1)
	require.ErrorIs(t, err, ErrExhausted)

	src.set(sampleItems(2)...)
	it, err := r.Next(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", it.ID)
}

func TestRotation_ShrunkListNeverMovesBack(t *testing.T) {
	src := &mutableContent{items: sampleItems(3)}
	r, clock, _ := newTestRotation(src)
	ctx := context.Background()

	_, err := r.Next(ctx, 1)
	require.NoError(t, err)
	clock.AddDays(1)
	_, err = r.Next(ctx, 1)
	require.NoError(t, err)

	src.set(sampleItems(1)...)
	_, err = r.Next(ctx, 1)
	assert.ErrorIs(t, err, ErrExhausted, "today's item no longer exists")

	clock.AddDays(1)
	_, err = r.Next(ctx, 1)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, r.State(1).Next)
}

func TestRotation_SourceFailure(t *testing.T) {
	src := &mutableContent{err: errors.New("no such file")}
	r, _, _ := newTestRotation(src)

	_, err := r.Next(context.Background(), 1)
	assert.ErrorIs(t, err, ErrContentUnavailable)
	assert.Equal(t, -1, r.State(1).Index)
}

func TestRotation_PersistsAndReloads(t *testing.T) {
	r, clock, mem := newTestRotation(StaticContent(sampleItems(3)))
	ctx := context.Background()

	_, err := r.Next(ctx, 7)
	require.NoError(t, err)

	reloaded := NewRotation(clock, StaticContent(sampleItems(3)), mem, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, r.Document(), reloaded.Document())

	it, err := reloaded.Next(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "a", it.ID, "same day after restart repeats")
}

func TestRotation_LegacyDocument(t *testing.T) {
	r, _, mem := newTestRotation(StaticContent(sampleItems(3)))
	ctx := context.Background()
	require.NoError(t, mem.Save(ctx, store.KeyRotation, []byte(`{"100": 2, "200": -4}`)))
	require.NoError(t, r.Load(ctx))

	assert.Equal(t, models.RotationState{Next: 2, Index: -1}, r.State(100))
	assert.Equal(t, 0, r.State(200).Next)

	it, err := r.Next(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "c", it.ID)
}

func TestRotation_WriteFailureStillServes(t *testing.T) {
	r, _, mem := newTestRotation(StaticContent(sampleItems(2)))
	ctx := context.Background()
	mem.SetFailSaves(true)

	it, err := r.Next(ctx, 1)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "a", it.ID)
	assert.Equal(t, 1, r.State(1).Next)
}

func TestRotation_ConcurrentFirstCallAdvancesOnce(t *testing.T) {
	r, _, _ := newTestRotation(StaticContent(sampleItems(5)))
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]string, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			it, err := r.Next(ctx, 1)
			assert.NoError(t, err)
			got[i] = it.ID
		}(i)
	}
	wg.Wait()

	for _, id := range got {
		assert.Equal(t, "a", id)
	}
	assert.Equal(t, 1, r.State(1).Next)
}
