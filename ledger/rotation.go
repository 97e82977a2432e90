package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/rollcall/metrics"
	"github.com/cppla/rollcall/models"
	"github.com/cppla/rollcall/store"
)

// ContentSource yields the ordered content list. The list is append-only
// configuration and is read again on every rotation request.
type ContentSource interface {
	Items(ctx context.Context) ([]models.ContentItem, error)
}

// StaticContent is a fixed in-memory content list.
type StaticContent []models.ContentItem

func (s StaticContent) Items(context.Context) ([]models.ContentItem, error) {
	return s, nil
}

// Rotation hands each group one content item per calendar day. The first
// request on a date consumes the next unused item; later requests on the same
// date get that same item back. The pointer never moves backwards and stops at
// the end of the list.
type Rotation struct {
	clock  Clock
	source ContentSource
	store  store.Store
	log    *zap.Logger

	mu     sync.Mutex
	state  models.RotationDocument
	locks  map[GroupID]*sync.Mutex
	saveMu sync.Mutex
}

// NewRotation creates a rotation index with no state. Use Load to restore it.
func NewRotation(clock Clock, source ContentSource, s store.Store, log *zap.Logger) *Rotation {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rotation{
		clock:  clock,
		source: source,
		store:  s,
		log:    log,
		state:  models.RotationDocument{},
		locks:  map[GroupID]*sync.Mutex{},
	}
}

// Next returns today's item for the group, advancing the pointer on the first
// call of the day. It returns ErrExhausted once the list is used up; on a
// failed write it returns the item together with an error wrapping ErrPersistence.
func (r *Rotation) Next(ctx context.Context, group GroupID) (models.ContentItem, error) {
	items, err := r.source.Items(ctx)
	if err != nil {
		metrics.Rotations.WithLabelValues("error").Inc()
		return models.ContentItem{}, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	lock := r.groupLock(group)
	lock.Lock()
	defer lock.Unlock()

	today := Today(r.clock)
	st := r.get(group)

	if st.Date == today {
		if st.Index >= 0 && st.Index < len(items) {
			metrics.Rotations.WithLabelValues("repeat").Inc()
			return items[st.Index], nil
		}
		metrics.Rotations.WithLabelValues("exhausted").Inc()
		return models.ContentItem{}, ErrExhausted
	}
	if st.Next >= len(items) {
		metrics.Rotations.WithLabelValues("exhausted").Inc()
		return models.ContentItem{}, ErrExhausted
	}

	idx := st.Next
	r.set(group, models.RotationState{Next: idx + 1, Date: today, Index: idx})
	metrics.Rotations.WithLabelValues("advanced").Inc()
	r.log.Info("content rotated",
		zap.Int64("group", int64(group)),
		zap.String("date", today),
		zap.Int("index", idx),
	)
	return items[idx], r.persist(ctx)
}

// State returns the group's rotation state (zero value when never rotated).
func (r *Rotation) State(group GroupID) models.RotationState {
	return r.get(group)
}

// Document returns a copy of every group's rotation state.
func (r *Rotation) Document() models.RotationDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(models.RotationDocument, len(r.state))
	for k, v := range r.state {
		out[k] = v
	}
	return out
}

// Restore replaces all rotation state with doc.
func (r *Rotation) Restore(doc models.RotationDocument) {
	cp := make(models.RotationDocument, len(doc))
	for k, v := range doc {
		if v.Next < 0 {
			v.Next = 0
		}
		cp[k] = v
	}
	r.mu.Lock()
	r.state = cp
	r.mu.Unlock()
}

// Load restores state from the store. A missing document is not an error.
func (r *Rotation) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	data, err := r.store.Load(ctx, store.KeyRotation)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: load rotation: %v", ErrPersistence, err)
	}
	doc := models.RotationDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: decode rotation: %v", ErrPersistence, err)
	}
	r.Restore(doc)
	return nil
}

func (r *Rotation) groupLock(group GroupID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[group]
	if !ok {
		l = &sync.Mutex{}
		r.locks[group] = l
	}
	return l
}

func (r *Rotation) get(group GroupID) models.RotationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[int64(group)]
	if !ok {
		return models.RotationState{Index: -1}
	}
	return st
}

func (r *Rotation) set(group GroupID, st models.RotationState) {
	r.mu.Lock()
	r.state[int64(group)] = st
	r.mu.Unlock()
}

func (r *Rotation) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	data, err := json.Marshal(r.Document())
	if err == nil {
		err = r.store.Save(ctx, store.KeyRotation, data)
	}
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues(store.KeyRotation, "error").Inc()
		r.log.Warn("rotation write failed, pointer kept in memory only", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.SnapshotWrites.WithLabelValues(store.KeyRotation, "ok").Inc()
	return nil
}
