package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultBatchWindow comfortably covers how long a multi-photo upload takes to arrive.
	DefaultBatchWindow = 10 * time.Minute
	// DefaultBatchEntries caps the in-memory window.
	DefaultBatchEntries = 10000

	batchKeyPrefix = "rollcall:batch:"
)

// BatchFilter lets only the first event of a transport batch (for example a
// multi-photo upload) through to the ledger.
type BatchFilter interface {
	// First reports whether this is the first event seen for (group, user, batchID)
	// within the retention window. An empty batchID always passes.
	First(ctx context.Context, group GroupID, user UserID, batchID string) bool
}

type batchKey struct {
	group GroupID
	user  UserID
	batch string
}

// MemoryBatchFilter keeps seen batches in memory for a fixed window and never
// holds more than a fixed number of entries.
type MemoryBatchFilter struct {
	window     time.Duration
	maxEntries int
	now        func() time.Time

	mu   sync.Mutex
	seen map[batchKey]time.Time
}

// NewMemoryBatchFilter returns a filter with the given window and capacity;
// zero values pick the defaults.
func NewMemoryBatchFilter(window time.Duration, maxEntries int) *MemoryBatchFilter {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultBatchEntries
	}
	return &MemoryBatchFilter{
		window:     window,
		maxEntries: maxEntries,
		now:        time.Now,
		seen:       map[batchKey]time.Time{},
	}
}

func (f *MemoryBatchFilter) First(_ context.Context, group GroupID, user UserID, batchID string) bool {
	if batchID == "" {
		return true
	}
	key := batchKey{group: group, user: user, batch: batchID}
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.evictExpiredLocked(now)
	if exp, ok := f.seen[key]; ok && now.Before(exp) {
		return false
	}
	if len(f.seen) >= f.maxEntries {
		f.evictOldestLocked()
	}
	f.seen[key] = now.Add(f.window)
	return true
}

// Len returns the number of batches currently remembered.
func (f *MemoryBatchFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *MemoryBatchFilter) evictExpiredLocked(now time.Time) {
	for k, exp := range f.seen {
		if !now.Before(exp) {
			delete(f.seen, k)
		}
	}
}

func (f *MemoryBatchFilter) evictOldestLocked() {
	var (
		oldest    batchKey
		oldestExp time.Time
		found     bool
	)
	for k, exp := range f.seen {
		if !found || exp.Before(oldestExp) {
			oldest, oldestExp, found = k, exp, true
		}
	}
	if found {
		delete(f.seen, oldest)
	}
}

// RedisBatchFilter records batches as Redis keys with a TTL so the window is
// shared by every process. When Redis is unreachable it falls back to memory.
type RedisBatchFilter struct {
	rc       *redis.Client
	window   time.Duration
	fallback *MemoryBatchFilter
	log      *zap.Logger
}

// NewRedisBatchFilter wraps rc. A nil rc behaves exactly like the memory filter.
func NewRedisBatchFilter(rc *redis.Client, window time.Duration, log *zap.Logger) *RedisBatchFilter {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBatchFilter{
		rc:       rc,
		window:   window,
		fallback: NewMemoryBatchFilter(window, DefaultBatchEntries),
		log:      log,
	}
}

func (f *RedisBatchFilter) First(ctx context.Context, group GroupID, user UserID, batchID string) bool {
	if batchID == "" {
		return true
	}
	if f.rc == nil {
		return f.fallback.First(ctx, group, user, batchID)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := f.rc.SetNX(ctx, redisBatchKey(group, user, batchID), "1", f.window).Result()
	if err != nil {
		f.log.Warn("batch filter: redis unavailable, using memory window", zap.Error(err))
		return f.fallback.First(ctx, group, user, batchID)
	}
	return ok
}

func redisBatchKey(group GroupID, user UserID, batchID string) string {
	return batchKeyPrefix + strconv.FormatInt(int64(group), 10) + ":" + strconv.FormatInt(int64(user), 10) + ":" + batchID
}

// Submit is the intake path shared by every transport. The sender always
// becomes a known member; the check-in is recorded only for the first event of
// a batch. filtered is true when the batch filter swallowed the event. A
// returned error wrapping ErrPersistence leaves the result valid.
func (l *Ledger) Submit(ctx context.Context, f BatchFilter, group GroupID, user UserID, name, batchID string) (res CheckIn, filtered bool, err error) {
	obsErr := l.Observe(ctx, group, user, name)
	if f != nil && !f.First(ctx, group, user, batchID) {
		if name == "" {
			name = DefaultName
		}
		return CheckIn{Group: group, User: user, Name: name}, true, obsErr
	}
	res, err = l.Record(ctx, group, user, name)
	if err == nil {
		err = obsErr
	}
	return res, false, err
}
