// Package ledger is the attendance ledger and streak engine: it records one
// check-in per member per day, keeps consecutive-day streaks, tracks the members
// known to each group, and answers leaderboard and pending-member queries. State
// is kept per group and written through to a store after every mutation.
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

// GroupID identifies a chat group.
type GroupID int64

// UserID identifies a member within a group.
type UserID int64

// DefaultName is used when the transport supplies no display name.
const DefaultName = "User"

// Outcome is the ledger's decision for a check-in.
type Outcome int

const (
	Accepted Outcome = iota + 1
	DuplicateIgnored
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case DuplicateIgnored:
		return "duplicate"
	default:
		return "unknown"
	}
}

// CheckIn is the result of Record.
type CheckIn struct {
	Outcome Outcome
	Group   GroupID
	User    UserID
	Name    string
	Date    string
	Time    string
	// Streak is the member's streak after this check-in (unchanged on duplicates).
	Streak int
}

type groupState struct {
	mu          sync.Mutex
	submissions map[string]map[UserID]models.Submission
	streaks     map[UserID]int
	lastDate    map[UserID]string
	known       map[UserID]string
}

func newGroupState() *groupState {
	return &groupState{
		submissions: map[string]map[UserID]models.Submission{},
		streaks:     map[UserID]int{},
		lastDate:    map[UserID]string{},
		known:       map[UserID]string{},
	}
}

// Ledger owns the per-group state containers. Each group is guarded by its own
// mutex; the arena lock only covers finding or creating a group.
type Ledger struct {
	clock Clock
	store store.Store
	log   *zap.Logger

	mu     sync.Mutex
	groups map[GroupID]*groupState

	// persistMu orders snapshot copies with their writes so an older copy
	// can never overwrite a newer one. Always taken before any group lock.
	persistMu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStore sets where snapshots are written. Without a store the ledger is memory-only.
func WithStore(s store.Store) Option {
	return func(l *Ledger) { l.store = s }
}

// New creates an empty ledger.
func New(clock Clock, opts ...Option) *Ledger {
	l := &Ledger{
		clock:  clock,
		log:    zap.NewNop(),
		groups: map[GroupID]*groupState{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the ledger's clock.
func (l *Ledger) Clock() Clock {
	return l.clock
}

func (l *Ledger) group(id GroupID, create bool) *groupState {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[id]
	if !ok && create {
		g = newGroupState()
		l.groups[id] = g
	}
	return g
}

// Record registers a check-in for today. A second check-in by the same member on
// the same date returns DuplicateIgnored and changes nothing.
//
// The returned error is non-nil only when the snapshot write failed; the
// CheckIn is still valid in that case.
func (l *Ledger) Record(ctx context.Context, group GroupID, user UserID, name string) (CheckIn, error) {
	if name == "" {
		name = DefaultName
	}
	now := l.clock.Now()
	date := now.Format(DateLayout)
	res := CheckIn{Group: group, User: user, Name: name, Date: date, Time: now.Format(TimeLayout)}

	g := l.group(group, true)
	g.mu.Lock()
	day, ok := g.submissions[date]
	if !ok {
		day = map[UserID]models.Submission{}
		g.submissions[date] = day
	}
	if _, dup := day[user]; dup {
		res.Outcome = DuplicateIgnored
		res.Streak = g.streaks[user]
		g.mu.Unlock()
		metrics.CheckIns.WithLabelValues(res.Outcome.String()).Inc()
		return res, nil
	}
	day[user] = models.Submission{Name: name, Time: res.Time}
	g.known[user] = name
	res.Streak = g.advance(user, date)
	res.Outcome = Accepted
	g.mu.Unlock()

	metrics.CheckIns.WithLabelValues(res.Outcome.String()).Inc()
	l.log.Info("check-in recorded",
		zap.Int64("group", int64(group)),
		zap.Int64("user", int64(user)),
		zap.String("date", date),
		zap.String("time", res.Time),
		zap.Int("streak", res.Streak),
	)
	return res, l.persist(ctx)
}

// Observe upserts a member's display name. Only a real change is written through.
func (l *Ledger) Observe(ctx context.Context, group GroupID, user UserID, name string) error {
	if name == "" {
		name = DefaultName
	}
	g := l.group(group, true)
	g.mu.Lock()
	if cur, ok := g.known[user]; ok && cur == name {
		g.mu.Unlock()
		return nil
	}
	g.known[user] = name
	g.mu.Unlock()
	return l.persist(ctx)
}

// Load replaces in-memory state with the stored snapshot. A missing snapshot is
// not an error. Any other failure leaves the ledger empty and returns an error
// wrapping ErrPersistence; callers are expected to log it and continue.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	data, err := l.store.Load(ctx, store.KeyLedger)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: load snapshot: %v", ErrPersistence, err)
	}
	snap := models.NewSnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", ErrPersistence, err)
	}
	l.Restore(snap)
	return nil
}

func (l *Ledger) persist(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	data, err := json.Marshal(l.Snapshot())
	if err == nil {
		err = l.store.Save(ctx, store.KeyLedger, data)
	}
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues(store.KeyLedger, "error").Inc()
		l.log.Warn("snapshot write failed, state kept in memory only", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.SnapshotWrites.WithLabelValues(store.KeyLedger, "ok").Inc()
	return nil
}
