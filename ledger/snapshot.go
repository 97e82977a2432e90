package ledger

import (
	"github.com/cppla/rollcall/models"
)

// Snapshot returns a deep copy of every group's state in its durable shape.
func (l *Ledger) Snapshot() models.Snapshot {
	l.mu.Lock()
	ids := make([]GroupID, 0, len(l.groups))
	groups := make([]*groupState, 0, len(l.groups))
	for id, g := range l.groups {
		ids = append(ids, id)
		groups = append(groups, g)
	}
	l.mu.Unlock()

	snap := models.NewSnapshot()
	for i, g := range groups {
		gid := int64(ids[i])
		g.mu.Lock()
		subs := make(map[string]map[int64]models.Submission, len(g.submissions))
		for date, day := range g.submissions {
			if len(day) == 0 {
				continue
			}
			d := make(map[int64]models.Submission, len(day))
			for uid, s := range day {
				d[int64(uid)] = s
			}
			subs[date] = d
		}
		snap.Submissions[gid] = subs
		snap.Streaks[gid] = copyUserMap(g.streaks)
		snap.LastSubmissionDate[gid] = copyUserMap(g.lastDate)
		snap.KnownMembers[gid] = copyUserMap(g.known)
		g.mu.Unlock()
	}
	return snap
}

// Restore replaces all in-memory state with snap.
func (l *Ledger) Restore(snap models.Snapshot) {
	groups := map[GroupID]*groupState{}
	get := func(id int64) *groupState {
		g, ok := groups[GroupID(id)]
		if !ok {
			g = newGroupState()
			groups[GroupID(id)] = g
		}
		return g
	}
	for gid, dates := range snap.Submissions {
		g := get(gid)
		for date, day := range dates {
			d := make(map[UserID]models.Submission, len(day))
			for uid, s := range day {
				d[UserID(uid)] = s
			}
			g.submissions[date] = d
		}
	}
	for gid, m := range snap.Streaks {
		g := get(gid)
		for uid, n := range m {
			g.streaks[UserID(uid)] = n
		}
	}
	for gid, m := range snap.LastSubmissionDate {
		g := get(gid)
		for uid, d := range m {
			g.lastDate[UserID(uid)] = d
		}
	}
	for gid, m := range snap.KnownMembers {
		g := get(gid)
		for uid, name := range m {
			g.known[UserID(uid)] = name
		}
	}

	l.mu.Lock()
	l.groups = groups
	l.mu.Unlock()
}

func copyUserMap[V any](src map[UserID]V) map[int64]V {
	out := make(map[int64]V, len(src))
	for k, v := range src {
		out[int64(k)] = v
	}
	return out
}
