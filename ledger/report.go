package ledger

import (
	"fmt"
	"sort"

	"github.com/cppla/rollcall/models"
)

// DefaultTop is the leaderboard length used by reports.
const DefaultTop = 5

// Member is a known member of a group.
type Member struct {
	ID   UserID `json:"user_id"`
	Name string `json:"name"`
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int    `json:"rank"`
	ID     UserID `json:"user_id"`
	Name   string `json:"name"`
	Streak int    `json:"streak"`
}

// Pending is the "who has not reported today" view of a group.
type Pending struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Submitted int    `json:"submitted"`
	// Count is the numeric gap against the transport's member count.
	Count int `json:"pending"`
	// Named lists only known members; unknown non-submitters show up in Count only.
	Named []Member `json:"named"`
}

// Report bundles the numeric summary, the named pending list and the leaderboard.
type Report struct {
	Pending
	Time        string     `json:"time"`
	Leaderboard []Standing `json:"leaderboard"`
}

// Members returns the group's known members ordered by user id.
func (l *Ledger) Members(group GroupID) []Member {
	g := l.group(group, false)
	if g == nil {
		return []Member{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Member, 0, len(g.known))
	for id, name := range g.known {
		out = append(out, Member{ID: id, Name: name})
	}
	sortMembers(out)
	return out
}

// Submitted returns today's submitters ordered by user id.
func (l *Ledger) Submitted(group GroupID) []Member {
	date := Today(l.clock)
	g := l.group(group, false)
	if g == nil {
		return []Member{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	day := g.submissions[date]
	out := make([]Member, 0, len(day))
	for id, sub := range day {
		out = append(out, Member{ID: id, Name: g.nameOf(id, sub.Name)})
	}
	sortMembers(out)
	return out
}

// Top ranks the group by streak, highest first, at most n rows. Members with
// no streak are left out. Equal streaks are ordered by user id.
func (l *Ledger) Top(group GroupID, n int) []Standing {
	date := Today(l.clock)
	g := l.group(group, false)
	if g == nil {
		return []Standing{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.top(date, n)
}

// Pending resolves today's pending members against the transport's member count.
func (l *Ledger) Pending(group GroupID, total int) Pending {
	date := Today(l.clock)
	g := l.group(group, false)
	if g == nil {
		return resolvePending(date, total, nil, nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return resolvePending(date, total, g.known, g.submissions[date])
}

// Report computes the pending view and the top-5 leaderboard from one
// consistent view of the group.
func (l *Ledger) Report(group GroupID, total int) Report {
	now := l.clock.Now()
	date := now.Format(DateLayout)
	r := Report{Time: now.Format(TimeLayout), Leaderboard: []Standing{}}
	g := l.group(group, false)
	if g == nil {
		r.Pending = resolvePending(date, total, nil, nil)
		return r
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r.Pending = resolvePending(date, total, g.known, g.submissions[date])
	r.Leaderboard = g.top(date, DefaultTop)
	return r
}

func (g *groupState) top(date string, n int) []Standing {
	ids := make(map[UserID]struct{}, len(g.known))
	for id := range g.known {
		ids[id] = struct{}{}
	}
	for id := range g.submissions[date] {
		ids[id] = struct{}{}
	}

	rows := make([]Standing, 0, len(ids))
	for id := range ids {
		s := g.streaks[id]
		if s <= 0 {
			continue
		}
		rows = append(rows, Standing{ID: id, Name: g.nameOf(id, g.submissions[date][id].Name), Streak: s})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Streak != rows[j].Streak {
			return rows[i].Streak > rows[j].Streak
		}
		return rows[i].ID < rows[j].ID
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func (g *groupState) nameOf(id UserID, fallback string) string {
	if name, ok := g.known[id]; ok && name != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("User %d", id)
}

func resolvePending(date string, total int, known map[UserID]string, today map[UserID]models.Submission) Pending {
	p := Pending{Date: date, Total: total, Submitted: len(today), Named: []Member{}}
	p.Count = total - len(today)
	if p.Count < 0 {
		p.Count = 0
	}
	for id, name := range known {
		if _, done := today[id]; done {
			continue
		}
		p.Named = append(p.Named, Member{ID: id, Name: name})
	}
	sortMembers(p.Named)
	return p
}

func sortMembers(ms []Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
