package ledger

// advance applies an accepted submission on date to the member's streak and
// returns the new count. The caller holds g.mu.
//
// The rule is applied literally against the stored last date: exactly one day
// later extends the streak, anything else (first submission, same day, gap,
// or an out-of-order date) restarts it at 1.
func (g *groupState) advance(user UserID, date string) int {
	n := 1
	if isNextDay(g.lastDate[user], date) {
		n = g.streaks[user] + 1
	}
	g.streaks[user] = n
	g.lastDate[user] = date
	return n
}

// Streak returns the member's current streak, 0 when the member never checked in.
func (l *Ledger) Streak(group GroupID, user UserID) int {
	g := l.group(group, false)
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.streaks[user]
}

// LastDate returns the member's last accepted check-in date, "" when none.
func (l *Ledger) LastDate(group GroupID, user UserID) string {
	g := l.group(group, false)
	if g == nil {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDate[user]
}
