package models

// Submission is one accepted check-in as stored in the snapshot.
type Submission struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// Snapshot is the durable form of the attendance ledger. Every mapping is keyed by
// group id first; dates are YYYY-MM-DD in the configured zone.
type Snapshot struct {
	Submissions        map[int64]map[string]map[int64]Submission `json:"submissions"`
	Streaks            map[int64]map[int64]int                   `json:"streaks"`
	LastSubmissionDate map[int64]map[int64]string                `json:"last_submission_date"`
	KnownMembers       map[int64]map[int64]string                `json:"known_members"`
}

// NewSnapshot returns a snapshot with all top-level mappings allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Submissions:        map[int64]map[string]map[int64]Submission{},
		Streaks:            map[int64]map[int64]int{},
		LastSubmissionDate: map[int64]map[int64]string{},
		KnownMembers:       map[int64]map[int64]string{},
	}
}
