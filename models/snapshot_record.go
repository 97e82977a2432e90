package models

import "time"

// SnapshotRecord stores one persisted document (ledger snapshot or rotation index)
// when a SQL backend is configured.
type SnapshotRecord struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Payload   []byte    `gorm:"not null" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name independent of naming strategy.
func (SnapshotRecord) TableName() string {
	return "snapshots"
}
