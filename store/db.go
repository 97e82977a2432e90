package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/rollcall/models"
)

// DBStore keeps documents as rows of the snapshots table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore wraps an opened gorm connection. The snapshots table must exist
// (see config.OpenDatabase, which migrates it).
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Load(ctx context.Context, key string) ([]byte, error) {
	var rec models.SnapshotRecord
	// struct conditions let gorm quote the reserved column name per dialect
	err := s.db.WithContext(ctx).Where(&models.SnapshotRecord{Key: key}).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return rec.Payload, nil
}

// Save upserts the document in a single statement so readers never see a partial row.
func (s *DBStore) Save(ctx context.Context, key string, data []byte) error {
	rec := models.SnapshotRecord{Key: key, Payload: data, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
