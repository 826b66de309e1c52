package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is the row backing one key in the relational medium.
type Entry struct {
	Key       string         `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value     datatypes.JSON `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "kv_entries"
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-migrated gorm handle. The schema for Entry is
// created by database.OpenSQLite.
func NewGormStore(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("kv: database connection required")
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (s *gormStore) Put(ctx context.Context, key string, value []byte) error {
	entry := Entry{
		Key:   key,
		Value: datatypes.JSON(value),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
