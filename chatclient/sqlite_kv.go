package chatclient

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntry struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value int64  `gorm:"column:value"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteKV is a file-backed KVStore so unread counters and poll cursors
// survive app restarts.
type SQLiteKV struct {
	db *gorm.DB
}

// OpenSQLiteKV opens (or creates) the store at path.
func OpenSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("chatclient: open kv store: %w", err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("chatclient: migrate kv store: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (int64, error) {
	var entry kvEntry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chatclient: kv get: %w", err)
	}
	return entry.Value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value int64) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{"value": value}),
		}).
		Create(&kvEntry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("chatclient: kv set: %w", err)
	}
	return nil
}

func (s *SQLiteKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{"value": gorm.Expr("value + ?", delta)}),
		}).Create(&kvEntry{Key: key, Value: delta}).Error
		if err != nil {
			return err
		}

		var entry kvEntry
		if err := tx.First(&entry, "key = ?", key).Error; err != nil {
			return err
		}
		value = entry.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("chatclient: kv incr: %w", err)
	}
	return value, nil
}

var _ KVStore = (*SQLiteKV)(nil)
