// Package archive persists records the maintenance sweep evicts from the
// live store into postgres, so expired stories and aged activities remain
// queryable offline.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
)

var (
	_ store.ArchiveSink = (*Sink)(nil)
	_ store.ArchiveSink = NopSink{}
)

/*

ArchivedStory is the cold copy of a story evicted by the sweep.

Id: the story's original id, primary key to make re-archiving idempotent
UserID / ExpiresAt: denormalized for querying without unpacking Data
Data: the full original record as JSON

*/
type ArchivedStory struct {
	Id         string `gorm:"primaryKey"`
	ArchivedAt time.Time
	UserID     string
	ExpiresAt  int64
	Data       datatypes.JSON
}

// ArchivedActivity mirrors ArchivedStory for the activities log.
type ArchivedActivity struct {
	Id         string `gorm:"primaryKey"`
	ArchivedAt time.Time
	UserID     string
	Type       string
	Timestamp  int64
	Data       datatypes.JSON
}

// Sink writes evicted records to postgres. Implements store.ArchiveSink.
type Sink struct {
	db *gorm.DB
}

// NewSink connects to the database specified by the DB_* env vars and runs
// migration for the archive tables.
func NewSink() (*Sink, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASS"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to archive database")
	}
	return NewSinkWithDB(db)
}

// NewSinkWithDB wraps an existing connection, for tests that bring their own.
func NewSinkWithDB(db *gorm.DB) (*Sink, error) {
	if err := db.AutoMigrate(&ArchivedStory{}, &ArchivedActivity{}); err != nil {
		return nil, errors.Wrap(err, "migrate archive tables")
	}
	return &Sink{db: db}, nil
}

func (s *Sink) ArchiveStory(ctx context.Context, story *model.Story) error {
	raw, err := json.Marshal(story)
	if err != nil {
		return errors.Wrap(err, "marshal story")
	}
	row := &ArchivedStory{
		Id:         story.Id,
		ArchivedAt: time.Now(),
		UserID:     story.UserID,
		ExpiresAt:  story.ExpiresAt,
		Data:       datatypes.JSON(raw),
	}
	// Save, not Create: a sweep retried after a partial failure re-archives
	// the same victims.
	return errors.Wrap(s.db.WithContext(ctx).Save(row).Error, "archive story")
}

func (s *Sink) ArchiveActivity(ctx context.Context, activity *model.Activity) error {
	raw, err := json.Marshal(activity)
	if err != nil {
		return errors.Wrap(err, "marshal activity")
	}
	row := &ArchivedActivity{
		Id:         activity.Id,
		ArchivedAt: time.Now(),
		UserID:     activity.UserID,
		Type:       activity.Type,
		Timestamp:  activity.Timestamp,
		Data:       datatypes.JSON(raw),
	}
	return errors.Wrap(s.db.WithContext(ctx).Save(row).Error, "archive activity")
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NopSink discards everything. Used when no archive database is configured
// and in tests.
type NopSink struct{}

func (NopSink) ArchiveStory(ctx context.Context, story *model.Story) error          { return nil }
func (NopSink) ArchiveActivity(ctx context.Context, activity *model.Activity) error { return nil }
