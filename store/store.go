package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"clipforge/models"
)

// JobRecord is the persisted form of a finished job
type JobRecord struct {
	ID            string `gorm:"primaryKey"`
	State         string
	Success       bool
	OutputPath    string
	FailureReason string
	ClipCount     int
	AudioDuration float64
	WarningCount  int
	PlanningMS    int64
	SelectingMS   int64
	EncodingMS    int64
	AssemblingMS  int64
	CreatedAt     time.Time
}

// Store persists job results to Postgres. It is optional: a nil *Store is
// safe to call and does nothing
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema. Returns nil when dsn
// is empty, disabling persistence
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveResult records a finished job
func (s *Store) SaveResult(result models.JobResult) error {
	if s == nil {
		return nil
	}

	record := JobRecord{
		ID:            result.JobID,
		State:         string(result.State),
		Success:       result.Success,
		OutputPath:    result.OutputPath,
		FailureReason: result.FailureReason,
		ClipCount:     result.ClipCount,
		AudioDuration: result.AudioDuration,
		WarningCount:  len(result.Warnings),
		PlanningMS:    result.StageTimings["planning"].Milliseconds(),
		SelectingMS:   result.StageTimings["selecting"].Milliseconds(),
		EncodingMS:    result.StageTimings["encoding"].Milliseconds(),
		AssemblingMS:  result.StageTimings["assembling"].Milliseconds(),
		CreatedAt:     time.Now(),
	}

	if err := s.db.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// RecentResults returns the most recent job records, newest first
func (s *Store) RecentResults(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, nil
	}

	var records []JobRecord
	err := s.db.Order("created_at desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query job records: %w", err)
	}
	return records, nil
}
