package skills

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// skillRecord maps the application's skills table.
type skillRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"column:name"`
	CanTrack bool   `gorm:"column:can_track"`
	Alias    string `gorm:"column:alias"`
}

func (skillRecord) TableName() string {
	return "skills"
}

// GormSource reads trackable skills from PostgreSQL.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource wraps an open database handle.
func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

// OpenPostgres connects to the database at dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Skills returns the skills flagged for tracking, in insertion order.
func (s *GormSource) Skills(ctx context.Context) ([]Skill, error) {
	var records []skillRecord
	err := s.db.WithContext(ctx).
		Where("can_track = ?", true).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}

	out := make([]Skill, 0, len(records))
	for _, r := range records {
		out = append(out, Skill{Name: r.Name, Track: r.CanTrack, Alias: r.Alias})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *GormSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
