package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"minefield-backend/internal/models"
	"minefield-backend/pkg/logger"
)

// LedgerRepo keeps the durable copy of every settlement in Postgres. The
// Ref unique index makes writes idempotent alongside the Redis settlement
// keys; a replayed entry is simply dropped.
type LedgerRepo struct {
	db *gorm.DB
}

func OpenLedger(dsn string) (*LedgerRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := db.AutoMigrate(&models.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	return &LedgerRepo{db: db}, nil
}

// NewLedgerRepo wraps an existing gorm handle (tests use sqlite in-memory).
func NewLedgerRepo(db *gorm.DB) (*LedgerRepo, error) {
	if err := db.AutoMigrate(&models.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &LedgerRepo{db: db}, nil
}

func (r *LedgerRepo) Record(ctx context.Context, entry *models.LedgerEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *LedgerRepo) Recent(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
