package repository

import (
	"go-inventory-ledger/internal/model"

	"gorm.io/gorm"
)

type ActivityRepository interface {
	// Append is a pure durable insert. Entries are never updated or
	// deleted; the caller has already validated everything.
	Append(entry *model.ActivityLogEntry) error
	FindRecent(limit int) ([]model.ActivityLogEntry, error)
}

type activityRepo struct {
	db *gorm.DB
}

func (r *activityRepo) Append(entry *model.ActivityLogEntry) error {
	return r.db.Create(entry).Error
}

func (r *activityRepo) FindRecent(limit int) ([]model.ActivityLogEntry, error) {
	var entries []model.ActivityLogEntry
	err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
