package service

import (
	"context"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
)

// DefaultActivityLimit matches the activity feed page size.
const DefaultActivityLimit = 100

type ActivityService interface {
	// ListActivity returns the newest entries first. Reads are
	// side-effect free; two calls with no intervening writes return the
	// same sequence.
	ListActivity(ctx context.Context, limit int) ([]model.ActivityLogEntry, error)
}

type activityService struct {
	store repository.Store
}

func NewActivityService(store repository.Store) ActivityService {
	return &activityService{store: store}
}

func (s *activityService) ListActivity(ctx context.Context, limit int) ([]model.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	entries, err := s.store.Activity().FindRecent(limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list activity", Err: err}
	}
	return entries, nil
}
