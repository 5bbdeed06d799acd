package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is the storage-neutral "no such row" error. Gorm-backed
// repositories translate gorm.ErrRecordNotFound into it so the service
// layer never depends on the driver.
var ErrNotFound = errors.New("record not found")

// Store bundles the repositories plus the atomic unit of work. Everything
// executed inside Atomically commits together or not at all; the fn
// receives a Store whose repositories are bound to that unit.
type Store interface {
	Products() ProductRepository
	Transactions() TransactionRepository
	Activity() ActivityRepository
	Users() UserRepository

	Atomically(ctx context.Context, fn func(Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection as a Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Products() ProductRepository         { return &productRepo{db: s.db} }
func (s *gormStore) Transactions() TransactionRepository { return &transactionRepo{db: s.db} }
func (s *gormStore) Activity() ActivityRepository        { return &activityRepo{db: s.db} }
func (s *gormStore) Users() UserRepository               { return &userRepo{db: s.db} }

func (s *gormStore) Atomically(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
