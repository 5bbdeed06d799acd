package repository

import (
	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionFilter narrows FindAll. Nil fields match everything.
type TransactionFilter struct {
	ProductID *uuid.UUID
	Type      *model.TransactionType
}

type TransactionRepository interface {
	// Create is insert-only; committed transactions are never updated
	// or deleted.
	Create(tx *model.Transaction) error
	FindAll(filter TransactionFilter) ([]model.Transaction, error)
	FindByID(id uuid.UUID) (*model.Transaction, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func (r *transactionRepo) Create(tx *model.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *transactionRepo) FindAll(filter TransactionFilter) ([]model.Transaction, error) {
	q := r.db.Preload("Product").Order("created_at DESC")
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	var transactions []model.Transaction
	err := q.Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	if err := r.db.Preload("Product").First(&transaction, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &transaction, nil
}
