package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/ws"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransactionIntent is the explicit request object for recording a
// ledger event. Handlers fill it from the HTTP surface; nothing here is
// read from ambient session state.
//
// Quantity must be > 0 for buy and sell. Adjustments instead carry
// Delta, the signed correction to apply; Quantity is derived as |Delta|.
type TransactionIntent struct {
	ProductID    uuid.UUID             `json:"product_id" validate:"uuid_required"`
	Type         model.TransactionType `json:"type" validate:"required,oneof=buy sell adjustment"`
	Quantity     int                   `json:"quantity"`
	Delta        int                   `json:"delta"`
	PricePerUnit decimal.Decimal       `json:"price_per_unit"`
	Notes        string                `json:"notes"`
	UserID       *string               `json:"-"`
}

// totalAmount is quantity x price per unit rounded to 2 decimal places.
// Rounding is decimal.Round half-away-from-zero, which for the
// non-negative amounts involved here is round-half-up.
func (i *TransactionIntent) totalAmount(quantity int) decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

type InventoryService interface {
	RecordTransaction(ctx context.Context, intent TransactionIntent) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)

	CreateProduct(ctx context.Context, product *model.Product, userID string) error
	UpdateProduct(ctx context.Context, id uuid.UUID, req ProductUpdate, userID string) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID, userID string) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
}

// ProductUpdate carries the catalog fields that may change after
// creation. SKU is immutable and quantity belongs to the reconciler.
type ProductUpdate struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

type inventoryService struct {
	store      repository.Store
	reconciler stockReconciler
	wsHub      *ws.Hub
}

func NewInventoryService(store repository.Store, hub *ws.Hub) InventoryService {
	return &inventoryService{
		store: store,
		wsHub: hub,
	}
}

// validate applies the fail-fast checks. Nothing is written when any of
// these fail.
func (i *TransactionIntent) validate() (quantity, delta int, err error) {
	if errs := validator.ValidateStruct(i); len(errs) > 0 {
		first := errs[0]
		return 0, 0, &ValidationError{
			Field:  first.FailedField,
			Reason: fmt.Sprintf("failed on tag '%s'", first.Tag),
		}
	}
	if i.PricePerUnit.IsNegative() {
		return 0, 0, &ValidationError{Field: "price_per_unit", Reason: "must not be negative"}
	}

	switch i.Type {
	case model.TxAdjustment:
		if i.Delta == 0 {
			return 0, 0, &ValidationError{Field: "delta", Reason: "adjustment requires a non-zero signed delta"}
		}
		quantity = i.Delta
		if quantity < 0 {
			quantity = -quantity
		}
		return quantity, i.Delta, nil
	default:
		if i.Quantity <= 0 {
			return 0, 0, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
		}
		return i.Quantity, signedDelta(i.Type, i.Quantity, 0), nil
	}
}

// RecordTransaction validates the intent and commits the ledger row, the
// stock update and both audit entries as one atomic unit. Concurrent
// reconciliations on the same product are resolved optimistically: on a
// stale quantity read the whole unit is rolled back and retried, up to
// maxReconcileAttempts before surfacing ConflictError.
func (s *inventoryService) RecordTransaction(ctx context.Context, intent TransactionIntent) (*model.Transaction, error) {
	quantity, delta, err := intent.validate()
	if err != nil {
		return nil, err
	}

	var (
		committed *model.Transaction
		product   *model.Product
	)

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		committed, product = nil, nil

		err := s.store.Atomically(ctx, func(tx repository.Store) error {
			reconciled, err := s.reconciler.apply(tx, intent.ProductID, delta, intent.UserID)
			if err != nil {
				return err
			}

			record := &model.Transaction{
				ProductID:       intent.ProductID,
				Type:            intent.Type,
				Quantity:        quantity,
				Delta:           delta,
				PricePerUnit:    intent.PricePerUnit,
				TotalAmount:     intent.totalAmount(quantity),
				Notes:           intent.Notes,
				CreatedByUserID: intent.UserID,
			}
			if err := tx.Transactions().Create(record); err != nil {
				return &PersistenceError{Op: "insert transaction", Err: err}
			}

			entry := &model.ActivityLogEntry{
				EntityType: model.EntityTransactions,
				EntityID:   record.ID,
				Action:     model.ActionInsert,
				Details: model.CreatedDetails(map[string]interface{}{
					"product_id":   record.ProductID,
					"type":         string(record.Type),
					"quantity":     record.Quantity,
					"delta":        record.Delta,
					"total_amount": record.TotalAmount,
				}),
				UserID: intent.UserID,
			}
			if err := tx.Activity().Append(entry); err != nil {
				return &PersistenceError{Op: "append transaction audit entry", Err: err}
			}

			committed, product = record, reconciled
			return nil
		})

		if err == nil {
			log.Info().
				Str("transaction_id", committed.ID.String()).
				Str("product_id", intent.ProductID.String()).
				Str("type", string(intent.Type)).
				Int("delta", delta).
				Int("quantity_after", product.Quantity).
				Msg("transaction committed")
			s.broadcastTransaction(committed, product)
			return committed, nil
		}
		if errors.Is(err, errStaleQuantity) {
			log.Debug().
				Str("product_id", intent.ProductID.String()).
				Int("attempt", attempt).
				Msg("stock reconciliation conflict, retrying")
			continue
		}
		return nil, coerce(err, "record transaction")
	}

	return nil, &ConflictError{ProductID: intent.ProductID, Attempts: maxReconcileAttempts}
}

func (s *inventoryService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	transactions, err := s.store.Transactions().FindAll(filter)
	if err != nil {
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

func (s *inventoryService) GetTransactionByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	tx, err := s.store.Transactions().FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: "transaction", ID: id}
		}
		return nil, &PersistenceError{Op: "load transaction", Err: err}
	}
	return tx, nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, product *model.Product, userID string) error {
	if errs := validator.ValidateStruct(product); len(errs) > 0 {
		first := errs[0]
		return &ValidationError{
			Field:  first.FailedField,
			Reason: fmt.Sprintf("failed on tag '%s'", first.Tag),
		}
	}
	if product.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if product.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	// Cek duplikasi SKU (business logic validation)
	if existing, err := s.store.Products().FindBySKU(product.SKU); err == nil && existing.ID != uuid.Nil {
		return &ValidationError{Field: "sku", Reason: "already exists"}
	}

	product.CreatedByUserID = &userID
	product.UpdatedByUserID = &userID

	err := s.store.Atomically(ctx, func(tx repository.Store) error {
		if err := tx.Products().Create(product); err != nil {
			return &PersistenceError{Op: "create product", Err: err}
		}
		entry := &model.ActivityLogEntry{
			EntityType: model.EntityProducts,
			EntityID:   product.ID,
			Action:     model.ActionInsert,
			Details:    model.CreatedDetails(product.Snapshot()),
			UserID:     &userID,
		}
		if err := tx.Activity().Append(entry); err != nil {
			return &PersistenceError{Op: "append product audit entry", Err: err}
		}
		return nil
	})
	if err != nil {
		return coerce(err, "create product")
	}

	s.broadcastProduct("product_created", product, userID)
	return nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, req ProductUpdate, userID string) (*model.Product, error) {
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		first := errs[0]
		return nil, &ValidationError{
			Field:  first.FailedField,
			Reason: fmt.Sprintf("failed on tag '%s'", first.Tag),
		}
	}
	if req.Price.IsNegative() {
		return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
	}

	var updated *model.Product
	err := s.store.Atomically(ctx, func(tx repository.Store) error {
		existing, err := tx.Products().FindByID(id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &NotFoundError{Entity: "product", ID: id}
			}
			return &PersistenceError{Op: "load product", Err: err}
		}

		oldFields := map[string]interface{}{}
		newFields := map[string]interface{}{}
		if existing.Name != req.Name {
			oldFields["name"], newFields["name"] = existing.Name, req.Name
			existing.Name = req.Name
		}
		if !existing.Price.Equal(req.Price) {
			oldFields["price"], newFields["price"] = existing.Price, req.Price
			existing.Price = req.Price
		}
		if len(newFields) == 0 {
			updated = existing
			return nil // nothing changed, no mutation, no audit entry
		}

		existing.UpdatedByUserID = &userID
		if err := tx.Products().Save(existing); err != nil {
			return &PersistenceError{Op: "update product", Err: err}
		}
		entry := &model.ActivityLogEntry{
			EntityType: model.EntityProducts,
			EntityID:   id,
			Action:     model.ActionUpdate,
			Details:    model.UpdatedDetails(oldFields, newFields),
			UserID:     &userID,
		}
		if err := tx.Activity().Append(entry); err != nil {
			return &PersistenceError{Op: "append product audit entry", Err: err}
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, coerce(err, "update product")
	}

	s.broadcastProduct("product_updated", updated, userID)
	return updated, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, id uuid.UUID, userID string) error {
	err := s.store.Atomically(ctx, func(tx repository.Store) error {
		existing, err := tx.Products().FindByID(id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &NotFoundError{Entity: "product", ID: id}
			}
			return &PersistenceError{Op: "load product", Err: err}
		}

		if err := tx.Products().Delete(id); err != nil {
			return &PersistenceError{Op: "delete product", Err: err}
		}
		entry := &model.ActivityLogEntry{
			EntityType: model.EntityProducts,
			EntityID:   id,
			Action:     model.ActionDelete,
			Details:    model.DeletedDetails(existing.Snapshot()),
			UserID:     &userID,
		}
		if err := tx.Activity().Append(entry); err != nil {
			return &PersistenceError{Op: "append product audit entry", Err: err}
		}
		return nil
	})
	return coerce(err, "delete product")
}

func (s *inventoryService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.store.Products().FindAll()
	if err != nil {
		return nil, &PersistenceError{Op: "list products", Err: err}
	}
	return products, nil
}

// coerce leaves the engine's own typed errors alone and wraps anything
// else (driver commit failures and the like) as a PersistenceError.
func coerce(err error, op string) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		nErr *NotFoundError
		iErr *InsufficientStockError
		cErr *ConflictError
		pErr *PersistenceError
	)
	if errors.As(err, &vErr) || errors.As(err, &nErr) || errors.As(err, &iErr) ||
		errors.As(err, &cErr) || errors.As(err, &pErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// broadcastTransaction pushes the committed event to connected websocket
// clients. Best effort only: it runs after commit and never affects the
// unit of work.
func (s *inventoryService) broadcastTransaction(tx *model.Transaction, product *model.Product) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "stock_update",
			"action": "transaction_created",
			"transaction": map[string]interface{}{
				"id":           tx.ID,
				"type":         tx.Type,
				"quantity":     tx.Quantity,
				"delta":        tx.Delta,
				"total_amount": tx.TotalAmount,
				"product_id":   product.ID,
				"product": map[string]interface{}{
					"name": product.Name,
					"sku":  product.SKU,
				},
				"new_stock": product.Quantity,
			},
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}

func (s *inventoryService) broadcastProduct(action string, product *model.Product, userID string) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "stock_update",
			"action": action,
			"product": map[string]interface{}{
				"id":       product.ID,
				"sku":      product.SKU,
				"name":     product.Name,
				"quantity": product.Quantity,
				"price":    product.Price,
			},
			"user_id": userID,
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}
