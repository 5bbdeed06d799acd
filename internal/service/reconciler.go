package service

import (
	"errors"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
)

// maxReconcileAttempts bounds the optimistic-concurrency retry loop
// before RecordTransaction gives up with ConflictError.
const maxReconcileAttempts = 5

// errStaleQuantity signals that the guarded quantity write lost the race
// with a concurrent reconciliation. The whole unit of work is rolled
// back and retried.
var errStaleQuantity = errors.New("stale product quantity read")

// stockReconciler applies a transaction's signed quantity delta to the
// product row. It runs entirely inside the caller's atomic unit: the
// read, the guarded write and the product UPDATE audit entry commit (or
// vanish) together with the ledger insert.
type stockReconciler struct{}

// signedDelta maps the transaction type to the quantity change it
// implies. Adjustments carry their own signed delta; no direction is
// assumed for them.
func signedDelta(txType model.TransactionType, quantity, adjustmentDelta int) int {
	switch txType {
	case model.TxBuy:
		return quantity
	case model.TxSell:
		return -quantity
	case model.TxAdjustment:
		return adjustmentDelta
	}
	return 0
}

// apply reads the product, computes new quantity and performs the
// compare-and-swap write plus its audit entry. Returns the product with
// the post-write quantity. errStaleQuantity means "retry the unit".
func (stockReconciler) apply(tx repository.Store, productID uuid.UUID, delta int, userID *string) (*model.Product, error) {
	product, err := tx.Products().FindByID(productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: "product", ID: productID}
		}
		return nil, &PersistenceError{Op: "load product", Err: err}
	}

	before := product.Quantity
	after := before + delta
	if after < 0 {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Available: before,
			Requested: -delta,
		}
	}

	ok, err := tx.Products().UpdateQuantity(productID, before, after, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "update product quantity", Err: err}
	}
	if !ok {
		return nil, errStaleQuantity
	}

	entry := &model.ActivityLogEntry{
		EntityType: model.EntityProducts,
		EntityID:   productID,
		Action:     model.ActionUpdate,
		Details: model.UpdatedDetails(
			map[string]interface{}{"quantity": before},
			map[string]interface{}{"quantity": after},
		),
		UserID: userID,
	}
	if err := tx.Activity().Append(entry); err != nil {
		return nil, &PersistenceError{Op: "append product audit entry", Err: err}
	}

	product.Quantity = after
	return product, nil
}
