package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/repository/memory"
	"go-inventory-ledger/internal/service"
)

func newTestService(t *testing.T) (service.InventoryService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return service.NewInventoryService(store, nil), store
}

func seedProduct(t *testing.T, store *memory.Store, sku string, quantity int, price string) *model.Product {
	t.Helper()
	product := &model.Product{
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
	require.NoError(t, store.Products().Create(product))
	return product
}

func buyIntent(productID uuid.UUID, quantity int, price string) service.TransactionIntent {
	return service.TransactionIntent{
		ProductID:    productID,
		Type:         model.TxBuy,
		Quantity:     quantity,
		PricePerUnit: decimal.RequireFromString(price),
	}
}

func sellIntent(productID uuid.UUID, quantity int, price string) service.TransactionIntent {
	return service.TransactionIntent{
		ProductID:    productID,
		Type:         model.TxSell,
		Quantity:     quantity,
		PricePerUnit: decimal.RequireFromString(price),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"expected %s, got %s", want, got)
}

// =============================================================================
// RECORD: STOCK ARITHMETIC
// =============================================================================

func TestRecordTransaction_BuyThenOversell(t *testing.T) {
	// The worked scenario: buy 5 at 4.00 onto a stock of 10, then try to
	// sell 20.
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "A1", 10, "5.00")

	committed, err := svc.RecordTransaction(ctx, buyIntent(product.ID, 5, "4.00"))
	require.NoError(t, err)
	assertDecimal(t, "20.00", committed.TotalAmount)
	assert.Equal(t, 5, committed.Delta)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.Quantity)

	entries, err := store.Activity().FindRecent(10)
	require.NoError(t, err)
	var update *model.ActivityLogEntry
	for i := range entries {
		if entries[i].EntityType == model.EntityProducts && entries[i].Action == model.ActionUpdate {
			update = &entries[i]
		}
	}
	require.NotNil(t, update, "product UPDATE audit entry missing")
	assert.EqualValues(t, 10, update.Details.Old["quantity"])
	assert.EqualValues(t, 15, update.Details.New["quantity"])

	// Overselling fails and leaves nothing behind.
	txCountBefore := countTransactions(t, store)
	entryCountBefore := countActivity(t, store)

	_, err = svc.RecordTransaction(ctx, sellIntent(product.ID, 20, "5.00"))
	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 15, stockErr.Available)
	assert.Equal(t, 20, stockErr.Requested)

	reloaded, err = store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, reloaded.Quantity, "failed sell must not touch stock")
	assert.Equal(t, txCountBefore, countTransactions(t, store), "no ledger row on failure")
	assert.Equal(t, entryCountBefore, countActivity(t, store), "no audit entry on failure")
}

func TestRecordTransaction_SellDecreasesStock(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store, "B2", 8, "2.50")

	committed, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 3, "2.50"))
	require.NoError(t, err)
	assert.Equal(t, -3, committed.Delta)
	assertDecimal(t, "7.50", committed.TotalAmount)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Quantity)
}

func TestRecordTransaction_SellToExactlyZero(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store, "B3", 4, "1.00")

	_, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 4, "1.00"))
	require.NoError(t, err)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Quantity, "selling down to zero is allowed")
}

func TestRecordTransaction_AdjustmentUsesSignedDelta(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "C3", 10, "1.00")

	up := service.TransactionIntent{
		ProductID:    product.ID,
		Type:         model.TxAdjustment,
		Delta:        4,
		PricePerUnit: decimal.Zero,
	}
	committed, err := svc.RecordTransaction(ctx, up)
	require.NoError(t, err)
	assert.Equal(t, 4, committed.Quantity, "quantity stored as |delta|")
	assert.Equal(t, 4, committed.Delta)

	down := service.TransactionIntent{
		ProductID:    product.ID,
		Type:         model.TxAdjustment,
		Delta:        -6,
		PricePerUnit: decimal.Zero,
	}
	committed, err = svc.RecordTransaction(ctx, down)
	require.NoError(t, err)
	assert.Equal(t, 6, committed.Quantity)
	assert.Equal(t, -6, committed.Delta)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.Quantity)

	// A downward correction below zero is still rejected.
	tooFar := service.TransactionIntent{
		ProductID:    product.ID,
		Type:         model.TxAdjustment,
		Delta:        -9,
		PricePerUnit: decimal.Zero,
	}
	_, err = svc.RecordTransaction(ctx, tooFar)
	var stockErr *service.InsufficientStockError
	assert.ErrorAs(t, err, &stockErr)
}

func TestRecordTransaction_TotalAmountRounding(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store, "D4", 100, "1.00")

	// 3 x 1.335 = 4.005, rounds half-up to 4.01.
	committed, err := svc.RecordTransaction(context.Background(), buyIntent(product.ID, 3, "1.335"))
	require.NoError(t, err)
	assertDecimal(t, "4.01", committed.TotalAmount)
}

// =============================================================================
// RECORD: VALIDATION (fail fast, zero side effects)
// =============================================================================

func TestRecordTransaction_Validation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "E5", 10, "1.00")

	cases := []struct {
		name   string
		intent service.TransactionIntent
	}{
		{"zero quantity", buyIntent(product.ID, 0, "1.00")},
		{"negative quantity", sellIntent(product.ID, -2, "1.00")},
		{"negative price", buyIntent(product.ID, 1, "-0.01")},
		{"missing product id", buyIntent(uuid.Nil, 1, "1.00")},
		{"unknown type", service.TransactionIntent{ProductID: product.ID, Type: "refund", Quantity: 1}},
		{"adjustment without delta", service.TransactionIntent{ProductID: product.ID, Type: model.TxAdjustment}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordTransaction(ctx, tc.intent)
			var vErr *service.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}

	assert.Equal(t, 0, countTransactions(t, store), "validation failures must not write")
	assert.Equal(t, 0, countActivity(t, store))
}

func TestRecordTransaction_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordTransaction(context.Background(), buyIntent(uuid.New(), 1, "1.00"))
	var nfErr *service.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "product", nfErr.Entity)
}

// =============================================================================
// RECORD: AUDIT PAIRING
// =============================================================================

func TestRecordTransaction_AuditPairing(t *testing.T) {
	// Every committed transaction leaves exactly one (transactions,
	// INSERT) and one (products, UPDATE) entry, and the UPDATE's new
	// quantity matches the post-commit stock.
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "F6", 10, "2.00")

	for _, quantity := range []int{2, 3, 1} {
		_, err := svc.RecordTransaction(ctx, sellIntent(product.ID, quantity, "2.00"))
		require.NoError(t, err)
	}

	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)

	var inserts, updates int
	for _, entry := range entries {
		switch {
		case entry.EntityType == model.EntityTransactions && entry.Action == model.ActionInsert:
			inserts++
		case entry.EntityType == model.EntityProducts && entry.Action == model.ActionUpdate:
			updates++
		}
	}
	assert.Equal(t, 3, inserts)
	assert.Equal(t, 3, updates)

	// Newest product UPDATE reflects the final stock level.
	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.EntityType == model.EntityProducts && entry.Action == model.ActionUpdate {
			assert.EqualValues(t, reloaded.Quantity, entry.Details.New["quantity"])
			break
		}
	}
}

// =============================================================================
// RECORD: CONCURRENCY & CONFLICTS
// =============================================================================

func TestRecordTransaction_ConcurrentSells_NoLostUpdates(t *testing.T) {
	svc, store := newTestService(t)
	product := seedProduct(t, store, "G7", 100, "1.00")

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 5, "1.00"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.Quantity, "100 - 10*5, nothing lost")
	assert.Equal(t, workers, countTransactions(t, store))
}

func TestRecordTransaction_ConcurrentSells_InsufficientCombined(t *testing.T) {
	// Stock 10, five concurrent sells of 3: exactly three can commit
	// (leaving 1); the other two are rejected and change nothing.
	svc, store := newTestService(t)
	product := seedProduct(t, store, "H8", 10, "1.00")

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 3, "1.00"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var committed, rejected int
	for err := range results {
		if err == nil {
			committed++
			continue
		}
		var stockErr *service.InsufficientStockError
		assert.ErrorAs(t, err, &stockErr)
		rejected++
	}
	assert.Equal(t, 3, committed)
	assert.Equal(t, 2, rejected)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Quantity)
}

func TestRecordTransaction_RetriesStaleQuantity(t *testing.T) {
	store := memory.NewStore()
	flaky := &flakyStore{Store: store, remaining: 2}
	svc := service.NewInventoryService(flaky, nil)
	product := seedProduct(t, store, "I9", 10, "1.00")

	committed, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 4, "1.00"))
	require.NoError(t, err, "two stale reads are absorbed by the retry loop")
	assert.NotNil(t, committed)

	reloaded, err := store.Products().FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.Quantity)

	// Rolled-back attempts leave no audit residue: one pair only.
	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecordTransaction_ConflictAfterExhaustedRetries(t *testing.T) {
	store := memory.NewStore()
	flaky := &flakyStore{Store: store, remaining: 100}
	svc := service.NewInventoryService(flaky, nil)
	product := seedProduct(t, store, "J10", 10, "1.00")

	_, err := svc.RecordTransaction(context.Background(), sellIntent(product.ID, 4, "1.00"))
	var conflictErr *service.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	reloaded, lookupErr := store.Products().FindByID(product.ID)
	require.NoError(t, lookupErr)
	assert.Equal(t, 10, reloaded.Quantity, "exhausted retries leave no partial state")
	assert.Equal(t, 0, countTransactions(t, store))
	assert.Equal(t, 0, countActivity(t, store))
}

// =============================================================================
// LISTS
// =============================================================================

func TestListTransactions_FilterAndOrdering(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	first := seedProduct(t, store, "K11", 50, "1.00")
	second := seedProduct(t, store, "L12", 50, "1.00")

	_, err := svc.RecordTransaction(ctx, buyIntent(first.ID, 1, "1.00"))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, sellIntent(first.ID, 2, "1.00"))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, buyIntent(second.ID, 3, "1.00"))
	require.NoError(t, err)

	all, err := svc.ListTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].Quantity, "newest first")
	assert.Equal(t, 1, all[2].Quantity)

	byProduct, err := svc.ListTransactions(ctx, repository.TransactionFilter{ProductID: &first.ID})
	require.NoError(t, err)
	assert.Len(t, byProduct, 2)

	sell := model.TxSell
	byType, err := svc.ListTransactions(ctx, repository.TransactionFilter{Type: &sell})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, first.ID, byType[0].ProductID)

	// Reads are idempotent: same call, same sequence.
	again, err := svc.ListTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, again, len(all))
	for i := range all {
		assert.Equal(t, all[i].ID, again[i].ID)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func countTransactions(t *testing.T, store *memory.Store) int {
	t.Helper()
	transactions, err := store.Transactions().FindAll(repository.TransactionFilter{})
	require.NoError(t, err)
	return len(transactions)
}

func countActivity(t *testing.T, store *memory.Store) int {
	t.Helper()
	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)
	return len(entries)
}

// flakyStore simulates reconciliations losing the quantity race: the
// first `remaining` guarded writes report a stale read.
type flakyStore struct {
	repository.Store
	mu        sync.Mutex
	remaining int
}

func (s *flakyStore) Atomically(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.Atomically(ctx, func(tx repository.Store) error {
		return fn(&flakyTx{Store: tx, parent: s})
	})
}

type flakyTx struct {
	repository.Store
	parent *flakyStore
}

func (t *flakyTx) Products() repository.ProductRepository {
	return &flakyProducts{ProductRepository: t.Store.Products(), parent: t.parent}
}

type flakyProducts struct {
	repository.ProductRepository
	parent *flakyStore
}

func (p *flakyProducts) UpdateQuantity(id uuid.UUID, expected, next int, updatedBy *string) (bool, error) {
	p.parent.mu.Lock()
	steal := p.parent.remaining > 0
	if steal {
		p.parent.remaining--
	}
	p.parent.mu.Unlock()
	if steal {
		return false, nil
	}
	return p.ProductRepository.UpdateQuantity(id, expected, next, updatedBy)
}
