package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"
)

func TestCreateProduct_WritesInsertAudit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	product := &model.Product{
		SKU:      "NEW-1",
		Name:     "Fresh Widget",
		Price:    decimal.RequireFromString("9.99"),
		Quantity: 5,
	}
	require.NoError(t, svc.CreateProduct(ctx, product, "user-1"))

	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntityProducts, entries[0].EntityType)
	assert.Equal(t, model.ActionInsert, entries[0].Action)
	assert.Equal(t, product.ID, entries[0].EntityID)
	assert.Equal(t, "Fresh Widget", entries[0].Details.Created["name"])
	assert.Equal(t, "Created product: Fresh Widget (NEW-1)", service.Describe(entries[0]))
}

func TestCreateProduct_RejectsDuplicateSKU(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedProduct(t, store, "DUP-1", 1, "1.00")

	err := svc.CreateProduct(ctx, &model.Product{SKU: "DUP-1", Name: "Copy"}, "user-1")
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "sku", vErr.Field)
}

func TestCreateProduct_RejectsBadInput(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	var vErr *service.ValidationError
	err := svc.CreateProduct(ctx, &model.Product{Name: "No SKU"}, "user-1")
	assert.ErrorAs(t, err, &vErr)

	err = svc.CreateProduct(ctx, &model.Product{
		SKU: "NEG-1", Name: "Negative", Price: decimal.RequireFromString("-1"),
	}, "user-1")
	assert.ErrorAs(t, err, &vErr)

	err = svc.CreateProduct(ctx, &model.Product{
		SKU: "NEG-2", Name: "Negative stock", Quantity: -3,
	}, "user-1")
	assert.ErrorAs(t, err, &vErr)

	assert.Equal(t, 0, countActivity(t, store), "rejected creates leave no audit rows")
}

func TestUpdateProduct_AuditsChangedFieldsOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "UPD-1", 7, "3.00")

	updated, err := svc.UpdateProduct(ctx, product.ID, service.ProductUpdate{
		Name:  "Renamed",
		Price: decimal.RequireFromString("3.00"),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 7, updated.Quantity, "catalog update never touches quantity")

	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionUpdate, entries[0].Action)
	assert.Equal(t, "Product UPD-1", entries[0].Details.Old["name"])
	assert.Equal(t, "Renamed", entries[0].Details.New["name"])
	_, priceLogged := entries[0].Details.New["price"]
	assert.False(t, priceLogged, "unchanged price must not be in the diff")
}

func TestUpdateProduct_NoChangesNoAudit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "UPD-2", 7, "3.00")

	_, err := svc.UpdateProduct(ctx, product.ID, service.ProductUpdate{
		Name:  product.Name,
		Price: product.Price,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, countActivity(t, store))
}

func TestUpdateProduct_UnknownID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateProduct(context.Background(), uuid.New(), service.ProductUpdate{Name: "X"}, "user-1")
	var nfErr *service.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestDeleteProduct_AuditsSnapshot(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, store, "DEL-1", 2, "4.00")

	require.NoError(t, svc.DeleteProduct(ctx, product.ID, "user-1"))

	_, err := store.Products().FindByID(product.ID)
	assert.Error(t, err)

	entries, err := store.Activity().FindRecent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionDelete, entries[0].Action)
	assert.Equal(t, "Product DEL-1", entries[0].Details.Deleted["name"])
	assert.Equal(t, "Deleted product: Product DEL-1", service.Describe(entries[0]))
}
