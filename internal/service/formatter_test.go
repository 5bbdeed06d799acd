package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		name  string
		entry model.ActivityLogEntry
		want  string
	}{
		{
			name: "product created",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     model.ActionInsert,
				Details: model.CreatedDetails(map[string]interface{}{
					"name": "Widget", "sku": "W-1",
				}),
			},
			want: "Created product: Widget (W-1)",
		},
		{
			name: "transaction recorded",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityTransactions,
				Action:     model.ActionInsert,
				Details: model.CreatedDetails(map[string]interface{}{
					"type": "sell", "quantity": 3,
				}),
			},
			want: "Recorded sell transaction",
		},
		{
			name: "product renamed",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     model.ActionUpdate,
				Details: model.UpdatedDetails(
					map[string]interface{}{"name": "Widget"},
					map[string]interface{}{"name": "Gadget"},
				),
			},
			want: "Updated product: Gadget",
		},
		{
			name: "quantity-only update falls back to generic",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     model.ActionUpdate,
				Details: model.UpdatedDetails(
					map[string]interface{}{"quantity": 10},
					map[string]interface{}{"quantity": 15},
				),
			},
			want: "Updated product",
		},
		{
			name: "product deleted with snapshot",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     model.ActionDelete,
				Details: model.DeletedDetails(map[string]interface{}{
					"name": "Widget", "sku": "W-1",
				}),
			},
			want: "Deleted product: Widget",
		},
		{
			name: "delete without snapshot",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityTransactions,
				Action:     model.ActionDelete,
			},
			want: "Deleted transaction",
		},
		{
			name: "insert without details",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     model.ActionInsert,
			},
			want: "Created product",
		},
		{
			name: "unknown action",
			entry: model.ActivityLogEntry{
				EntityType: model.EntityProducts,
				Action:     "TRUNCATE",
			},
			want: "TRUNCATE on product",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, service.Describe(tc.entry))
			// Deterministic: same entry, same sentence.
			assert.Equal(t, tc.want, service.Describe(tc.entry))
		})
	}
}
