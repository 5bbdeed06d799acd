package service

import (
	"fmt"
	"strings"

	"go-inventory-ledger/internal/model"
)

// Describe turns an audit entry into the activity-feed sentence. Pure
// and deterministic: no I/O, no state, dispatch on (entity type, action)
// only.
func Describe(entry model.ActivityLogEntry) string {
	entity := singular(entry.EntityType)

	switch entry.Action {
	case model.ActionInsert:
		switch entry.EntityType {
		case model.EntityProducts:
			if name, sku := detailString(entry.Details.Created, "name"), detailString(entry.Details.Created, "sku"); name != "" {
				return fmt.Sprintf("Created product: %s (%s)", name, sku)
			}
		case model.EntityTransactions:
			if txType := detailString(entry.Details.Created, "type"); txType != "" {
				return fmt.Sprintf("Recorded %s transaction", txType)
			}
		}
		return fmt.Sprintf("Created %s", entity)

	case model.ActionUpdate:
		if name := detailString(entry.Details.New, "name"); name != "" {
			return fmt.Sprintf("Updated product: %s", name)
		}
		return fmt.Sprintf("Updated %s", entity)

	case model.ActionDelete:
		if name := detailString(entry.Details.Deleted, "name"); name != "" {
			return fmt.Sprintf("Deleted product: %s", name)
		}
		return fmt.Sprintf("Deleted %s", entity)
	}

	return fmt.Sprintf("%s on %s", entry.Action, entity)
}

// singular turns the entity table name into the word the feed uses:
// products -> product, transactions -> transaction.
func singular(t model.EntityType) string {
	return strings.TrimSuffix(string(t), "s")
}

func detailString(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	if v, ok := fields[key].(string); ok {
		return v
	}
	if s, ok := fields[key].(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}
