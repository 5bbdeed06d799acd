package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntityType string

const (
	EntityProducts     EntityType = "products"
	EntityTransactions EntityType = "transactions"
)

type AuditAction string

const (
	ActionInsert AuditAction = "INSERT"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

// ActivityDetails is the structured snapshot attached to an audit entry.
// Exactly one variant is populated:
//
//	INSERT -> Created (the created fields)
//	UPDATE -> Old/New (changed fields before and after)
//	DELETE -> Deleted (snapshot of the removed entity)
//
// The stored JSON keeps the flat shape for INSERT/DELETE and the
// {"old": ..., "new": ...} pair for UPDATE.
type ActivityDetails struct {
	Created map[string]interface{} `json:"-"`
	Old     map[string]interface{} `json:"-"`
	New     map[string]interface{} `json:"-"`
	Deleted map[string]interface{} `json:"-"`
}

func CreatedDetails(fields map[string]interface{}) ActivityDetails {
	return ActivityDetails{Created: fields}
}

func UpdatedDetails(old, new map[string]interface{}) ActivityDetails {
	return ActivityDetails{Old: old, New: new}
}

func DeletedDetails(snapshot map[string]interface{}) ActivityDetails {
	return ActivityDetails{Deleted: snapshot}
}

type updatePayload struct {
	Old map[string]interface{} `json:"old"`
	New map[string]interface{} `json:"new"`
}

func (d ActivityDetails) MarshalJSON() ([]byte, error) {
	switch {
	case d.Old != nil || d.New != nil:
		return json.Marshal(updatePayload{Old: d.Old, New: d.New})
	case d.Created != nil:
		return json.Marshal(d.Created)
	case d.Deleted != nil:
		return json.Marshal(d.Deleted)
	}
	return []byte("{}"), nil
}

// UnmarshalJSON cannot tell a flat INSERT snapshot from a DELETE one on
// its own; the owning entry re-tags the variant in AfterFind.
func (d *ActivityDetails) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, hasOld := probe["old"]
	_, hasNew := probe["new"]
	if hasOld && hasNew && len(probe) == 2 {
		var p updatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*d = ActivityDetails{Old: p.Old, New: p.New}
		return nil
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*d = ActivityDetails{Created: flat}
	return nil
}

func (d ActivityDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *ActivityDetails) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ActivityDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("unsupported activity details type %T", value)
}

// ActivityLogEntry is one append-only audit row. Entries are written in
// the same unit of work as the mutation they describe and never change
// afterwards.
type ActivityLogEntry struct {
	BaseModel
	EntityType EntityType      `gorm:"type:varchar(20);not null;index" json:"entity_type"`
	EntityID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"entity_id"`
	Action     AuditAction     `gorm:"type:varchar(10);not null" json:"action"`
	Details    ActivityDetails `gorm:"type:jsonb" json:"details"`
	UserID     *string         `gorm:"type:varchar(255)" json:"user_id,omitempty"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_log"
}

// AfterFind re-tags a flat details snapshot as Deleted when the action
// says so; the JSON shape alone cannot tell INSERT from DELETE.
func (e *ActivityLogEntry) AfterFind(*gorm.DB) error {
	if e.Action == ActionDelete && e.Details.Created != nil {
		e.Details = ActivityDetails{Deleted: e.Details.Created}
	}
	return nil
}
