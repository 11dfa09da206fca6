package types

import "time"

// BaseModel carries the audit timestamps shared by all persisted domain models.
// Any changes to this model should be reflected in the database schema.
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GetDefaultBaseModel returns a base model stamped with the current time
func GetDefaultBaseModel() BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes the updated-at stamp; called on every mutating operation
func (m *BaseModel) Touch() {
	m.UpdatedAt = time.Now().UTC()
}
