package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentFields maps attribute names to their stored JSON form: plain
// values for unclassified attributes, encrypted blobs for classified ones.
// It round-trips through a JSONB column.
type DocumentFields map[string]json.RawMessage

func (f DocumentFields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *DocumentFields) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	case nil:
		*f = DocumentFields{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into DocumentFields", src)
	}
}

// Document is the encrypted storage representation of a sensitive entity.
// It mirrors the plaintext shape; the identifier and unclassified fields
// stay plain.
type Document struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	EntityType EntityType     `json:"entity_type" db:"entity_type"`
	Fields     DocumentFields `json:"fields" db:"fields"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
