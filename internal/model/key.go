package model

import (
	"time"

	"github.com/google/uuid"
)

// DataKey is a wrapped data-encryption key at rest in the vault store.
// The plaintext key exists only inside the key vault client; WrappedKey is
// sealed by the master key. AltName is unique in the store, which is what
// makes concurrent first-time creation converge on one surviving key.
type DataKey struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AltName    string    `json:"alt_name" db:"alt_name"`
	WrappedKey []byte    `json:"-" db:"wrapped_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
