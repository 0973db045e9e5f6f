package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base holds the columns every mutable table carries.
type Base struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
