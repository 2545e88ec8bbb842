package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a flower-catalog entry. The order core treats the catalog as
// read-only: price and stock are consulted at order-creation time and never
// written back.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}
