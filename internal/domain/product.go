package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Active      bool
	CreatedAt   time.Time
}
