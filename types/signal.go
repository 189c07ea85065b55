package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Signal struct {
	Ticker    string
	Side      Side
	Price     decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

func NewSignal(
	ticker string,
	side Side,
	price decimal.Decimal,
	reason string,
	createdAt time.Time,
) Signal {
	return Signal{
		Ticker:    ticker,
		Side:      side,
		Price:     price,
		Reason:    reason,
		CreatedAt: createdAt,
	}
}
