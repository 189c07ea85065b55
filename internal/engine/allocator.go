package engine

import (
	"github.com/shopspring/decimal"

	"quantbt/types"
)

// FixedFractionAllocator sizes entries as a fixed fraction of available cash
// and closes the full position on an opposite signal. Long-only unless
// shorting is enabled.
type FixedFractionAllocator struct {
	api         PortfolioApi
	fraction    decimal.Decimal
	allowShorts bool
}

func NewFixedFractionAllocator(fraction decimal.Decimal, allowShorts bool) *FixedFractionAllocator {
	return &FixedFractionAllocator{
		fraction:    fraction,
		allowShorts: allowShorts,
	}
}

func (a *FixedFractionAllocator) Init(api PortfolioApi) error {
	a.api = api
	return nil
}

func (a *FixedFractionAllocator) Allocate(signals map[string][]types.Signal, view types.PortfolioView) []types.Order {
	if len(signals) == 0 {
		return nil
	}

	orders := make([]types.Order, 0)

	for ticker, signalPerTicker := range signals {
		curPos := view.Positions[ticker]

		// Skip tickers with 0 or more than 1 signal (double signal, etc.)
		if len(signalPerTicker) != 1 {
			continue
		}

		curSignal := signalPerTicker[0]

		// Case 1: flat
		if curPos.Quantity.IsZero() {
			if curSignal.Side != types.SideTypeBuy && !a.allowShorts {
				continue
			}

			cashForSignal := view.Cash.Mul(a.fraction)
			qty := getQuantityForPrice(curSignal.Price, cashForSignal)
			if qty.IsZero() {
				continue
			}

			orders = append(orders, types.NewOrder(
				ticker, curSignal.Price, qty,
				types.TypeMarket, curSignal.Side,
				"Opening position: "+curSignal.Reason,
				curSignal.CreatedAt,
			))
			continue
		}

		// Case 2: existing long
		if curPos.Quantity.IsPositive() {
			switch curSignal.Side {
			case types.SideTypeBuy:
				// same direction -> do nothing (no pyramiding here)
				continue
			case types.SideTypeSell:
				orders = append(orders, types.NewOrder(
					ticker, curSignal.Price, curPos.Quantity,
					types.TypeMarket, types.SideTypeSell,
					"Closing long: "+curSignal.Reason,
					curSignal.CreatedAt,
				))
			}
			continue
		}

		// Case 3: existing short
		if curPos.Quantity.IsNegative() {
			switch curSignal.Side {
			case types.SideTypeSell:
				continue
			case types.SideTypeBuy:
				orders = append(orders, types.NewOrder(
					ticker, curSignal.Price, curPos.Quantity.Abs(),
					types.TypeMarket, types.SideTypeBuy,
					"Closing short: "+curSignal.Reason,
					curSignal.CreatedAt,
				))
			}
			continue
		}
	}

	return orders
}

func getQuantityForPrice(price, capitalToUse decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return capitalToUse.Div(price).Floor()
}
