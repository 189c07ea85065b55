package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"quantbt/types"
)

// FeeModel computes the commission for a given trade value.
type FeeModel func(tradeValue decimal.Decimal) decimal.Decimal

// NoFee charges nothing.
func NoFee() FeeModel {
	return func(decimal.Decimal) decimal.Decimal { return decimal.Zero }
}

// PercentFee charges rate * trade value, clamped to [min, max]. A zero max
// means no cap.
func PercentFee(rate, min, max decimal.Decimal) FeeModel {
	return func(tradeValue decimal.Decimal) decimal.Decimal {
		if tradeValue.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		fee := tradeValue.Mul(rate)
		if fee.LessThan(min) {
			fee = min
		}
		if !max.IsZero() && fee.GreaterThan(max) {
			fee = max
		}
		return fee
	}
}

// MarketBroker fills all orders at the open of the next available candle for
// that ticker. When useSpread is on, buys pay half the spread above the mid
// open and sells receive half the spread below it.
//
// - Buys: check remaining cash, reject if insufficient (price * qty + fee)
// - Sells: always allowed, proceeds added to remaining cash (minus fee)
// - Does NOT mutate the portfolio directly; engine applies reports.
type MarketBroker struct {
	useSpread bool
	fee       FeeModel
}

func NewMarketBroker(useSpread bool, fee FeeModel) *MarketBroker {
	if fee == nil {
		fee = NoFee()
	}
	return &MarketBroker{useSpread: useSpread, fee: fee}
}

func (b *MarketBroker) Execute(orders []types.Order, ctx types.ExecutionContext) []types.ExecutionReport {
	var execReports []types.ExecutionReport
	remainingCash := ctx.Portfolio.Cash

	for _, order := range orders {
		candles, ok := ctx.Candles[order.Ticker]
		if !ok || len(candles) == 0 {
			execReports = append(execReports, *rejectReport(order, "No market data for ticker", ctx.CurTime))
			continue
		}

		nextCandle := getNextCandle(ctx.CurTime, candles)
		if nextCandle == nil {
			// No candle strictly after CurTime -> cannot execute
			execReports = append(execReports, *rejectReport(order, "No future candle available for execution", ctx.CurTime))
			continue
		}

		if order.Quantity.LessThanOrEqual(decimal.Zero) {
			execReports = append(execReports, *rejectReport(order, "Non-positive order quantity", ctx.CurTime))
			continue
		}

		fillPrice := nextCandle.Open
		slippage := decimal.Zero
		if b.useSpread {
			halfSpread := nextCandle.Spread.Div(two)
			if order.Side == types.SideTypeBuy {
				fillPrice = fillPrice.Add(halfSpread) // ask
			} else {
				fillPrice = fillPrice.Sub(halfSpread) // bid
			}
			slippage = halfSpread
		}
		fillTime := nextCandle.Timestamp
		tradeValue := fillPrice.Mul(order.Quantity)
		fee := b.fee(tradeValue)

		switch order.Side {
		case types.SideTypeBuy:
			totalCost := tradeValue.Add(fee)
			if totalCost.GreaterThan(remainingCash) {
				execReports = append(execReports, *rejectReport(order, "Not enough cash available for buy", ctx.CurTime))
				continue
			}
			remainingCash = remainingCash.Sub(totalCost)

		case types.SideTypeSell:
			remainingCash = remainingCash.Add(tradeValue).Sub(fee)

		default:
			execReports = append(execReports, *rejectReport(order, "Unknown order side", ctx.CurTime))
			continue
		}

		fill := types.NewFill(fillTime, fillPrice, order.Quantity, fee)
		report := *types.NewExecutionReport(
			order.Ticker,
			order.Side,
			types.OrderFilled,
			[]types.Fill{fill},
			order.Quantity,
			fillPrice,
			fee,
			slippage,
			"",
			order.SignalReason,
			fillTime,
		)
		execReports = append(execReports, report)
	}

	return execReports
}

var two = decimal.NewFromInt(2)

func rejectReport(order types.Order, reason string, curTime time.Time) *types.ExecutionReport {
	return types.NewExecutionReport(
		order.Ticker,
		order.Side,
		types.OrderRejected,
		[]types.Fill{},
		decimal.Zero,
		decimal.Zero,
		decimal.Zero,
		decimal.Zero,
		reason,
		order.SignalReason,
		curTime,
	)
}

// getNextCandle returns the first candle with Timestamp strictly AFTER curTime.
func getNextCandle(curTime time.Time, candles []types.Candle) *types.Candle {
	for i := range candles {
		if candles[i].Timestamp.After(curTime) {
			return &candles[i]
		}
	}
	return nil
}
