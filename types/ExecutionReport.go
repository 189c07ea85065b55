package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionReport is the broker's answer to a single order. A rejected order
// carries no fills and a RejectReason.
type ExecutionReport struct {
	Ticker         string
	Side           Side
	Status         OrderStatus
	Fills          []Fill
	TotalFilledQty decimal.Decimal
	AvgFillPrice   decimal.Decimal
	TotalFees      decimal.Decimal
	Slippage       decimal.Decimal
	RejectReason   string
	SignalReason   string
	ReportTime     time.Time
}

type Fill struct {
	Time     time.Time
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
}

func NewFill(time time.Time, price, qty, fee decimal.Decimal) Fill {
	return Fill{
		Time:     time,
		Price:    price,
		Quantity: qty,
		Fee:      fee,
	}
}

func NewExecutionReport(
	ticker string,
	side Side,
	status OrderStatus,
	fills []Fill,
	totalFilledQty decimal.Decimal,
	avgFillPrice decimal.Decimal,
	totalFees decimal.Decimal,
	slippage decimal.Decimal,
	rejectReason string,
	signalReason string,
	reportTime time.Time,
) *ExecutionReport {
	return &ExecutionReport{
		Ticker:         ticker,
		Side:           side,
		Status:         status,
		Fills:          fills,
		TotalFilledQty: totalFilledQty,
		AvgFillPrice:   avgFillPrice,
		TotalFees:      totalFees,
		Slippage:       slippage,
		RejectReason:   rejectReason,
		SignalReason:   signalReason,
		ReportTime:     reportTime,
	}
}
