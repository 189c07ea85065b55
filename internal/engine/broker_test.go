package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantbt/types"
)

func testCandle(ts time.Time, open, spread string) types.Candle {
	o := decimal.RequireFromString(open)
	return types.Candle{
		Ticker:    "EUR_USD",
		Open:      o,
		High:      o.Add(decimal.NewFromInt(1)),
		Low:       o.Sub(decimal.NewFromInt(1)),
		Close:     o,
		Spread:    decimal.RequireFromString(spread),
		Interval:  types.OneMinute,
		Timestamp: ts,
	}
}

func testOrder(side types.Side, qty string) types.Order {
	return types.NewOrder(
		"EUR_USD",
		decimal.RequireFromString("100"),
		decimal.RequireFromString(qty),
		types.TypeMarket,
		side,
		"test signal",
		time.UnixMilli(0),
	)
}

func execCtx(cash string, candles ...types.Candle) types.ExecutionContext {
	return types.ExecutionContext{
		Candles: map[string][]types.Candle{"EUR_USD": candles},
		Portfolio: types.PortfolioView{
			Cash:      decimal.RequireFromString(cash),
			Positions: map[string]types.PositionSnapshot{},
		},
		CurTime: time.UnixMilli(0),
	}
}

func TestMarketBrokerRejections(t *testing.T) {
	future := testCandle(time.UnixMilli(60_000), "100", "0.2")
	past := testCandle(time.UnixMilli(-60_000), "100", "0.2")

	tests := []struct {
		name       string
		order      types.Order
		ctx        types.ExecutionContext
		wantReason string
	}{
		{
			name:       "no market data",
			order:      testOrder(types.SideTypeBuy, "1"),
			ctx:        types.ExecutionContext{Candles: map[string][]types.Candle{}, CurTime: time.UnixMilli(0)},
			wantReason: "No market data for ticker",
		},
		{
			name:       "no future candle",
			order:      testOrder(types.SideTypeBuy, "1"),
			ctx:        execCtx("10000", past),
			wantReason: "No future candle available for execution",
		},
		{
			name:       "non-positive quantity",
			order:      testOrder(types.SideTypeBuy, "0"),
			ctx:        execCtx("10000", future),
			wantReason: "Non-positive order quantity",
		},
		{
			name:       "insufficient cash",
			order:      testOrder(types.SideTypeBuy, "200"),
			ctx:        execCtx("100", future),
			wantReason: "Not enough cash available for buy",
		},
	}

	broker := NewMarketBroker(false, NoFee())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := broker.Execute([]types.Order{tt.order}, tt.ctx)
			if len(reports) != 1 {
				t.Fatalf("expected 1 report, got %d", len(reports))
			}
			if reports[0].Status != types.OrderRejected {
				t.Errorf("status = %s, want rejected", reports[0].Status)
			}
			if reports[0].RejectReason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reports[0].RejectReason, tt.wantReason)
			}
		})
	}
}

func TestMarketBrokerSpreadFill(t *testing.T) {
	future := testCandle(time.UnixMilli(60_000), "100", "0.2")
	broker := NewMarketBroker(true, NoFee())

	t.Run("buy pays half spread above mid open", func(t *testing.T) {
		reports := broker.Execute([]types.Order{testOrder(types.SideTypeBuy, "10")}, execCtx("10000", future))
		if len(reports) != 1 || reports[0].Status != types.OrderFilled {
			t.Fatalf("expected filled report, got %+v", reports)
		}
		want := decimal.RequireFromString("100.1")
		if !reports[0].AvgFillPrice.Equal(want) {
			t.Errorf("fill price = %s, want %s", reports[0].AvgFillPrice, want)
		}
	})

	t.Run("sell receives half spread below mid open", func(t *testing.T) {
		reports := broker.Execute([]types.Order{testOrder(types.SideTypeSell, "10")}, execCtx("0", future))
		if len(reports) != 1 || reports[0].Status != types.OrderFilled {
			t.Fatalf("expected filled report, got %+v", reports)
		}
		want := decimal.RequireFromString("99.9")
		if !reports[0].AvgFillPrice.Equal(want) {
			t.Errorf("fill price = %s, want %s", reports[0].AvgFillPrice, want)
		}
	})
}

func TestMarketBrokerSequentialCashCheck(t *testing.T) {
	// Two buys against the same context: the second must see the cash left
	// by the first, not the starting balance.
	future := testCandle(time.UnixMilli(60_000), "100", "0")
	broker := NewMarketBroker(false, NoFee())

	orders := []types.Order{
		testOrder(types.SideTypeBuy, "80"),
		testOrder(types.SideTypeBuy, "80"),
	}
	reports := broker.Execute(orders, execCtx("10000", future))
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Status != types.OrderFilled {
		t.Errorf("first order status = %s, want filled", reports[0].Status)
	}
	if reports[1].Status != types.OrderRejected {
		t.Errorf("second order status = %s, want rejected", reports[1].Status)
	}
}

func TestPercentFee(t *testing.T) {
	fee := PercentFee(
		decimal.RequireFromString("0.0005"),
		decimal.RequireFromString("1.70"),
		decimal.RequireFromString("39"),
	)

	tests := []struct {
		name       string
		tradeValue string
		want       string
	}{
		{"below min clamps up", "1000", "1.70"},
		{"mid range", "10000", "5"},
		{"above max clamps down", "100000", "39"},
		{"zero value", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fee(decimal.RequireFromString(tt.tradeValue))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("fee(%s) = %s, want %s", tt.tradeValue, got, tt.want)
			}
		})
	}
}
