// Package chart renders backtest results as a self-contained HTML page:
// a kline chart with indicator overlays and trade markers, plus the daily
// equity curve.
package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"quantbt/internal/indicator"
	"quantbt/types"
)

var NoCandlesErr = errors.New("chart: no candles to render")

const (
	colorBull   = "#34d399"
	colorBear   = "#f87171"
	colorBuy    = "#3b82f6"
	colorSell   = "#fb7185"
	colorBand   = "#a78bfa"
	colorEquity = "#22d3ee"

	chartWidth  = "1400px"
	chartHeight = "600px"
)

var smaColors = []string{"#3b82f6", "#fbbf24", "#f472b6"}

// Config selects which overlays are drawn on the kline chart.
type Config struct {
	Title           string
	SMAPeriods      []int
	BollingerPeriod int
	BollingerStdDev float64
}

// RenderFile writes the chart page to the given path.
func RenderFile(path string, data types.Chart, snapshots []types.PortfolioView, executions []types.ExecutionReport, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	return Render(f, data, snapshots, executions, cfg)
}

// Render writes the chart page to any io.Writer.
func Render(w io.Writer, data types.Chart, snapshots []types.PortfolioView, executions []types.ExecutionReport, cfg Config) error {
	if len(data.Candles) == 0 {
		return NoCandlesErr
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildKline(data, executions, cfg))
	if len(snapshots) > 0 {
		page.AddCharts(buildEquityCurve(snapshots))
	}

	return page.Render(w)
}

func buildKline(data types.Chart, executions []types.ExecutionReport, cfg Config) *charts.Kline {
	title := cfg.Title
	if title == "" {
		title = data.Ticker
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%s %s", data.Ticker, string(data.Interval)),
			Left:     "left",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	xAxis := buildXAxis(data.Candles)
	klineData := make([]opts.KlineData, len(data.Candles))
	for i, c := range data.Candles {
		klineData[i] = opts.KlineData{Value: [4]float64{
			c.Open.InexactFloat64(),
			c.Close.InexactFloat64(),
			c.Low.InexactFloat64(),
			c.High.InexactFloat64(),
		}}
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", klineData)

	closes := indicator.Closes(data.Candles)

	if len(cfg.SMAPeriods) > 0 {
		line := charts.NewLine()
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		line.SetXAxis(xAxis)
		for i, period := range cfg.SMAPeriods {
			color := smaColors[i%len(smaColors)]
			line.AddSeries(
				fmt.Sprintf("SMA(%d)", period),
				toLineData(indicator.SMA(closes, period), period-1),
				charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}),
			)
		}
		kline.Overlap(line)
	}

	if cfg.BollingerPeriod > 0 {
		upper, middle, lower := indicator.BollingerBands(closes, cfg.BollingerPeriod, cfg.BollingerStdDev)
		warmup := cfg.BollingerPeriod - 1

		bands := charts.NewLine()
		bands.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		bands.SetXAxis(xAxis)
		bands.AddSeries("BB Upper", toLineData(upper, warmup), charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1}))
		bands.AddSeries("BB Middle", toLineData(middle, warmup), charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1, Type: "dashed"}))
		bands.AddSeries("BB Lower", toLineData(lower, warmup), charts.WithLineStyleOpts(opts.LineStyle{Color: colorBand, Width: 1}))
		kline.Overlap(bands)
	}

	if markers := buildTradeMarkers(data.Candles, executions); markers != nil {
		markers.SetXAxis(xAxis)
		kline.Overlap(markers)
	}

	return kline
}

// buildTradeMarkers overlays filled executions as scatter points at their
// fill price, aligned to the candle open at or before the fill time.
func buildTradeMarkers(candles []types.Candle, executions []types.ExecutionReport) *charts.Scatter {
	buys := make([]opts.ScatterData, len(candles))
	sells := make([]opts.ScatterData, len(candles))
	haveBuys, haveSells := false, false

	for _, exec := range executions {
		if exec.Status != types.OrderFilled || len(exec.Fills) == 0 {
			continue
		}
		idx := candleIndexAt(candles, exec.Fills[0].Time)
		if idx < 0 {
			continue
		}
		point := opts.ScatterData{
			Value:      exec.AvgFillPrice.InexactFloat64(),
			SymbolSize: 14,
		}
		if exec.Side == types.SideTypeBuy {
			point.Symbol = "triangle"
			buys[idx] = point
			haveBuys = true
		} else {
			point.Symbol = "pin"
			sells[idx] = point
			haveSells = true
		}
	}

	if !haveBuys && !haveSells {
		return nil
	}

	scatter := charts.NewScatter()
	if haveBuys {
		scatter.AddSeries("Buys", buys, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuy}))
	}
	if haveSells {
		scatter.AddSeries("Sells", sells, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorSell}))
	}
	return scatter
}

func buildEquityCurve(snapshots []types.PortfolioView) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: "360px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Equity Curve", Left: "left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	x := make([]string, len(snapshots))
	values := make([]opts.LineData, len(snapshots))
	for i, snap := range snapshots {
		x[i] = snap.Time.Format("2006-01-02")
		values[i] = opts.LineData{Value: snap.Value().InexactFloat64()}
	}

	line.SetXAxis(x)
	line.AddSeries("Equity", values,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func buildXAxis(candles []types.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = c.Timestamp.UTC().Format("01-02 15:04")
	}
	return x
}

// toLineData blanks the first warmup values so indicator warmup zeros do not
// drag the series to the price axis floor.
func toLineData(series []float64, warmup int) []opts.LineData {
	data := make([]opts.LineData, len(series))
	for i, v := range series {
		if i < warmup || v == 0 {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: v}
	}
	return data
}

// candleIndexAt returns the index of the last candle opening at or before t,
// or -1 when t precedes the series.
func candleIndexAt(candles []types.Candle, t time.Time) int {
	idx := -1
	for i := range candles {
		if candles[i].Timestamp.After(t) {
			break
		}
		idx = i
	}
	return idx
}
