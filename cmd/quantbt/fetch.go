package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quantbt/internal/config"
	"quantbt/internal/repository"
	"quantbt/internal/source"
	"quantbt/types"
)

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch candles from the vendor API into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := repository.NewDatabase(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			client := source.NewClient(source.ClientOptions{
				BaseURL:        cfg.Oanda.BaseURL,
				Token:          cfg.Oanda.Token,
				RequestTimeout: time.Duration(cfg.Oanda.TimeoutSec) * time.Second,
				RequestsPerSec: cfg.Oanda.RequestsPerSec,
				MaxRetries:     cfg.Oanda.MaxRetries,
			})

			for _, inst := range cfg.Backtest.Instruments {
				start, end, err := inst.TimeRange()
				if err != nil {
					return err
				}

				assetId, err := db.UpsertAsset(ctx, inst.Ticker, inst.Ticker, types.AssetTypeForex)
				if err != nil {
					return err
				}

				// Always store minute candles; reads aggregate to coarser
				// intervals on the fly.
				candles, err := client.GetCandles(ctx, inst.Ticker, types.OneMinute, start, end)
				if err != nil {
					return err
				}

				inserted, err := db.InsertCandles(ctx, assetId, candles)
				if err != nil {
					return err
				}

				log.Info().
					Str("ticker", inst.Ticker).
					Int("fetched", len(candles)).
					Int64("inserted", inserted).
					Msg("stored candles")
			}
			return nil
		},
	}
}
