package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"quantbt/types"
)

// GetAssetByTicker retrieves a types.Asset by its ticker.
func (db *Database) GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error) {
	asset, err := db.assets.GetAssetByTicker(ctx, ticker)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticker %s %w", ticker, ErrAssetNotFound)
		}
		return nil, err
	}
	return &types.Asset{
		Id:         int(asset.ID),
		Ticker:     asset.Ticker,
		Name:       asset.Name,
		Type:       types.AssetType(asset.Type),
		CreatedAt:  *asset.CreatedAt,
		ModifiedAt: *asset.ModifiedAt,
	}, nil
}

// UpsertAsset creates or refreshes an asset row and returns its id.
func (db *Database) UpsertAsset(ctx context.Context, ticker, name string, assetType types.AssetType) (int, error) {
	id, err := db.assets.UpsertAsset(ctx, assetRow{
		Ticker: ticker,
		Name:   name,
		Type:   string(assetType),
	})
	if err != nil {
		return 0, err
	}
	return int(id), nil
}
