package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Save upserts the relocated asset row. Relocation uses deterministic
// storage keys, so a duplicate relocation of the same task updates in
// place rather than accumulating rows.
func (r *AssetRepositoryPG) Save(ctx context.Context, asset *domain.GeneratedAsset) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO generated_assets (id, task_id, merchant_id, storage_key, mime, bytes, duration_seconds, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (task_id) DO UPDATE
SET storage_key = EXCLUDED.storage_key,
    mime = EXCLUDED.mime,
    bytes = EXCLUDED.bytes,
    duration_seconds = EXCLUDED.duration_seconds,
    expires_at = EXCLUDED.expires_at;
`, asset.ID, asset.TaskID, asset.MerchantID, asset.StorageKey, asset.MIME,
		asset.Bytes, asset.DurationSeconds, asset.ExpiresAt, asset.CreatedAt)
	return err
}

// GetForMerchant fetches an asset scoped to its owning merchant.
func (r *AssetRepositoryPG) GetForMerchant(ctx context.Context, id, merchantID string) (*domain.GeneratedAsset, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, task_id, merchant_id, storage_key, mime, bytes, duration_seconds, expires_at, created_at
FROM generated_assets
WHERE id = $1 AND merchant_id = $2;
`, id, merchantID)
	var asset domain.GeneratedAsset
	if err := row.Scan(&asset.ID, &asset.TaskID, &asset.MerchantID, &asset.StorageKey,
		&asset.MIME, &asset.Bytes, &asset.DurationSeconds, &asset.ExpiresAt, &asset.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// ListByMerchant returns the merchant's assets, newest first.
func (r *AssetRepositoryPG) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]domain.GeneratedAsset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, task_id, merchant_id, storage_key, mime, bytes, duration_seconds, expires_at, created_at
FROM generated_assets
WHERE merchant_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, merchantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.GeneratedAsset
	for rows.Next() {
		var asset domain.GeneratedAsset
		if err := rows.Scan(&asset.ID, &asset.TaskID, &asset.MerchantID, &asset.StorageKey,
			&asset.MIME, &asset.Bytes, &asset.DurationSeconds, &asset.ExpiresAt, &asset.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
