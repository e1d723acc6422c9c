package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const assetColumns = `identifier, name, mime_type, primary_category, media_type, language,
		       version_key, artifact_url, status, created_on, last_updated_on`

const defaultSearchLimit = 100

func scanAsset(row pgx.Row, asset *models.Asset) error {
	return row.Scan(
		&asset.Identifier, &asset.Name, &asset.MimeType, &asset.PrimaryCategory, &asset.MediaType,
		&asset.Language, &asset.VersionKey, &asset.ArtifactURL, &asset.Status,
		&asset.CreatedOn, &asset.LastUpdatedOn,
	)
}

// CreateAsset creates a new asset record
func (r *Repository) CreateAsset(ctx context.Context, asset *models.Asset) (err error) {
	defer r.track("create_asset", &err)()
	now := time.Now()

	if asset.Identifier == "" {
		asset.Identifier = NewIdentifier()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusDraft
	}
	if asset.Language == nil {
		asset.Language = []string{}
	}
	asset.VersionKey = NextVersionKey("", now)

	query := `
		INSERT INTO assets (identifier, name, mime_type, primary_category, media_type, language, version_key, artifact_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_on, last_updated_on
	`

	err = r.db.Pool.QueryRow(ctx, query,
		asset.Identifier, asset.Name, asset.MimeType, asset.PrimaryCategory, asset.MediaType,
		asset.Language, asset.VersionKey, asset.ArtifactURL, asset.Status,
	).Scan(&asset.CreatedOn, &asset.LastUpdatedOn)

	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetAsset retrieves an asset by identifier
func (r *Repository) GetAsset(ctx context.Context, id string) (_ *models.Asset, err error) {
	defer r.track("get_asset", &err)()

	var asset models.Asset
	query := `SELECT ` + assetColumns + ` FROM assets WHERE identifier = $1`

	err = scanAsset(r.db.Pool.QueryRow(ctx, query, id), &asset)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &asset, nil
}

// UpdateAsset overwrites the writable fields of an asset when fields.VersionKey
// matches the stored version key, and issues a new version key.
func (r *Repository) UpdateAsset(ctx context.Context, id string, fields models.AssetFields) (_ *models.Asset, err error) {
	defer r.track("update_asset", &err)()
	now := time.Now()

	query := `
		UPDATE assets
		SET name = $3, mime_type = $4, primary_category = $5, media_type = $6, language = $7,
		    version_key = $8, last_updated_on = CURRENT_TIMESTAMP
		WHERE identifier = $1 AND version_key = $2
		RETURNING ` + assetColumns

	var asset models.Asset
	err = scanAsset(r.db.Pool.QueryRow(ctx, query,
		id, fields.VersionKey, fields.Name, fields.MimeType, fields.PrimaryCategory, fields.MediaType,
		fields.Language, NextVersionKey(fields.VersionKey, now),
	), &asset)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrStale(ctx, "assets", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}

	return &asset, nil
}

// FinalizeAsset records the durable file URL of an uploaded asset and marks it Live
func (r *Repository) FinalizeAsset(ctx context.Context, id, artifactURL, mimeType string) (_ *models.Asset, err error) {
	defer r.track("finalize_asset", &err)()
	now := time.Now()

	query := `
		UPDATE assets
		SET artifact_url = $2, mime_type = COALESCE(NULLIF($3, ''), mime_type), status = $4,
		    version_key = GREATEST(version_key::bigint + 1, $5::bigint)::text,
		    last_updated_on = CURRENT_TIMESTAMP
		WHERE identifier = $1
		RETURNING ` + assetColumns

	var asset models.Asset
	err = scanAsset(r.db.Pool.QueryRow(ctx, query,
		id, artifactURL, mimeType, models.AssetStatusLive, now.UnixMilli(),
	), &asset)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize asset: %w", err)
	}

	return &asset, nil
}

// SearchAssets lists assets matching the filters. An empty status list matches any status.
func (r *Repository) SearchAssets(ctx context.Context, filters models.SearchFilters, limit int) (_ []models.Asset, err error) {
	defer r.track("search_assets", &err)()

	query, args := buildSearchQuery(filters, limit)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		var asset models.Asset
		if err := scanAsset(rows, &asset); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	return assets, nil
}

func buildSearchQuery(filters models.SearchFilters, limit int) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if filters.PrimaryCategory != "" {
		args = append(args, filters.PrimaryCategory)
		conditions = append(conditions, fmt.Sprintf("primary_category = $%d", len(args)))
	}
	if len(filters.Status) > 0 {
		args = append(args, filters.Status)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filters.Identifier) > 0 {
		args = append(args, filters.Identifier)
		conditions = append(conditions, fmt.Sprintf("identifier = ANY($%d)", len(args)))
	}

	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}

	var b strings.Builder
	b.WriteString("SELECT " + assetColumns + " FROM assets")
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY last_updated_on DESC LIMIT $%d", len(args))

	return b.String(), args
}
