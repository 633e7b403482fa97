package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var _ CatalogRepository = (*CatalogRepo)(nil)

type CatalogRepo struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) ModelExists(ctx context.Context, modelID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM models WHERE id = ?)`, modelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check model: %w", err)
	}
	return exists, nil
}

// FindModelID looks a model up by brand and name, ignoring ASCII case and
// surrounding whitespace.
func (r *CatalogRepo) FindModelID(ctx context.Context, brand, model string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM models
		WHERE lower(brand) = lower(?) AND lower(name) = lower(?)
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(brand), strings.TrimSpace(model)).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find model: %w", err)
	}

	return id, true, nil
}
