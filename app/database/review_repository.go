package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const integrityPageSize = 500

var _ ReviewRepository = (*ReviewRepo)(nil)

type ReviewRepo struct {
	db *DB
}

func NewReviewRepository(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// ComputeHash returns the hex SHA-256 of source, url, year, positive and
// negative concatenated in that order. An absent point is passed as "".
func ComputeHash(source, url string, year int, positive, negative string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte(url))
	h.Write([]byte(strconv.Itoa(year)))
	h.Write([]byte(positive))
	h.Write([]byte(negative))
	return hex.EncodeToString(h.Sum(nil))
}

// ExpandBundles turns bundles into one row per point, truncating fields to
// their column limits before hashing. Rows keep bundle order, positives first.
func ExpandBundles(bundles []ReviewBundle, modelID int64) ([]Review, error) {
	var rows []Review

	for _, b := range bundles {
		if b.Year < MinYear || b.Year > MaxYear {
			return nil, fmt.Errorf("%w: year %d outside [%d, %d]", ErrInvalidArgument, b.Year, MinYear, MaxYear)
		}

		source := truncate(b.Source, MaxSourceLength)
		url := truncate(b.URL, MaxURLLength)
		collected := b.DateCollected
		if collected.IsZero() {
			collected = time.Now()
		}
		collected = collected.UTC()

		for _, point := range b.Positives {
			if strings.TrimSpace(point) == "" {
				continue
			}
			p := truncate(point, MaxPointLength)
			rows = append(rows, Review{
				ModelID:       modelID,
				Source:        source,
				URL:           url,
				Year:          b.Year,
				PositivePoint: &p,
				DateCollected: collected,
				ContentHash:   ComputeHash(source, url, b.Year, p, ""),
			})
		}

		for _, point := range b.Negatives {
			if strings.TrimSpace(point) == "" {
				continue
			}
			n := truncate(point, MaxPointLength)
			rows = append(rows, Review{
				ModelID:       modelID,
				Source:        source,
				URL:           url,
				Year:          b.Year,
				NegativePoint: &n,
				DateCollected: collected,
				ContentHash:   ComputeHash(source, url, b.Year, "", n),
			})
		}
	}

	return rows, nil
}

// Save stores every point of bundles for modelID in one transaction.
// Duplicates are skipped silently; the number of new rows is returned.
func (r *ReviewRepo) Save(ctx context.Context, bundles []ReviewBundle, modelID int64) (int, error) {
	rows, err := ExpandBundles(bundles, modelID)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM models WHERE id = ?)`, modelID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check model: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: model %d does not exist", ErrReferentialIntegrity, modelID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO reviews (
			model_id, source, url, year, positive_point, negative_point, date_collected, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, row.ModelID, row.Source, row.URL, row.Year,
			row.PositivePoint, row.NegativePoint, row.DateCollected.Format(time.RFC3339Nano), row.ContentHash)
		if err != nil {
			return 0, fmt.Errorf("failed to insert review: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reviews: %w", err)
	}

	slog.Debug("Reviews saved", "model_id", modelID, "rows", len(rows), "inserted", inserted)
	return inserted, nil
}

// VerifyIntegrity recomputes the hash of every stored row in id order and
// deletes the rows whose stored hash no longer matches.
func (r *ReviewRepo) VerifyIntegrity(ctx context.Context) (int, error) {
	var lastID int64
	purged := 0
	scanned := 0

	for {
		corrupt, n, nextID, err := r.scanPage(ctx, lastID)
		if err != nil {
			return purged, err
		}
		scanned += n

		for _, id := range corrupt {
			if _, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
				return purged, fmt.Errorf("failed to purge review %d: %w", id, err)
			}
			purged++
		}

		if n < integrityPageSize {
			break
		}
		lastID = nextID
	}

	slog.Info("Integrity verification completed", "scanned", scanned, "purged", purged)
	return purged, nil
}

// scanPage reads one keyset page after lastID. Rows are closed before the
// caller deletes anything, since the pool has a single connection.
func (r *ReviewRepo) scanPage(ctx context.Context, lastID int64) ([]int64, int, int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, url, year, positive_point, negative_point, hash
		FROM reviews
		WHERE id > ?
		ORDER BY id
		LIMIT ?
	`, lastID, integrityPageSize)
	if err != nil {
		return nil, 0, lastID, fmt.Errorf("failed to scan reviews: %w", err)
	}
	defer rows.Close()

	var corrupt []int64
	n := 0
	for rows.Next() {
		var (
			id                 int64
			source, url, hash  string
			year               int
			positive, negative sql.NullString
		)
		if err := rows.Scan(&id, &source, &url, &year, &positive, &negative, &hash); err != nil {
			return nil, n, lastID, fmt.Errorf("failed to scan review: %w", err)
		}
		n++
		lastID = id

		if ComputeHash(source, url, year, positive.String, negative.String) != hash {
			slog.Warn("Integrity violation, purging review", "id", id, "source", source, "url", url)
			corrupt = append(corrupt, id)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, n, lastID, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return corrupt, n, lastID, nil
}

// ListByModel returns the stored reviews of a model in insertion order.
func (r *ReviewRepo) ListByModel(ctx context.Context, modelID int64) ([]Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, model_id, source, url, year, positive_point, negative_point, date_collected, hash
		FROM reviews
		WHERE model_id = ?
		ORDER BY id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var (
			review             Review
			positive, negative sql.NullString
			collected          string
		)
		if err := rows.Scan(&review.ID, &review.ModelID, &review.Source, &review.URL, &review.Year,
			&positive, &negative, &collected, &review.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		if positive.Valid {
			review.PositivePoint = &positive.String
		}
		if negative.Valid {
			review.NegativePoint = &negative.String
		}
		if t, err := time.Parse(time.RFC3339Nano, collected); err == nil {
			review.DateCollected = t
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return reviews, nil
}

func (r *ReviewRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
