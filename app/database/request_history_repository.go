package database

import (
	"context"
	"fmt"
	"time"
)

var _ RequestHistoryRepository = (*RequestHistoryRepo)(nil)

// RequestHistoryRepo keeps one row per outbound fetch attempt.
type RequestHistoryRepo struct {
	db *DB
}

func NewRequestHistoryRepository(db *DB) *RequestHistoryRepo {
	return &RequestHistoryRepo{db: db}
}

func (r *RequestHistoryRepo) RecordRequest(ctx context.Context, url string, success bool, errMsg string) error {
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO request_history (url, requested_at, success, error_message)
		VALUES (?, ?, ?, ?)
	`, url, time.Now().UTC().Format(time.RFC3339Nano), success, errValue)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	return nil
}

func (r *RequestHistoryRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count request history: %w", err)
	}
	return count, nil
}
