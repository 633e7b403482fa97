package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/metrics"
)

type VerifyIntegrityTask struct {
	Task
	reviews database.ReviewRepository

	purged int
}

func NewVerifyIntegrityTask(reviews database.ReviewRepository) *VerifyIntegrityTask {
	return &VerifyIntegrityTask{
		Task:    NewTask(TaskTypeVerifyIntegrity, "reviews"),
		reviews: reviews,
	}
}

func (t *VerifyIntegrityTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	purged, err := t.reviews.VerifyIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify review integrity: %w", err)
	}
	t.purged = purged
	metrics.ObservePurged(purged)

	slog.Info("Task completed",
		"type", "VerifyIntegrity",
		"purged", purged,
		"duration", t.GetDuration())

	return nil
}

func (t *VerifyIntegrityTask) Result() any {
	return map[string]int{"purged": t.purged}
}
