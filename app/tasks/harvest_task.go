package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BRA7534/CARFAST/app/harvest"
)

type HarvestTask struct {
	Task
	Request   harvest.Request
	harvester Harvester

	result *harvest.Result
}

// NewHarvestTask builds a task that is never retried by the scheduler: the
// fetcher already retries transient failures and rejected input stays rejected.
func NewHarvestTask(req harvest.Request, harvester Harvester) *HarvestTask {
	subject := strings.Join([]string{req.Brand, req.Model, strconv.Itoa(req.Year)}, " ")

	task := &HarvestTask{
		Task:      NewTask(TaskTypeHarvest, subject),
		Request:   req,
		harvester: harvester,
	}
	task.MaxRetries = 0
	return task
}

func (t *HarvestTask) Execute(ctx context.Context) error {
	result, err := t.harvester.Harvest(ctx, t.Request)
	if err != nil {
		return fmt.Errorf("failed to harvest %s: %w", t.Subject, err)
	}
	t.result = &result

	slog.Info("Task completed",
		"type", "Harvest",
		"subject", t.Subject,
		"model_id", result.ModelID,
		"reviews", len(result.Reviews),
		"cancelled", result.Cancelled,
		"duration", t.GetDuration())

	return nil
}

func (t *HarvestTask) Result() any {
	if t.result == nil {
		return nil
	}
	return *t.result
}
