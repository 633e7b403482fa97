package tasks

import (
	"context"

	"github.com/BRA7534/CARFAST/app/harvest"
)

// TaskSchedulerInterface is what the HTTP layer needs from the scheduler:
// queueing work and reading back its state.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Status(id string) (TaskStatus, bool)
	Stats() Stats
}

// Harvester runs one harvest. Implemented by *harvest.Harvester.
type Harvester interface {
	Harvest(ctx context.Context, req harvest.Request) (harvest.Result, error)
}
