package api

import (
	"net/http"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/tasks"
)

type Handler struct {
	harvester tasks.Harvester
	reviews   database.ReviewRepository
	scheduler tasks.TaskSchedulerInterface
	metrics   http.Handler
	version   string
}

type harvestAccepted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type reviewsResponse struct {
	ModelID int64             `json:"model_id"`
	Reviews []database.Review `json:"reviews"`
	Total   int               `json:"total"`
}
