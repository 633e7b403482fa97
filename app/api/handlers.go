package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/harvest"
	"github.com/BRA7534/CARFAST/app/tasks"
)

func NewHandler(harvester tasks.Harvester, reviews database.ReviewRepository,
	scheduler tasks.TaskSchedulerInterface, metrics http.Handler, version string) *Handler {
	return &Handler{
		harvester: harvester,
		reviews:   reviews,
		scheduler: scheduler,
		metrics:   metrics,
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.reviews.Count(c.Request.Context()); err == nil {
		health["reviews"] = count
	} else {
		slog.Error("Database error", "operation", "count_reviews", "error", err)
		health["status"] = "degraded"
	}

	if h.scheduler != nil {
		health["scheduler"] = h.scheduler.Stats()
	}

	c.JSON(http.StatusOK, health)
}

// PostHarvest runs a harvest for the vehicle in the body. With ?async=true
// the harvest is queued and a task id is returned instead.
func (h *Handler) PostHarvest(c *gin.Context) {
	var req harvest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		task := tasks.NewHarvestTask(req, h.harvester)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Failed to enqueue HarvestTask", "subject", task.GetSubject(), "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue harvest"})
			return
		}

		c.JSON(http.StatusAccepted, harvestAccepted{TaskID: task.GetID(), Status: string(tasks.TaskStateQueued)})
		return
	}

	result, err := h.harvester.Harvest(c.Request.Context(), req)
	if err != nil {
		respondError(c, "harvest", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetTask(c *gin.Context) {
	status, ok := h.scheduler.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) GetModelReviews(c *gin.Context) {
	modelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || modelID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model id"})
		return
	}

	reviews, err := h.reviews.ListByModel(c.Request.Context(), modelID)
	if err != nil {
		respondError(c, "list_reviews", err)
		return
	}

	c.JSON(http.StatusOK, reviewsResponse{ModelID: modelID, Reviews: reviews, Total: len(reviews)})
}

func (h *Handler) PostVerifyIntegrity(c *gin.Context) {
	task := tasks.NewVerifyIntegrityTask(h.reviews)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue VerifyIntegrityTask", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue integrity check"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.GetID(), "status": tasks.TaskStateQueued})
}

func respondError(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, harvest.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, harvest.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, harvest.ErrReferentialIntegrity):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
