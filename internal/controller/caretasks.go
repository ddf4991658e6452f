package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"plantcare/internal/careplan"
	"plantcare/internal/models"
	"plantcare/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// CareTaskStore is the read/update side of the task store used by the calendar.
type CareTaskStore interface {
	ListCareTasks(ctx context.Context, userID, listingID string) ([]models.CareTask, error)
	SetCareTaskCompleted(ctx context.Context, id, userID string, completed bool, now time.Time) (*models.CareTask, error)
	SpeciesByListing(ctx context.Context, ids []string) (map[string]string, error)
}

// TaskListCache caches a user's serialized task list.
type TaskListCache interface {
	Get(ctx context.Context, userID, listingID string) ([]byte, bool)
	Set(ctx context.Context, userID, listingID string, b []byte)
	InvalidateUserTasks(ctx context.Context, userID string)
}

// CareTasks serves the authenticated care calendar.
type CareTasks struct {
	Store CareTaskStore
	Cache TaskListCache // optional
	Now   func() time.Time

	group singleflight.Group
}

func (h *CareTasks) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func userID(c *gin.Context) string {
	v, _ := c.Get("user")
	uid, _ := v.(string)
	return uid
}

// List returns the user's tasks ordered by due date. Supports ?listing_id= to narrow to one plant.
func (h *CareTasks) List(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	listingID := c.Query("listing_id")

	if h.Cache != nil {
		if b, ok := h.Cache.Get(ctx, uid, listingID); ok {
			c.Data(http.StatusOK, "application/json", b)
			return
		}
	}
	key := uid + "|" + listingID
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		tasks, err := h.Store.ListCareTasks(context.WithoutCancel(ctx), uid, listingID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(tasks)
	})
	if err != nil {
		if ctx.Err() != nil || isContextErr(err) {
			return
		}
		logger.Error(ctx, "ListCareTasks failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get care tasks"})
		return
	}
	b := v.([]byte)
	c.Data(http.StatusOK, "application/json", b)
	if h.Cache != nil {
		h.Cache.Set(ctx, uid, listingID, b)
	}
}

// Today returns uncompleted tasks due today or earlier, grouped by plant.
func (h *CareTasks) Today(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	tasks, err := h.Store.ListCareTasks(ctx, uid, "")
	if err != nil {
		logger.Error(ctx, "ListCareTasks failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get care tasks"})
		return
	}
	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, t := range tasks {
		if !seen[t.ListingID] {
			seen[t.ListingID] = true
			ids = append(ids, t.ListingID)
		}
	}
	species, err := h.Store.SpeciesByListing(ctx, ids)
	if err != nil {
		// Grouping falls back to a placeholder species name.
		logger.Warn(ctx, "SpeciesByListing failed", "error", err)
		species = nil
	}
	plants := careplan.DueToday(tasks, species, h.now())
	if plants == nil {
		plants = []models.PlantCareSummary{}
	}
	c.JSON(http.StatusOK, plants)
}

// SetCompleted toggles a task's completion. Body: {"completed": bool}.
func (h *CareTasks) SetCompleted(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing task id"})
		return
	}
	var body struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	task, err := h.Store.SetCareTaskCompleted(ctx, id, uid, *body.Completed, h.now())
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		logger.Error(ctx, "SetCareTaskCompleted failed", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}
	if h.Cache != nil {
		h.Cache.InvalidateUserTasks(ctx, uid)
	}
	c.JSON(http.StatusOK, task)
}
