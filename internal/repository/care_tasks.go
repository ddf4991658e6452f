package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"plantcare/internal/database"
	"plantcare/internal/models"
	"plantcare/pkg/logger"
)

const careTaskColumns = `id, user_id, listing_id, title, task_description, due_date, completed, completed_at, is_optional, created_at, updated_at`

// InsertCareTasks claims (eventID, listingID) and inserts tasks in one transaction.
// If the pair was already claimed nothing is written and 0 is returned.
func InsertCareTasks(ctx context.Context, eventID, listingID string, tasks []models.CareTask) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	db := database.DB(ctx)
	if db == nil {
		return 0, sql.ErrConnDone
	}
	return insertCareTasks(ctx, db, eventID, listingID, tasks, time.Now())
}

func insertCareTasks(ctx context.Context, db *sql.DB, eventID, listingID string, tasks []models.CareTask, now time.Time) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO care_generation (event_id, listing_id, task_count) VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, listing_id) DO NOTHING`,
		eventID, listingID, len(tasks))
	if err != nil {
		logger.Error(ctx, "Repository claim care generation failed", "error", err)
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		logger.Info(ctx, "Care tasks already generated for event", "event_id", eventID, "listing_id", listingID)
		return 0, nil
	}

	q, args := insertCareTasksQuery(tasks, now)
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		logger.Error(ctx, "Repository insert care tasks failed", "error", err, "count", len(tasks))
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// insertCareTasksQuery builds one multi-row INSERT. Missing ids are filled in.
func insertCareTasksQuery(tasks []models.CareTask, now time.Time) (string, []interface{}) {
	const cols = 11
	args := make([]interface{}, 0, len(tasks)*cols)
	placeholders := make([]string, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.CreatedAt, t.UpdatedAt = now, now
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*cols+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
		args = append(args,
			t.ID, t.UserID, t.ListingID, t.Title, t.TaskDescription, t.DueDate,
			t.Completed, t.CompletedAt, t.IsOptional, t.CreatedAt, t.UpdatedAt)
	}
	return `INSERT INTO care_task (` + careTaskColumns + `) VALUES ` + strings.Join(placeholders, ","), args
}

// ListCareTasks returns a user's tasks ordered by due date, optionally for one listing.
func ListCareTasks(ctx context.Context, userID, listingID string) ([]models.CareTask, error) {
	db := database.DB(ctx)
	if db == nil {
		return nil, sql.ErrConnDone
	}
	q := `SELECT ` + careTaskColumns + ` FROM care_task WHERE user_id = $1`
	args := []interface{}{userID}
	if listingID != "" {
		q += ` AND listing_id = $2`
		args = append(args, listingID)
	}
	q += ` ORDER BY due_date ASC, created_at ASC`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		logger.Error(ctx, "Repository ListCareTasks failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	tasks := []models.CareTask{}
	for rows.Next() {
		t, err := scanCareTask(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan care task failed", "error", err)
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// SetCareTaskCompleted toggles completion and returns the updated row.
// completed_at follows models.CareTask.SetCompleted.
func SetCareTaskCompleted(ctx context.Context, id, userID string, completed bool, now time.Time) (*models.CareTask, error) {
	db := database.DB(ctx)
	if db == nil {
		return nil, sql.ErrConnDone
	}
	return setCareTaskCompleted(ctx, db, id, userID, completed, now)
}

func setCareTaskCompleted(ctx context.Context, db *sql.DB, id, userID string, completed bool, now time.Time) (*models.CareTask, error) {
	var change models.CareTask
	change.SetCompleted(completed, now)
	row := db.QueryRowContext(ctx,
		`UPDATE care_task SET completed = $1, completed_at = $2, updated_at = $3
		 WHERE id = $4 AND user_id = $5 RETURNING `+careTaskColumns,
		change.Completed, change.CompletedAt, change.UpdatedAt, id, userID)
	t, err := scanCareTask(row)
	if err != nil && err != sql.ErrNoRows {
		logger.Error(ctx, "Repository SetCareTaskCompleted failed", "error", err, "id", id)
	}
	return t, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCareTask(s scanner) (*models.CareTask, error) {
	var (
		t           models.CareTask
		completedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.ListingID, &t.Title, &t.TaskDescription, &t.DueDate,
		&t.Completed, &completedAt, &t.IsOptional, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	return &t, nil
}
