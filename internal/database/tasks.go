package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func CreateBackgroundTask(ctx context.Context, db *gorm.DB, taskId uuid.UUID, kind string, totalItems int) error {
	task := BackgroundTask{
		Id:         taskId,
		Kind:       kind,
		Status:     TaskProcessing,
		TotalItems: totalItems,
		Results:    datatypes.JSON([]byte("[]")),
	}

	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		slog.Error("error creating background task", "task_id", taskId, "kind", kind, "error", err)
		return fmt.Errorf("error creating background task: %w", err)
	}
	return nil
}

func GetBackgroundTask(ctx context.Context, db *gorm.DB, taskId uuid.UUID) (BackgroundTask, error) {
	var task BackgroundTask
	if err := db.WithContext(ctx).First(&task, "id = ?", taskId).Error; err != nil {
		return BackgroundTask{}, err
	}
	return task, nil
}

func ListBackgroundTasks(ctx context.Context, db *gorm.DB, limit, offset int) ([]BackgroundTask, error) {
	var tasks []BackgroundTask
	if err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error; err != nil {
		slog.Error("error listing background tasks", "error", err)
		return nil, fmt.Errorf("error listing background tasks: %w", err)
	}
	return tasks, nil
}

// TaskProgress returns the percentage of items that have reached a terminal
// outcome, rounded down.
func TaskProgress(completed, failed, total int) int {
	if total <= 0 {
		return 0
	}
	progress := (completed + failed) * 100 / total
	if progress > 100 {
		progress = 100
	}
	return progress
}

// AppendTaskResult records the outcome of a single batch item. The owning
// worker is the only writer for a task id, so a read-modify-write is safe here.
func AppendTaskResult(ctx context.Context, db *gorm.DB, taskId uuid.UUID, outcome ItemOutcome) error {
	task, err := GetBackgroundTask(ctx, db, taskId)
	if err != nil {
		slog.Error("error fetching background task for result append", "task_id", taskId, "error", err)
		return fmt.Errorf("error fetching background task: %w", err)
	}

	var results []ItemOutcome
	if len(task.Results) > 0 {
		if err := json.Unmarshal(task.Results, &results); err != nil {
			slog.Error("error unmarshalling task results", "task_id", taskId, "error", err)
			return fmt.Errorf("error unmarshalling task results: %w", err)
		}
	}
	results = append(results, outcome)

	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("error marshalling task results: %w", err)
	}

	completed, failed := task.CompletedItems, task.FailedItems
	if outcome.Status {
		completed++
	} else {
		failed++
	}

	updates := map[string]any{
		"results":         datatypes.JSON(data),
		"completed_items": completed,
		"failed_items":    failed,
		"progress":        TaskProgress(completed, failed, task.TotalItems),
	}

	if err := db.WithContext(ctx).Model(&BackgroundTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error updating background task results", "task_id", taskId, "error", err)
		return fmt.Errorf("error updating background task results: %w", err)
	}
	return nil
}

func SetTaskCompleted(ctx context.Context, db *gorm.DB, taskId uuid.UUID) error {
	// Progress is forced to 100 so that zero-item batches still complete cleanly.
	updates := map[string]any{"status": TaskCompleted, "progress": 100}

	if err := db.WithContext(ctx).Model(&BackgroundTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error marking background task as completed", "task_id", taskId, "error", err)
		return fmt.Errorf("error marking background task as completed: %w", err)
	}
	return nil
}

func SetTaskFailed(ctx context.Context, db *gorm.DB, taskId uuid.UUID, message string) error {
	updates := map[string]any{"status": TaskFailed, "error_message": message}

	if err := db.WithContext(ctx).Model(&BackgroundTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error marking background task as failed", "task_id", taskId, "error", err)
		return fmt.Errorf("error marking background task as failed: %w", err)
	}
	return nil
}
