package core

import (
	"context"
	"fmt"
	"log/slog"

	"face-backend/internal/database"
	"face-backend/internal/messaging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskManager creates background task records and queues the corresponding
// work. Submission returns the task id without waiting for processing; task
// record creation is best effort so that a transient store failure does not
// lose the queued work.
type TaskManager struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewTaskManager(db *gorm.DB, publisher messaging.Publisher) *TaskManager {
	return &TaskManager{db: db, publisher: publisher}
}

func (m *TaskManager) SubmitRegisterFaces(ctx context.Context, items []messaging.FaceItem) (uuid.UUID, error) {
	taskId := uuid.New()
	database.CreateBackgroundTask(ctx, m.db, taskId, database.TaskKindRegister, len(items)) //nolint:errcheck

	if err := m.publisher.PublishRegisterFacesTask(ctx, messaging.RegisterFacesPayload{TaskId: taskId, Items: items}); err != nil {
		return uuid.Nil, fmt.Errorf("error queueing register faces task: %w", err)
	}

	slog.Info("submitted register faces task", "task_id", taskId, "items", len(items))
	return taskId, nil
}

func (m *TaskManager) SubmitUpdateFaces(ctx context.Context, items []messaging.FaceItem) (uuid.UUID, error) {
	taskId := uuid.New()
	database.CreateBackgroundTask(ctx, m.db, taskId, database.TaskKindUpdate, len(items)) //nolint:errcheck

	if err := m.publisher.PublishUpdateFacesTask(ctx, messaging.UpdateFacesPayload{TaskId: taskId, Items: items}); err != nil {
		return uuid.Nil, fmt.Errorf("error queueing update faces task: %w", err)
	}

	slog.Info("submitted update faces task", "task_id", taskId, "items", len(items))
	return taskId, nil
}

func (m *TaskManager) SubmitDeleteFaces(ctx context.Context, userIds []uuid.UUID) (uuid.UUID, error) {
	taskId := uuid.New()
	database.CreateBackgroundTask(ctx, m.db, taskId, database.TaskKindDelete, len(userIds)) //nolint:errcheck

	if err := m.publisher.PublishDeleteFacesTask(ctx, messaging.DeleteFacesPayload{TaskId: taskId, UserIds: userIds}); err != nil {
		return uuid.Nil, fmt.Errorf("error queueing delete faces task: %w", err)
	}

	slog.Info("submitted delete faces task", "task_id", taskId, "items", len(userIds))
	return taskId, nil
}

func (m *TaskManager) SubmitTagImage(ctx context.Context, imageId uuid.UUID) (uuid.UUID, error) {
	taskId := uuid.New()
	database.CreateBackgroundTask(ctx, m.db, taskId, database.TaskKindTagging, 1) //nolint:errcheck

	if err := m.publisher.PublishTagImageTask(ctx, messaging.TagImagePayload{TaskId: taskId, ImageId: imageId}); err != nil {
		return uuid.Nil, fmt.Errorf("error queueing tag image task: %w", err)
	}

	slog.Info("submitted tag image task", "task_id", taskId, "image_id", imageId)
	return taskId, nil
}

// GetTask re-reads the task record so pollers always observe fresh state.
func (m *TaskManager) GetTask(ctx context.Context, taskId uuid.UUID) (database.BackgroundTask, error) {
	return database.GetBackgroundTask(ctx, m.db, taskId)
}

func (m *TaskManager) ListTasks(ctx context.Context, limit, offset int) ([]database.BackgroundTask, error) {
	return database.ListBackgroundTasks(ctx, m.db, limit, offset)
}
