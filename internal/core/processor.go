package core

import (
	"context"
	"encoding/json"
	"log/slog"

	"face-backend/internal/database"
	"face-backend/internal/messaging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Executor runs a single batch item. Implemented by FaceService; tests swap
// in fakes.
type Executor interface {
	RegisterFace(ctx context.Context, userId uuid.UUID, imageUrl string) error
	UpdateFace(ctx context.Context, userId uuid.UUID, imageUrl string) error
	DeleteFace(ctx context.Context, userId uuid.UUID) error
	TagImage(ctx context.Context, imageId uuid.UUID, taskId uuid.UUID) (string, error)
}

// TaskProcessor consumes batch face tasks from the queue with a bounded pool
// of workers. Items within a task run strictly sequentially; per-item failures
// become recorded outcomes, and only a store failure fails the task itself.
type TaskProcessor struct {
	db          *gorm.DB
	executor    Executor
	reciever    messaging.Reciever
	concurrency int
}

func NewTaskProcessor(db *gorm.DB, executor Executor, reciever messaging.Reciever, concurrency int) *TaskProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TaskProcessor{
		db:          db,
		executor:    executor,
		reciever:    reciever,
		concurrency: concurrency,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor", "concurrency", proc.concurrency)

	for i := 0; i < proc.concurrency; i++ {
		go func() {
			for task := range proc.reciever.Tasks() {
				proc.ProcessTask(task)
			}
		}()
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.RegisterFacesQueue:
		var payload messaging.RegisterFacesPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling register faces task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processRegisterFacesTask(ctx, payload)

	case messaging.UpdateFacesQueue:
		var payload messaging.UpdateFacesPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling update faces task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processUpdateFacesTask(ctx, payload)

	case messaging.DeleteFacesQueue:
		var payload messaging.DeleteFacesPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling delete faces task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processDeleteFacesTask(ctx, payload)

	case messaging.TagImageQueue:
		var payload messaging.TagImagePayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling tag image task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processTagImageTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil { // reject unknown message type
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

// recordOutcome appends a per-item outcome to the task record. Item errors
// never fail the task; a store write failure does, and is surfaced to the
// caller to abort the batch.
func (proc *TaskProcessor) recordOutcome(ctx context.Context, taskId uuid.UUID, subjectId, detail string, itemErr error) error {
	outcome := database.ItemOutcome{SubjectId: subjectId, Status: itemErr == nil, Detail: detail}
	if itemErr != nil {
		outcome.Error = itemErr.Error()
		slog.Info("task item failed", "task_id", taskId, "subject_id", subjectId, "error", itemErr)
	}

	if err := database.AppendTaskResult(ctx, proc.db, taskId, outcome); err != nil {
		proc.failTask(ctx, taskId, err)
		return err
	}
	return nil
}

func (proc *TaskProcessor) finishTask(ctx context.Context, taskId uuid.UUID) error {
	if err := database.SetTaskCompleted(ctx, proc.db, taskId); err != nil {
		proc.failTask(ctx, taskId, err)
		return err
	}
	return nil
}

func (proc *TaskProcessor) failTask(ctx context.Context, taskId uuid.UUID, cause error) {
	if err := database.SetTaskFailed(ctx, proc.db, taskId, cause.Error()); err != nil {
		slog.Error("error marking task as failed", "task_id", taskId, "error", err)
	}
}

func (proc *TaskProcessor) processRegisterFacesTask(ctx context.Context, payload messaging.RegisterFacesPayload) error {
	slog.Info("processing register faces task", "task_id", payload.TaskId, "items", len(payload.Items))

	for _, item := range payload.Items {
		itemErr := proc.executor.RegisterFace(ctx, item.UserId, item.ImageUrl)
		if err := proc.recordOutcome(ctx, payload.TaskId, item.UserId.String(), "", itemErr); err != nil {
			return err
		}
	}

	return proc.finishTask(ctx, payload.TaskId)
}

func (proc *TaskProcessor) processUpdateFacesTask(ctx context.Context, payload messaging.UpdateFacesPayload) error {
	slog.Info("processing update faces task", "task_id", payload.TaskId, "items", len(payload.Items))

	for _, item := range payload.Items {
		itemErr := proc.executor.UpdateFace(ctx, item.UserId, item.ImageUrl)
		if err := proc.recordOutcome(ctx, payload.TaskId, item.UserId.String(), "", itemErr); err != nil {
			return err
		}
	}

	return proc.finishTask(ctx, payload.TaskId)
}

func (proc *TaskProcessor) processDeleteFacesTask(ctx context.Context, payload messaging.DeleteFacesPayload) error {
	slog.Info("processing delete faces task", "task_id", payload.TaskId, "items", len(payload.UserIds))

	for _, userId := range payload.UserIds {
		itemErr := proc.executor.DeleteFace(ctx, userId)
		if err := proc.recordOutcome(ctx, payload.TaskId, userId.String(), "", itemErr); err != nil {
			return err
		}
	}

	return proc.finishTask(ctx, payload.TaskId)
}

func (proc *TaskProcessor) processTagImageTask(ctx context.Context, payload messaging.TagImagePayload) error {
	slog.Info("processing tag image task", "task_id", payload.TaskId, "image_id", payload.ImageId)

	detail, itemErr := proc.executor.TagImage(ctx, payload.ImageId, payload.TaskId)
	if err := proc.recordOutcome(ctx, payload.TaskId, payload.ImageId.String(), detail, itemErr); err != nil {
		return err
	}

	return proc.finishTask(ctx, payload.TaskId)
}
