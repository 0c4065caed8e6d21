package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"face-backend/internal/core"
	"face-backend/internal/database"
	"face-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeExecutor struct {
	registered []uuid.UUID
	updated    []uuid.UUID
	deleted    []uuid.UUID
	tagged     []uuid.UUID
	failFor    map[uuid.UUID]error
}

func (e *fakeExecutor) RegisterFace(ctx context.Context, userId uuid.UUID, imageUrl string) error {
	if err := e.failFor[userId]; err != nil {
		return err
	}
	e.registered = append(e.registered, userId)
	return nil
}

func (e *fakeExecutor) UpdateFace(ctx context.Context, userId uuid.UUID, imageUrl string) error {
	if err := e.failFor[userId]; err != nil {
		return err
	}
	e.updated = append(e.updated, userId)
	return nil
}

func (e *fakeExecutor) DeleteFace(ctx context.Context, userId uuid.UUID) error {
	if err := e.failFor[userId]; err != nil {
		return err
	}
	e.deleted = append(e.deleted, userId)
	return nil
}

func (e *fakeExecutor) TagImage(ctx context.Context, imageId uuid.UUID, taskId uuid.UUID) (string, error) {
	if err := e.failFor[imageId]; err != nil {
		return "", err
	}
	e.tagged = append(e.tagged, imageId)
	return "Processed 1 faces, found 0 users", nil
}

// nextTask publishes through the queue and hands the resulting task to the
// caller, so tests drive ProcessTask synchronously.
func nextTask(t *testing.T, queue *messaging.InMemoryQueue) messaging.Task {
	select {
	case task := <-queue.Tasks():
		return task
	default:
		t.Fatal("expected a queued task")
		return nil
	}
}

func taskResults(t *testing.T, db *gorm.DB, taskId uuid.UUID) (database.BackgroundTask, []database.ItemOutcome) {
	task, err := database.GetBackgroundTask(context.Background(), db, taskId)
	require.NoError(t, err)

	var results []database.ItemOutcome
	require.NoError(t, json.Unmarshal(task.Results, &results))
	return task, results
}

func TestProcessRegisterFacesTask(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	userA, userB := uuid.New(), uuid.New()
	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindRegister, 2))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishRegisterFacesTask(ctx, messaging.RegisterFacesPayload{
		TaskId: taskId,
		Items: []messaging.FaceItem{
			{UserId: userA, ImageUrl: "a.jpg"},
			{UserId: userB, ImageUrl: "b.jpg"},
		},
	}))

	executor := &fakeExecutor{}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	assert.Equal(t, []uuid.UUID{userA, userB}, executor.registered)

	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, 2, task.CompletedItems)
	assert.Equal(t, 0, task.FailedItems)
	require.Len(t, results, 2)
	assert.True(t, results[0].Status)
	assert.True(t, results[1].Status)
}

func TestProcessTaskWithFailedItems(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	goodUser, badUser := uuid.New(), uuid.New()
	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindUpdate, 2))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishUpdateFacesTask(ctx, messaging.UpdateFacesPayload{
		TaskId: taskId,
		Items: []messaging.FaceItem{
			{UserId: badUser, ImageUrl: "bad.jpg"},
			{UserId: goodUser, ImageUrl: "good.jpg"},
		},
	}))

	executor := &fakeExecutor{failFor: map[uuid.UUID]error{badUser: core.ErrNoFaceDetected}}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	// An item failure is recorded but never fails the task.
	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Equal(t, 1, task.CompletedItems)
	assert.Equal(t, 1, task.FailedItems)
	require.Len(t, results, 2)
	assert.False(t, results[0].Status)
	assert.Equal(t, badUser.String(), results[0].SubjectId)
	assert.Equal(t, core.ErrNoFaceDetected.Error(), results[0].Error)
	assert.True(t, results[1].Status)
}

func TestProcessDeleteFacesTask(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	userIds := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindDelete, len(userIds)))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishDeleteFacesTask(ctx, messaging.DeleteFacesPayload{TaskId: taskId, UserIds: userIds}))

	executor := &fakeExecutor{}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	assert.Equal(t, userIds, executor.deleted)

	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Len(t, results, 3)
}

func TestProcessTagImageTask(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	imageId := uuid.New()
	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindTagging, 1))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishTagImageTask(ctx, messaging.TagImagePayload{TaskId: taskId, ImageId: imageId}))

	executor := &fakeExecutor{}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	assert.Equal(t, []uuid.UUID{imageId}, executor.tagged)

	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	require.Len(t, results, 1)
	assert.Equal(t, imageId.String(), results[0].SubjectId)
	assert.True(t, results[0].Status)
	assert.Equal(t, "Processed 1 faces, found 0 users", results[0].Detail)
}

func TestProcessTagImageTaskItemFailure(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	imageId := uuid.New()
	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindTagging, 1))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishTagImageTask(ctx, messaging.TagImagePayload{TaskId: taskId, ImageId: imageId}))

	executor := &fakeExecutor{failFor: map[uuid.UUID]error{imageId: core.ErrImageNotFound}}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Equal(t, 1, task.FailedItems)
	require.Len(t, results, 1)
	assert.False(t, results[0].Status)
	assert.Equal(t, core.ErrImageNotFound.Error(), results[0].Error)
}

func TestProcessZeroItemTask(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	taskId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindDelete, 0))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishDeleteFacesTask(ctx, messaging.DeleteFacesPayload{TaskId: taskId}))

	processor := core.NewTaskProcessor(db, &fakeExecutor{}, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	task, results := taskResults(t, db, taskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Empty(t, results)
}

func TestProcessTaskMissingTaskRow(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	// The submit path inserts the task row best-effort, so the processor must
	// survive a payload whose row never made it to the database.
	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishDeleteFacesTask(ctx, messaging.DeleteFacesPayload{
		TaskId:  uuid.New(),
		UserIds: []uuid.UUID{uuid.New()},
	}))

	executor := &fakeExecutor{}
	processor := core.NewTaskProcessor(db, executor, queue, 1)
	processor.ProcessTask(nextTask(t, queue))

	// The item still ran; only the bookkeeping write failed.
	assert.Len(t, executor.deleted, 1)
}

func TestProcessorStartDrainsQueue(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	taskId := uuid.New()
	userId := uuid.New()
	require.NoError(t, database.CreateBackgroundTask(ctx, db, taskId, database.TaskKindRegister, 1))

	queue := messaging.NewInMemoryQueue()
	require.NoError(t, queue.PublishRegisterFacesTask(ctx, messaging.RegisterFacesPayload{
		TaskId: taskId,
		Items:  []messaging.FaceItem{{UserId: userId, ImageUrl: "a.jpg"}},
	}))

	processor := core.NewTaskProcessor(db, &fakeExecutor{}, queue, 2)
	processor.Start()
	defer processor.Stop()

	assert.Eventually(t, func() bool {
		task, err := database.GetBackgroundTask(ctx, db, taskId)
		if err != nil {
			return false
		}
		return task.Status == database.TaskCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessTaskRejectsMalformedPayload(t *testing.T) {
	db := createDB(t)

	processor := core.NewTaskProcessor(db, &fakeExecutor{}, messaging.NewInMemoryQueue(), 1)
	processor.ProcessTask(&staticTask{queue: messaging.RegisterFacesQueue, payload: []byte("not json")})
	processor.ProcessTask(&staticTask{queue: "unknown_queue", payload: []byte("{}")})
}

type staticTask struct {
	queue    string
	payload  []byte
	acked    bool
	rejected bool
}

func (t *staticTask) Type() string    { return t.queue }
func (t *staticTask) Payload() []byte { return t.payload }
func (t *staticTask) Ack() error      { t.acked = true; return nil }
func (t *staticTask) Nack() error     { return nil }
func (t *staticTask) Reject() error {
	t.rejected = true
	if t.acked {
		return errors.New("message already acknowledged")
	}
	return nil
}
