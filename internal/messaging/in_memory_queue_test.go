package messaging_test

import (
	"context"
	"testing"

	"face-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishAndConsume(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	payload := messaging.TagImagePayload{TaskId: uuid.New(), ImageId: uuid.New()}
	require.NoError(t, queue.PublishTagImageTask(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, messaging.TagImageQueue, task.Type())
}

func TestInMemoryQueuePublishNeverBlocks(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	ctx := context.Background()
	payload := messaging.DeleteFacesPayload{TaskId: uuid.New()}

	// With no consumer the buffer eventually fills; publishing must then
	// return an error instead of blocking the submitter.
	var publishErr error
	published := 0
	for i := 0; i < 10000; i++ {
		if publishErr = queue.PublishDeleteFacesTask(ctx, payload); publishErr != nil {
			break
		}
		published++
	}
	require.Error(t, publishErr)
	assert.ErrorContains(t, publishErr, "full")
	require.Greater(t, published, 0)

	// Draining one slot makes room for the next publish.
	<-queue.Tasks()
	assert.NoError(t, queue.PublishDeleteFacesTask(ctx, payload))
}
