package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"face-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	amqpURL := setupRabbitMQContainer(t, ctx)

	publisher, err := messaging.NewRabbitMQPublisher(amqpURL)
	require.NoError(t, err)
	t.Cleanup(publisher.Close)

	reciever, err := messaging.NewRabbitMQReceiver(amqpURL)
	require.NoError(t, err)
	t.Cleanup(reciever.Close)

	t.Run("Publish and Receive RegisterFacesTask", func(t *testing.T) {
		payload := messaging.RegisterFacesPayload{
			TaskId: uuid.New(),
			Items:  []messaging.FaceItem{{UserId: uuid.New(), ImageUrl: "http://images/a.jpg"}},
		}
		require.NoError(t, publisher.PublishRegisterFacesTask(ctx, payload))

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.RegisterFacesQueue, task.Type())

			var receivedPayload messaging.RegisterFacesPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload, receivedPayload)

			require.NoError(t, task.Ack())
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Publish and Receive UpdateFacesTask", func(t *testing.T) {
		payload := messaging.UpdateFacesPayload{
			TaskId: uuid.New(),
			Items:  []messaging.FaceItem{{UserId: uuid.New(), ImageUrl: "http://images/b.jpg"}},
		}
		require.NoError(t, publisher.PublishUpdateFacesTask(ctx, payload))

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.UpdateFacesQueue, task.Type())

			var receivedPayload messaging.UpdateFacesPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload, receivedPayload)

			require.NoError(t, task.Ack())
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Publish and Receive DeleteFacesTask", func(t *testing.T) {
		payload := messaging.DeleteFacesPayload{
			TaskId:  uuid.New(),
			UserIds: []uuid.UUID{uuid.New(), uuid.New()},
		}
		require.NoError(t, publisher.PublishDeleteFacesTask(ctx, payload))

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.DeleteFacesQueue, task.Type())

			var receivedPayload messaging.DeleteFacesPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload, receivedPayload)

			require.NoError(t, task.Ack())
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Publish and Receive TagImageTask", func(t *testing.T) {
		payload := messaging.TagImagePayload{TaskId: uuid.New(), ImageId: uuid.New()}
		require.NoError(t, publisher.PublishTagImageTask(ctx, payload))

		select {
		case task := <-reciever.Tasks():
			assert.Equal(t, messaging.TagImageQueue, task.Type())

			var receivedPayload messaging.TagImagePayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload, receivedPayload)

			require.NoError(t, task.Ack())
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})
}
