package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

type inMemoryTask struct {
	queue   string
	payload []byte
}

func (t *inMemoryTask) Type() string {
	return t.queue
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

type InMemoryQueue struct {
	tasks chan Task
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make(chan Task, 100),
	}
}

func (q *InMemoryQueue) publishTaskInternal(queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Submission must not block the caller when workers fall behind.
	select {
	case q.tasks <- &inMemoryTask{queue: queue, payload: data}:
		return nil
	default:
		return fmt.Errorf("queue %s is full", queue)
	}
}

func (q *InMemoryQueue) PublishRegisterFacesTask(ctx context.Context, payload RegisterFacesPayload) error {
	return q.publishTaskInternal(RegisterFacesQueue, payload)
}

func (q *InMemoryQueue) PublishUpdateFacesTask(ctx context.Context, payload UpdateFacesPayload) error {
	return q.publishTaskInternal(UpdateFacesQueue, payload)
}

func (q *InMemoryQueue) PublishDeleteFacesTask(ctx context.Context, payload DeleteFacesPayload) error {
	return q.publishTaskInternal(DeleteFacesQueue, payload)
}

func (q *InMemoryQueue) PublishTagImageTask(ctx context.Context, payload TagImagePayload) error {
	return q.publishTaskInternal(TagImageQueue, payload)
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() {
	if q.tasks != nil {
		close(q.tasks)
		q.tasks = nil
	}
}
