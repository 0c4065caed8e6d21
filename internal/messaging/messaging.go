package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RegisterFacesQueue = "register_faces_queue"
	UpdateFacesQueue   = "update_faces_queue"
	DeleteFacesQueue   = "delete_faces_queue"
	TagImageQueue      = "tag_image_queue"
	RetryDelay         = 5 * time.Second
	MaxConnectRetry    = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type FaceItem struct {
	UserId   uuid.UUID
	ImageUrl string
}

type RegisterFacesPayload struct {
	TaskId uuid.UUID
	Items  []FaceItem
}

type UpdateFacesPayload struct {
	TaskId uuid.UUID
	Items  []FaceItem
}

type DeleteFacesPayload struct {
	TaskId  uuid.UUID
	UserIds []uuid.UUID
}

type TagImagePayload struct {
	TaskId  uuid.UUID
	ImageId uuid.UUID
}

type Publisher interface {
	PublishRegisterFacesTask(ctx context.Context, payload RegisterFacesPayload) error

	PublishUpdateFacesTask(ctx context.Context, payload UpdateFacesPayload) error

	PublishDeleteFacesTask(ctx context.Context, payload DeleteFacesPayload) error

	PublishTagImageTask(ctx context.Context, payload TagImagePayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
