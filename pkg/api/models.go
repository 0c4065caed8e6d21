package api

import (
	"time"

	"github.com/google/uuid"
)

type FaceItem struct {
	UserId   uuid.UUID `json:"user_id"`
	ImageUrl string    `json:"image_url"`
}

type RegisterFaceRequest struct {
	UserId   uuid.UUID `json:"user_id"`
	ImageUrl string    `json:"image_url"`
}

type UpdateFaceRequest struct {
	UserId   uuid.UUID `json:"user_id"`
	ImageUrl string    `json:"image_url"`
}

type DeleteFaceRequest struct {
	UserId uuid.UUID `json:"user_id"`
}

type SearchFacesRequest struct {
	ImageUrl string `json:"image_url"`
	TopK     int    `json:"top_k,omitempty"`
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Match struct {
	UserId      uuid.UUID `json:"user_id"`
	Similarity  float64   `json:"similarity"`
	FacePolygon [4]Point  `json:"face_polygon"`
}

type SearchFacesResponse struct {
	Matches []Match `json:"matches"`
}

type BatchFacesRequest struct {
	Items []FaceItem `json:"items"`
}

type BatchDeleteFacesRequest struct {
	UserIds []uuid.UUID `json:"user_ids"`
}

type TagImageRequest struct {
	ImageId uuid.UUID `json:"image_id"`
}

type SubmitTaskResponse struct {
	Message string    `json:"message"`
	TaskId  uuid.UUID `json:"task_id"`
}

type ItemOutcome struct {
	SubjectId string `json:"subject_id"`
	Status    bool   `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Task struct {
	TaskId         uuid.UUID     `json:"task_id"`
	Kind           string        `json:"kind"`
	Status         string        `json:"status"`
	Progress       int           `json:"progress"`
	TotalItems     int           `json:"total_items"`
	CompletedItems int           `json:"completed_items"`
	FailedItems    int           `json:"failed_items"`
	Results        []ItemOutcome `json:"results"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type ListTasksRequest struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type ListTasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type ProcessDriveURLRequest struct {
	DriveUrl string `json:"drive_url"`
}

type ProcessDriveURLResponse struct {
	ImageId  uuid.UUID `json:"image_id"`
	ImageUrl string    `json:"image_url"`
}
