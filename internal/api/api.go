package api

import (
	"errors"
	"log/slog"
	"net/http"

	"face-backend/internal/core"
	"face-backend/internal/images"
	"face-backend/internal/messaging"
	"face-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultTaskPageSize = 50
	maxTaskPageSize     = 200
)

type BackendService struct {
	faces   *core.FaceService
	manager *core.TaskManager
	images  *images.ImageService
}

func NewBackendService(faces *core.FaceService, manager *core.TaskManager, imageService *images.ImageService) *BackendService {
	return &BackendService{faces: faces, manager: manager, images: imageService}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/faces", func(r chi.Router) {
		r.Post("/register", RestHandler(s.RegisterFace))
		r.Post("/update", RestHandler(s.UpdateFace))
		r.Post("/delete", RestHandler(s.DeleteFace))
		r.Post("/search", RestHandler(s.SearchFaces))
		r.Post("/batch-register", RestHandler(s.BatchRegisterFaces))
		r.Post("/batch-update", RestHandler(s.BatchUpdateFaces))
		r.Post("/batch-delete", RestHandler(s.BatchDeleteFaces))
		r.Post("/face-tagging", RestHandler(s.TagImage))
		r.Get("/task-status/{task_id}", RestHandler(s.GetTaskStatus))
		r.Get("/tasks", RestHandler(s.ListTasks))
	})
	r.Route("/images", func(r chi.Router) {
		r.Post("/process-drive-url", RestHandler(s.ProcessDriveURL))
	})
}

// mapFaceError converts core error taxonomy to HTTP codes for the synchronous
// endpoints. Batch items carry the same errors inside task outcomes instead.
func mapFaceError(err error) error {
	var multiErr *core.MultipleFacesError
	switch {
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrFaceNotRegistered),
		errors.Is(err, core.ErrImageNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, core.ErrFaceAlreadyRegistered),
		errors.Is(err, core.ErrNoFaceDetected),
		errors.Is(err, core.ErrImageUnavailable),
		errors.As(err, &multiErr):
		return CodedError(http.StatusUnprocessableEntity, err)
	default:
		slog.Error("error handling face request", "error", err)
		return CodedErrorf(http.StatusInternalServerError, "error processing request")
	}
}

func (s *BackendService) RegisterFace(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RegisterFaceRequest](r)
	if err != nil {
		return nil, err
	}
	if req.UserId == uuid.Nil || req.ImageUrl == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required fields: user_id, image_url")
	}

	if err := s.faces.RegisterFace(r.Context(), req.UserId, req.ImageUrl); err != nil {
		return nil, mapFaceError(err)
	}

	return map[string]string{"message": "face registered"}, nil
}

func (s *BackendService) UpdateFace(r *http.Request) (any, error) {
	req, err := ParseRequest[api.UpdateFaceRequest](r)
	if err != nil {
		return nil, err
	}
	if req.UserId == uuid.Nil || req.ImageUrl == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required fields: user_id, image_url")
	}

	if err := s.faces.UpdateFace(r.Context(), req.UserId, req.ImageUrl); err != nil {
		return nil, mapFaceError(err)
	}

	return map[string]string{"message": "face updated"}, nil
}

func (s *BackendService) DeleteFace(r *http.Request) (any, error) {
	req, err := ParseRequest[api.DeleteFaceRequest](r)
	if err != nil {
		return nil, err
	}
	if req.UserId == uuid.Nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: user_id")
	}

	if err := s.faces.DeleteFace(r.Context(), req.UserId); err != nil {
		return nil, mapFaceError(err)
	}

	return map[string]string{"message": "face deleted"}, nil
}

func (s *BackendService) SearchFaces(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SearchFacesRequest](r)
	if err != nil {
		return nil, err
	}
	if req.ImageUrl == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: image_url")
	}

	matches, err := s.faces.SearchFaces(r.Context(), req.ImageUrl, req.TopK)
	if err != nil {
		return nil, mapFaceError(err)
	}

	return api.SearchFacesResponse{Matches: matchesToApi(matches)}, nil
}

func parseFaceItems(items []api.FaceItem) ([]messaging.FaceItem, error) {
	if len(items) == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "items must not be empty")
	}

	parsed := make([]messaging.FaceItem, len(items))
	for i, item := range items {
		if item.UserId == uuid.Nil || item.ImageUrl == "" {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "item %d is missing user_id or image_url", i)
		}
		parsed[i] = messaging.FaceItem{UserId: item.UserId, ImageUrl: item.ImageUrl}
	}
	return parsed, nil
}

func (s *BackendService) BatchRegisterFaces(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchFacesRequest](r)
	if err != nil {
		return nil, err
	}

	items, err := parseFaceItems(req.Items)
	if err != nil {
		return nil, err
	}

	taskId, err := s.manager.SubmitRegisterFaces(r.Context(), items)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue register faces task")
	}

	return api.SubmitTaskResponse{Message: "batch register task submitted", TaskId: taskId}, nil
}

func (s *BackendService) BatchUpdateFaces(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchFacesRequest](r)
	if err != nil {
		return nil, err
	}

	items, err := parseFaceItems(req.Items)
	if err != nil {
		return nil, err
	}

	taskId, err := s.manager.SubmitUpdateFaces(r.Context(), items)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue update faces task")
	}

	return api.SubmitTaskResponse{Message: "batch update task submitted", TaskId: taskId}, nil
}

func (s *BackendService) BatchDeleteFaces(r *http.Request) (any, error) {
	req, err := ParseRequest[api.BatchDeleteFacesRequest](r)
	if err != nil {
		return nil, err
	}
	if len(req.UserIds) == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "user_ids must not be empty")
	}
	for i, userId := range req.UserIds {
		if userId == uuid.Nil {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "user_ids entry %d is not a valid uuid", i)
		}
	}

	taskId, err := s.manager.SubmitDeleteFaces(r.Context(), req.UserIds)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue delete faces task")
	}

	return api.SubmitTaskResponse{Message: "batch delete task submitted", TaskId: taskId}, nil
}

func (s *BackendService) TagImage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.TagImageRequest](r)
	if err != nil {
		return nil, err
	}
	if req.ImageId == uuid.Nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: image_id")
	}

	taskId, err := s.manager.SubmitTagImage(r.Context(), req.ImageId)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue face tagging task")
	}

	return api.SubmitTaskResponse{Message: "face tagging task submitted", TaskId: taskId}, nil
}

func (s *BackendService) GetTaskStatus(r *http.Request) (any, error) {
	taskId, err := URLParamUUID(r, "task_id")
	if err != nil {
		return nil, err
	}

	task, err := s.manager.GetTask(r.Context(), taskId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "task not found")
		}
		slog.Error("error getting task", "task_id", taskId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving task record")
	}

	return taskToApi(task)
}

func (s *BackendService) ListTasks(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListTasksRequest](r)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultTaskPageSize
	}
	if limit > maxTaskPageSize {
		limit = maxTaskPageSize
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.manager.ListTasks(r.Context(), limit, offset)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing tasks")
	}

	result := api.ListTasksResponse{Tasks: make([]api.Task, 0, len(tasks))}
	for _, task := range tasks {
		converted, err := taskToApi(task)
		if err != nil {
			return nil, err
		}
		result.Tasks = append(result.Tasks, converted)
	}
	return result, nil
}

func (s *BackendService) ProcessDriveURL(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ProcessDriveURLRequest](r)
	if err != nil {
		return nil, err
	}
	if req.DriveUrl == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: drive_url")
	}

	image, err := s.images.ProcessDriveURL(r.Context(), req.DriveUrl)
	if err != nil {
		slog.Error("error processing drive url", "error", err)
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "could not process drive url: %v", err)
	}

	return api.ProcessDriveURLResponse{ImageId: image.Id, ImageUrl: image.RawImageUrl}, nil
}
