package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"face-backend/internal/database"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MatchThreshold is the minimum cosine similarity for a face to count as
	// a recognized user.
	MatchThreshold = 0.6
	// TagTopK is the candidate count when tagging event images.
	TagTopK = 1
	// SearchTopK is the default candidate count for search requests.
	SearchTopK = 10
)

// FaceService implements the face identity operations. Batch tasks and the
// synchronous endpoints share these methods.
type FaceService struct {
	db       *gorm.DB
	pipeline *Pipeline
	matcher  database.FaceMatcher
}

func NewFaceService(db *gorm.DB, pipeline *Pipeline, matcher database.FaceMatcher) *FaceService {
	return &FaceService{db: db, pipeline: pipeline, matcher: matcher}
}

func (s *FaceService) RegisterFace(ctx context.Context, userId uuid.UUID, imageUrl string) error {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("error looking up user: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&database.UserFace{}).Where("user_id = ?", userId).Count(&count).Error; err != nil {
		return fmt.Errorf("error checking for existing face: %w", err)
	}
	if count > 0 {
		return ErrFaceAlreadyRegistered
	}

	records, err := s.pipeline.Process(ctx, imageUrl, ProcessOpts{WantEmbedding: true, SingleFace: true})
	if err != nil {
		return err
	}

	face := database.UserFace{
		Id:        uuid.New(),
		UserId:    userId,
		Embedding: pgvector.NewVector(records[0].Embedding),
	}
	if err := s.db.WithContext(ctx).Create(&face).Error; err != nil {
		return fmt.Errorf("error saving face embedding: %w", err)
	}

	slog.Info("registered face", "user_id", userId)
	return nil
}

func (s *FaceService) UpdateFace(ctx context.Context, userId uuid.UUID, imageUrl string) error {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("error looking up user: %w", err)
	}

	var face database.UserFace
	if err := s.db.WithContext(ctx).First(&face, "user_id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFaceNotRegistered
		}
		return fmt.Errorf("error looking up registered face: %w", err)
	}

	records, err := s.pipeline.Process(ctx, imageUrl, ProcessOpts{WantEmbedding: true, SingleFace: true})
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Model(&database.UserFace{Id: face.Id}).
		Update("embedding", pgvector.NewVector(records[0].Embedding)).Error; err != nil {
		return fmt.Errorf("error updating face embedding: %w", err)
	}

	slog.Info("updated face", "user_id", userId)
	return nil
}

func (s *FaceService) DeleteFace(ctx context.Context, userId uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", userId).Delete(&database.UserFace{})
	if res.Error != nil {
		return fmt.Errorf("error deleting face embedding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFaceNotRegistered
	}

	slog.Info("deleted face", "user_id", userId)
	return nil
}

// SearchMatch is a recognized candidate for one face detected in a search
// image. FacePolygon outlines the originating face as four corner points in
// clockwise order starting top-left.
type SearchMatch struct {
	UserId      uuid.UUID `json:"user_id"`
	Similarity  float64   `json:"similarity"`
	FacePolygon [4]Point  `json:"face_polygon"`
}

// SearchFaces matches every face detected in the image against the registered
// population, returning up to topK candidates per face.
func (s *FaceService) SearchFaces(ctx context.Context, imageUrl string, topK int) ([]SearchMatch, error) {
	if topK <= 0 {
		topK = SearchTopK
	}

	records, err := s.pipeline.Process(ctx, imageUrl, ProcessOpts{WantEmbedding: true, SingleFace: false})
	if err != nil {
		return nil, err
	}

	results := make([]SearchMatch, 0)
	for _, record := range records {
		matches, err := s.matcher.MatchFaces(ctx, record.Embedding, MatchThreshold, topK)
		if err != nil {
			return nil, fmt.Errorf("error matching face %d: %w", record.Index, err)
		}

		polygon := RectPolygon(record.Rect)
		for _, match := range matches {
			results = append(results, SearchMatch{
				UserId:      match.UserId,
				Similarity:  match.Similarity,
				FacePolygon: polygon,
			})
		}
	}

	return results, nil
}

// recognizedUser is one accepted recognition in event image metadata.
type recognizedUser struct {
	UserId     uuid.UUID `json:"user_id"`
	Similarity float64   `json:"similarity"`
}

// TagImage detects all faces in an event image, recognizes registered users
// among them, and writes the tagging summary onto the image record. It
// returns a short description of the result for the task outcome. An image
// with no detectable faces fails with ErrNoFaceDetected.
func (s *FaceService) TagImage(ctx context.Context, imageId uuid.UUID, taskId uuid.UUID) (string, error) {
	start := time.Now()

	var img database.EventImage
	if err := s.db.WithContext(ctx).First(&img, "id = ?", imageId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("error looking up image: %w", err)
	}

	records, err := s.pipeline.Process(ctx, img.RawImageUrl, ProcessOpts{WantEmbedding: true, SingleFace: false})
	if err != nil {
		return "", err
	}

	recognized := make([]recognizedUser, 0)
	for _, record := range records {
		matches, err := s.matcher.MatchFaces(ctx, record.Embedding, MatchThreshold, TagTopK)
		if err != nil {
			return "", fmt.Errorf("error matching face %d: %w", record.Index, err)
		}
		if len(matches) == 0 {
			continue
		}

		top := matches[0]
		if top.Similarity < MatchThreshold {
			continue
		}
		recognized = append(recognized, recognizedUser{UserId: top.UserId, Similarity: top.Similarity})
	}

	metadata := map[string]any{
		"detected_faces":          len(records),
		"recognized_users":        recognized,
		"processing_time_seconds": time.Since(start).Seconds(),
		"face_tagging_task_id":    taskId,
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("error marshalling image metadata: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&database.EventImage{Id: imageId}).
		Update("metadata", datatypes.JSON(data)).Error; err != nil {
		return "", fmt.Errorf("error saving image metadata: %w", err)
	}

	slog.Info("tagged image", "image_id", imageId, "detected_faces", len(records), "recognized_users", len(recognized))
	return fmt.Sprintf("Processed %d faces, found %d users", len(records), len(recognized)), nil
}
