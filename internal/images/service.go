package images

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"face-backend/internal/database"
	"face-backend/internal/storage"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultDriveBaseURL = "https://drive.google.com"

// ImageService downloads shared images, uploads them to the object store
// under a fresh id, and records an EventImage row for later tagging.
type ImageService struct {
	db     *gorm.DB
	store  storage.ObjectStore
	bucket string
	http   *resty.Client

	// DriveBaseURL can be overridden in tests.
	DriveBaseURL string
}

func NewImageService(db *gorm.DB, store storage.ObjectStore, bucket string) *ImageService {
	return &ImageService{
		db:           db,
		store:        store,
		bucket:       bucket,
		http:         resty.New().SetTimeout(2 * time.Minute),
		DriveBaseURL: defaultDriveBaseURL,
	}
}

func (s *ImageService) ProcessDriveURL(ctx context.Context, driveUrl string) (database.EventImage, error) {
	fileId, err := ExtractDriveFileId(driveUrl)
	if err != nil {
		return database.EventImage{}, err
	}

	resp, err := s.http.R().SetContext(ctx).Get(s.DriveBaseURL + driveDownloadPath(fileId))
	if err != nil {
		return database.EventImage{}, fmt.Errorf("error downloading drive file %s: %w", fileId, err)
	}
	if resp.IsError() {
		return database.EventImage{}, fmt.Errorf("drive download for file %s returned status %d", fileId, resp.StatusCode())
	}

	imageId := uuid.New()
	key := imageId.String() + extensionForContentType(resp.Header().Get("Content-Type"))

	if err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(resp.Body())); err != nil {
		return database.EventImage{}, fmt.Errorf("error storing drive image: %w", err)
	}

	image := database.EventImage{
		Id:          imageId,
		RawImageUrl: s.store.ObjectURL(s.bucket, key),
	}
	if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
		// Don't leave an unreferenced object behind.
		if delErr := s.store.DeleteObject(ctx, s.bucket, key); delErr != nil {
			slog.Warn("error removing orphaned image object", "bucket", s.bucket, "key", key, "error", delErr)
		}
		return database.EventImage{}, fmt.Errorf("error creating image record: %w", err)
	}

	slog.Info("processed drive image", "image_id", imageId, "file_id", fileId, "size", len(resp.Body()))
	return image, nil
}

func extensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
