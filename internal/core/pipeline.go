package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"face-backend/internal/storage"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// Detector locates faces in an image addressed by URL or local path.
type Detector interface {
	DetectFaces(ctx context.Context, imageRef string) ([]Rect, error)
}

// Embedder produces a face embedding from a JPEG-encoded face crop.
type Embedder interface {
	Embed(ctx context.Context, jpegImage []byte) ([]float32, error)
}

// FaceRecord is one detected face in detector order. Embedding is set only
// when requested.
type FaceRecord struct {
	Index     int
	Rect      Rect
	Embedding []float32
}

type SingleFacePolicy int

const (
	// SingleFaceStrict rejects single-face operations when the image contains
	// more than one face.
	SingleFaceStrict SingleFacePolicy = iota
	// SingleFaceFirst proceeds with the first detected face and logs a warning.
	SingleFaceFirst
)

func ParseSingleFacePolicy(s string) (SingleFacePolicy, error) {
	switch strings.ToLower(s) {
	case "", "strict":
		return SingleFaceStrict, nil
	case "first":
		return SingleFaceFirst, nil
	default:
		return SingleFaceStrict, fmt.Errorf("invalid single face policy %q, must be 'strict' or 'first'", s)
	}
}

type ProcessOpts struct {
	WantEmbedding bool
	SingleFace    bool
}

type Pipeline struct {
	detector Detector
	embedder Embedder
	http     *resty.Client

	store             storage.ObjectStore
	diagnosticsBucket string

	policy SingleFacePolicy
}

func NewPipeline(detector Detector, embedder Embedder, store storage.ObjectStore, diagnosticsBucket string, policy SingleFacePolicy) *Pipeline {
	return &Pipeline{
		detector:          detector,
		embedder:          embedder,
		http:              resty.New().SetTimeout(time.Minute),
		store:             store,
		diagnosticsBucket: diagnosticsBucket,
		policy:            policy,
	}
}

// Process detects faces in the referenced image and, when requested, attaches
// an embedding to each face. Records are returned in detector order; in
// single-face mode exactly one record is returned.
func (p *Pipeline) Process(ctx context.Context, imageRef string, opts ProcessOpts) ([]FaceRecord, error) {
	rects, err := p.detector.DetectFaces(ctx, imageRef)
	if err != nil {
		return nil, fmt.Errorf("error detecting faces: %w", err)
	}
	if len(rects) == 0 {
		return nil, ErrNoFaceDetected
	}

	if opts.SingleFace && len(rects) > 1 {
		if p.policy == SingleFaceStrict {
			return nil, &MultipleFacesError{Count: len(rects)}
		}
		slog.Warn("multiple faces detected, proceeding with the first", "image", imageRef, "count", len(rects))
		rects = rects[:1]
	}

	img, err := p.loadImage(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	if !opts.SingleFace && len(rects) > 1 && p.store != nil {
		// Best effort only: a failed diagnostic upload never affects results.
		if err := p.uploadAnnotated(ctx, img, rects); err != nil {
			slog.Warn("could not upload annotated diagnostic image", "image", imageRef, "error", err)
		}
	}

	records := make([]FaceRecord, len(rects))
	for i, rect := range rects {
		records[i] = FaceRecord{Index: i, Rect: rect}

		if !opts.WantEmbedding {
			continue
		}

		crop, err := cropFace(img, rect)
		if err != nil {
			return nil, fmt.Errorf("error cropping face %d: %w", i, err)
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("error encoding face %d crop: %w", i, err)
		}

		embedding, err := p.embedder.Embed(ctx, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("error embedding face %d: %w", i, err)
		}
		records[i].Embedding = embedding
	}

	return records, nil
}

func (p *Pipeline) loadImage(ctx context.Context, imageRef string) (image.Image, error) {
	var data []byte
	if strings.HasPrefix(imageRef, "http://") || strings.HasPrefix(imageRef, "https://") {
		resp, err := p.http.R().SetContext(ctx).Get(imageRef)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching %s: %v", ErrImageUnavailable, imageRef, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: fetching %s returned status %d", ErrImageUnavailable, imageRef, resp.StatusCode())
		}
		data = resp.Body()
	} else {
		var err error
		data, err = os.ReadFile(imageRef)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrImageUnavailable, imageRef, err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrImageUnavailable, imageRef, err)
	}
	return img, nil
}

func (p *Pipeline) uploadAnnotated(ctx context.Context, img image.Image, rects []Rect) error {
	annotated := annotateFaces(img, rects)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("error encoding annotated image: %w", err)
	}

	key := fmt.Sprintf("diagnostics/%s.jpg", uuid.New())
	if err := p.store.PutObject(ctx, p.diagnosticsBucket, key, &buf); err != nil {
		return err
	}

	slog.Info("uploaded annotated diagnostic image", "bucket", p.diagnosticsBucket, "key", key, "faces", len(rects))
	return nil
}
