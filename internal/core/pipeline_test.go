package core_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"face-backend/internal/core"
	"face-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	faces map[string][]core.Rect
	err   error
}

func (d *fakeDetector) DetectFaces(ctx context.Context, imageRef string) ([]core.Rect, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.faces[imageRef], nil
}

type fakeEmbedder struct {
	embeddings [][]float32
	calls      int
}

func (e *fakeEmbedder) Embed(ctx context.Context, jpegImage []byte) ([]float32, error) {
	if e.calls >= len(e.embeddings) {
		return nil, fmt.Errorf("unexpected embed call %d", e.calls)
	}
	embedding := e.embeddings[e.calls]
	e.calls++
	return embedding, nil
}

func writeTestImage(t *testing.T, width, height int) string {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "test.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, png.Encode(file, img))
	return path
}

func TestPipelineSingleFace(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	detector := &fakeDetector{faces: map[string][]core.Rect{path: {{X: 10, Y: 10, W: 30, H: 30}}}}
	embedder := &fakeEmbedder{embeddings: [][]float32{{0.1, 0.2, 0.3}}}
	pipeline := core.NewPipeline(detector, embedder, nil, "", core.SingleFaceStrict)

	records, err := pipeline.Process(context.Background(), path, core.ProcessOpts{WantEmbedding: true, SingleFace: true})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, core.Rect{X: 10, Y: 10, W: 30, H: 30}, records[0].Rect)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, records[0].Embedding)
}

func TestPipelineNoFace(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	detector := &fakeDetector{faces: map[string][]core.Rect{}}
	pipeline := core.NewPipeline(detector, &fakeEmbedder{}, nil, "", core.SingleFaceStrict)

	_, err := pipeline.Process(context.Background(), path, core.ProcessOpts{WantEmbedding: true, SingleFace: true})
	assert.ErrorIs(t, err, core.ErrNoFaceDetected)
}

func TestPipelineMultipleFacesStrict(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	detector := &fakeDetector{faces: map[string][]core.Rect{path: {
		{X: 10, Y: 10, W: 20, H: 20},
		{X: 50, Y: 10, W: 20, H: 20},
	}}}
	pipeline := core.NewPipeline(detector, &fakeEmbedder{}, nil, "", core.SingleFaceStrict)

	_, err := pipeline.Process(context.Background(), path, core.ProcessOpts{WantEmbedding: true, SingleFace: true})

	var multiErr *core.MultipleFacesError
	require.ErrorAs(t, err, &multiErr)
	assert.Equal(t, 2, multiErr.Count)
}

func TestPipelineMultipleFacesFirstPolicy(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	detector := &fakeDetector{faces: map[string][]core.Rect{path: {
		{X: 10, Y: 10, W: 20, H: 20},
		{X: 50, Y: 10, W: 20, H: 20},
	}}}
	embedder := &fakeEmbedder{embeddings: [][]float32{{1, 2}}}
	pipeline := core.NewPipeline(detector, embedder, nil, "", core.SingleFaceFirst)

	records, err := pipeline.Process(context.Background(), path, core.ProcessOpts{WantEmbedding: true, SingleFace: true})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, core.Rect{X: 10, Y: 10, W: 20, H: 20}, records[0].Rect)
}

func TestPipelineMultiFaceMode(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(context.Background(), "diagnostics"))

	detector := &fakeDetector{faces: map[string][]core.Rect{path: {
		{X: 10, Y: 10, W: 20, H: 20},
		{X: 50, Y: 10, W: 20, H: 20},
		{X: 10, Y: 40, W: 20, H: 20},
	}}}
	embedder := &fakeEmbedder{embeddings: [][]float32{{1, 0}, {0, 1}, {1, 1}}}
	pipeline := core.NewPipeline(detector, embedder, store, "diagnostics", core.SingleFaceStrict)

	records, err := pipeline.Process(context.Background(), path, core.ProcessOpts{WantEmbedding: true, SingleFace: false})
	require.NoError(t, err)

	require.Len(t, records, 3)
	for i, record := range records {
		assert.Equal(t, i, record.Index)
		assert.NotEmpty(t, record.Embedding)
	}
	assert.Equal(t, 3, embedder.calls)
}

func TestPipelineSkipsEmbeddingWhenNotRequested(t *testing.T) {
	path := writeTestImage(t, 100, 80)

	detector := &fakeDetector{faces: map[string][]core.Rect{path: {{X: 10, Y: 10, W: 20, H: 20}}}}
	embedder := &fakeEmbedder{}
	pipeline := core.NewPipeline(detector, embedder, nil, "", core.SingleFaceStrict)

	records, err := pipeline.Process(context.Background(), path, core.ProcessOpts{SingleFace: true})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Nil(t, records[0].Embedding)
	assert.Equal(t, 0, embedder.calls)
}

func TestPipelineMissingImage(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.png")

	detector := &fakeDetector{faces: map[string][]core.Rect{missing: {{X: 0, Y: 0, W: 10, H: 10}}}}
	pipeline := core.NewPipeline(detector, &fakeEmbedder{}, nil, "", core.SingleFaceStrict)

	_, err := pipeline.Process(context.Background(), missing, core.ProcessOpts{WantEmbedding: true, SingleFace: true})
	assert.ErrorIs(t, err, core.ErrImageUnavailable)
}

func TestParseSingleFacePolicy(t *testing.T) {
	policy, err := core.ParseSingleFacePolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, core.SingleFaceStrict, policy)

	policy, err = core.ParseSingleFacePolicy("")
	require.NoError(t, err)
	assert.Equal(t, core.SingleFaceStrict, policy)

	policy, err = core.ParseSingleFacePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, core.SingleFaceFirst, policy)

	_, err = core.ParseSingleFacePolicy("lenient")
	assert.Error(t, err)
}
