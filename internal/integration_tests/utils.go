package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"face-backend/internal/core"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUsername = "admin"
	minioPassword = "password"

	embeddingDims = 512
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

// setupPostgresContainer runs postgres with the pgvector extension baked in,
// since the vector column type is created during migration.
func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	return connStr
}

func httpRequest(api http.Handler, method, endpoint string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// recognizerStub stands in for the face recognition sidecar. Detections are
// keyed by image reference; embeddings are served in submission order since
// the embed endpoint only sees cropped jpeg bytes.
type recognizerStub struct {
	mu         sync.Mutex
	faces      map[string][]core.Rect
	embeddings [][]float32
	next       int

	URL string
}

func startRecognizerStub(t *testing.T) *recognizerStub {
	stub := &recognizerStub{faces: make(map[string][]core.Rect)}

	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImageUrl string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		stub.mu.Lock()
		rects := stub.faces[req.ImageUrl]
		stub.mu.Unlock()

		faces := make([]map[string]int, len(rects))
		for i, rect := range rects {
			faces[i] = map[string]int{"x": rect.X, "y": rect.Y, "w": rect.W, "h": rect.H}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"faces": faces}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()

		if stub.next >= len(stub.embeddings) {
			http.Error(w, "no embeddings queued", http.StatusInternalServerError)
			return
		}
		embedding := stub.embeddings[stub.next]
		stub.next++

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"embedding": embedding}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	stub.URL = server.URL
	return stub
}

func (s *recognizerStub) addFaces(imageRef string, rects ...core.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces[imageRef] = rects
}

func (s *recognizerStub) queueEmbeddings(embeddings ...[]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings = append(s.embeddings, embeddings...)
}

// makeEmbedding builds a 512-dim vector with the given components at the
// front; the rest is zero. Components at distinct offsets are orthogonal.
func makeEmbedding(components ...float32) []float32 {
	embedding := make([]float32, embeddingDims)
	copy(embedding, components)
	return embedding
}

func writeTestImage(t *testing.T, name string) string {
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	for x := 0; x < 120; x++ {
		for y := 0; y < 90; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, png.Encode(file, img))
	return path
}
