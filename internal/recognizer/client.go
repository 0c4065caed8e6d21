package recognizer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"face-backend/internal/core"

	"github.com/go-resty/resty/v2"
)

// Client talks to the external face recognition sidecar, which exposes
// detection and embedding over JSON endpoints.
type Client struct {
	http *resty.Client
}

var (
	_ core.Detector = (*Client)(nil)
	_ core.Embedder = (*Client)(nil)
)

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(2 * time.Minute),
	}
}

type detectRequest struct {
	ImageUrl string `json:"image_url"`
}

type detectedFace struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type detectResponse struct {
	Faces []detectedFace `json:"faces"`
}

func (c *Client) DetectFaces(ctx context.Context, imageRef string) ([]core.Rect, error) {
	var result detectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(detectRequest{ImageUrl: imageRef}).
		SetResult(&result).
		Post("/detect")
	if err != nil {
		return nil, fmt.Errorf("error calling face detection service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("face detection service returned status %d: %s", resp.StatusCode(), resp.String())
	}

	rects := make([]core.Rect, len(result.Faces))
	for i, face := range result.Faces {
		rects[i] = core.Rect{X: face.X, Y: face.Y, W: face.W, H: face.H}
	}
	return rects, nil
}

type embedRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) Embed(ctx context.Context, jpegImage []byte) ([]float32, error) {
	var result embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{ImageBase64: base64.StdEncoding.EncodeToString(jpegImage)}).
		SetResult(&result).
		Post("/embed")
	if err != nil {
		return nil, fmt.Errorf("error calling face embedding service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("face embedding service returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("face embedding service returned an empty embedding")
	}
	return result.Embedding, nil
}
