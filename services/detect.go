package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Detector returns the object labels found in an image.
type Detector interface {
	Detect(ctx context.Context, image []byte, filename string) ([]string, error)
}

// HTTPDetector posts images to an inference server that runs the
// pretrained detection model and answers {"labels": [...]}.
type HTTPDetector struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPDetector(endpoint string) *HTTPDetector {
	return &HTTPDetector{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type detectResponse struct {
	Labels []string `json:"labels"`
}

func (d *HTTPDetector) Detect(ctx context.Context, image []byte, filename string) ([]string, error) {
	if d.Endpoint == "" {
		return nil, errors.New("inference endpoint not configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("detect objects: status %d: %s", resp.StatusCode, msg)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return out.Labels, nil
}
