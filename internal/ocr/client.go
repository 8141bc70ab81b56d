// Package ocr talks to the external OCR service. The engine itself is
// a collaborator: this client posts one image/document blob and gets
// recognized text back. Timeouts, network errors and non-2xx responses
// are all reported as errors and treated identically by the caller
// ("no text available" for that file).
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Result is the validated payload of one OCR call. Raw preserves the
// engine's full response for the audit trail.
type Result struct {
	Text string
	Raw  json.RawMessage
}

// Client posts images to the OCR service's /ocr endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://ocr:8000"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// Recognize sends one file and returns the recognized text. The
// response body is validated against the payload schema before any
// field of it is trusted.
func (c *Client) Recognize(ctx context.Context, filename, contentType string, data []byte) (Result, error) {
	reqID := uuid.New().String()
	start := time.Now()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return Result{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Debug("ocr.http.request", "req_id", reqID, "file", filename, "bytes", len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.http.send_error", "req_id", reqID, "file", filename, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ocr.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("ocr.http.response", "req_id", reqID, "file", filename,
		"status", resp.StatusCode, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return Result{}, fmt.Errorf("ocr service returned status %d", resp.StatusCode)
	}

	text, err := decodePayload(raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Raw: raw}, nil
}
