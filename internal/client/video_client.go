package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/model"
)

// ErrMissingAPIKey is returned by every call when no API key is configured.
var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY: set it before using skypilot")

// VideoService defines the remote operations on generated videos
type VideoService interface {
	CreateVideo(ctx context.Context, req *CreateVideoParams) (*model.Video, error)
	RetrieveVideo(ctx context.Context, videoID string) (*model.Video, error)
	ListVideos(ctx context.Context, params model.ListParams) ([]model.Video, error)
	RemixVideo(ctx context.Context, videoID, prompt string) (*model.Video, error)
	DeleteVideo(ctx context.Context, videoID string) (*model.DeleteResult, error)
	DownloadContent(ctx context.Context, videoID string, variant model.AssetVariant) (io.ReadCloser, error)
}

// CreateVideoParams is the body of a create call. InputReference is a local
// file path sent as the first frame reference.
type CreateVideoParams struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	Seconds        string `json:"seconds,omitempty"`
	Size           string `json:"size,omitempty"`
	InputReference string `json:"-"`
}

// APIError is a non-2xx answer from the video API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai API error (status %d): %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the video API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// OpenAIClient implements VideoService for the OpenAI videos API
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenAIClient creates a new videos API client
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// CreateVideo submits a new generation job
func (c *OpenAIClient) CreateVideo(ctx context.Context, req *CreateVideoParams) (*model.Video, error) {
	var result model.Video
	if req.InputReference != "" {
		if err := c.postMultipart(ctx, "/videos", req, &result); err != nil {
			return nil, err
		}
		return &result, nil
	}
	if err := c.post(ctx, "/videos", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetrieveVideo fetches the latest snapshot of a video
func (c *OpenAIClient) RetrieveVideo(ctx context.Context, videoID string) (*model.Video, error) {
	var result model.Video
	if err := c.get(ctx, "/videos/"+url.PathEscape(videoID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListVideos walks every page of the list endpoint. Limit is the page size.
func (c *OpenAIClient) ListVideos(ctx context.Context, params model.ListParams) ([]model.Video, error) {
	var videos []model.Video
	after := ""
	for {
		q := url.Values{}
		if params.Limit > 0 {
			q.Set("limit", strconv.Itoa(params.Limit))
		}
		if params.Order != "" {
			q.Set("order", params.Order)
		}
		if after != "" {
			q.Set("after", after)
		}
		endpoint := "/videos"
		if len(q) > 0 {
			endpoint += "?" + q.Encode()
		}

		var page model.VideoPage
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		videos = append(videos, page.Data...)

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		after = page.LastID
		if after == "" {
			after = page.Data[len(page.Data)-1].ID
		}
	}
	return videos, nil
}

// RemixVideo asks for a variation of an existing video
func (c *OpenAIClient) RemixVideo(ctx context.Context, videoID, prompt string) (*model.Video, error) {
	body := map[string]string{"prompt": prompt}
	var result model.Video
	if err := c.post(ctx, "/videos/"+url.PathEscape(videoID)+"/remix", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteVideo removes a video and its assets from the service
func (c *OpenAIClient) DeleteVideo(ctx context.Context, videoID string) (*model.DeleteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/videos/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var result model.DeleteResult
	if err := c.doRequest(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadContent streams one asset variant. The caller closes the body.
func (c *OpenAIClient) DownloadContent(ctx context.Context, videoID string, variant model.AssetVariant) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf("%s/videos/%s/content?variant=%s", c.baseURL, url.PathEscape(videoID), url.QueryEscape(string(variant)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[OpenAI API] → %s %s", req.Method, req.URL.String())

	// Asset downloads can outlive the JSON timeout.
	streaming := *c.httpClient
	streaming.Timeout = 0
	resp, err := streaming.Do(req)
	if err != nil {
		log.Printf("[OpenAI API] ✗ %s %s: request failed: %v", req.Method, req.URL.String(), err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	log.Printf("[OpenAI API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, newAPIError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// post sends a POST request with JSON body
func (c *OpenAIClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, result)
}

// postMultipart sends a create request with an input reference file attached
func (c *OpenAIClient) postMultipart(ctx context.Context, endpoint string, params *CreateVideoParams, result interface{}) error {
	file, err := os.Open(params.InputReference)
	if err != nil {
		return fmt.Errorf("failed to open input reference: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"prompt":  params.Prompt,
		"model":   params.Model,
		"seconds": params.Seconds,
		"size":    params.Size,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write form field: %w", err)
		}
	}
	part, err := w.CreateFormFile("input_reference", filepath.Base(params.InputReference))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read input reference: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *OpenAIClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *OpenAIClient) doRequest(req *http.Request, result interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[OpenAI API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[OpenAI API] ✗ %s %s: request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[OpenAI API] ✗ %s %s: failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[OpenAI API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[OpenAI API] ✗ unmarshal error for %s %s: %v (body: %s)", req.Method, req.URL.String(), err, string(respBody))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// IsConfigured returns true if the client has valid configuration
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}
