package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps HTTP calls to the audiarr server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new audiarr API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) post(path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// API response types (mirror server types)

type DownloadItem struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	NormalizedURL string     `json:"normalized_url"`
	MediaID       *int64     `json:"media_id"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	ErrorMessage  *string    `json:"error_message"`
	FilePath      *string    `json:"file_path"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

type MediaItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Year     int    `json:"year"`
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
}

type EnqueueResponse struct {
	DownloadID int64  `json:"downloadId"`
	MediaID    *int64 `json:"mediaId"`
	URL        string `json:"url"`
	Status     string `json:"status"`
}

type DownloadDetail struct {
	Download DownloadItem `json:"download"`
	Media    *MediaItem   `json:"media"`
}

type ListResponse struct {
	Downloads []DownloadItem `json:"downloads"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PageSize  int            `json:"pageSize"`
}

type LogEntry struct {
	ID        int64          `json:"id"`
	Type      string         `json:"event_type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

type LogsResponse struct {
	Logs       []LogEntry `json:"logs"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"pagination"`
}

type ActionResponse struct {
	Success  bool   `json:"success"`
	DestPath string `json:"destPath"`
}

type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	Worker   *struct {
		IsRunning         bool       `json:"is_running"`
		CurrentDownloadID *int64     `json:"current_download_id"`
		LastProcessedAt   *time.Time `json:"last_processed_at"`
		ProcessedCount    int64      `json:"processed_count"`
		ErrorCount        int64      `json:"error_count"`
	} `json:"worker"`
}

// API methods

func (c *Client) Enqueue(url string) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	err := c.post("/api/downloads", map[string]string{"url": url}, &resp)
	return &resp, err
}

func (c *Client) Download(id int64) (*DownloadDetail, error) {
	var resp DownloadDetail
	err := c.get(fmt.Sprintf("/api/downloads/%d", id), &resp)
	return &resp, err
}

func (c *Client) Downloads(status string, page, pageSize int) (*ListResponse, error) {
	path := fmt.Sprintf("/api/downloads?page=%d&pageSize=%d", page, pageSize)
	if status != "" {
		path += "&status=" + status
	}
	var resp ListResponse
	err := c.get(path, &resp)
	return &resp, err
}

func (c *Client) Logs(id int64, page, limit int) (*LogsResponse, error) {
	var resp LogsResponse
	err := c.get(fmt.Sprintf("/api/downloads/%d/logs?page=%d&limit=%d", id, page, limit), &resp)
	return &resp, err
}

func (c *Client) Cancel(id int64) (*ActionResponse, error) {
	var resp ActionResponse
	err := c.post(fmt.Sprintf("/api/downloads/%d/cancel", id), nil, &resp)
	return &resp, err
}

func (c *Client) Retry(id int64) (*ActionResponse, error) {
	var resp ActionResponse
	err := c.post(fmt.Sprintf("/api/downloads/%d/retry", id), nil, &resp)
	return &resp, err
}

func (c *Client) Move(id int64) (*ActionResponse, error) {
	var resp ActionResponse
	err := c.post(fmt.Sprintf("/api/downloads/%d/move", id), nil, &resp)
	return &resp, err
}

func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	err := c.get("/api/downloads/stats", &resp)
	return &resp, err
}
