package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"hlsforge/internal/api"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	address string
	http    *http.Client
}

func newAPIClient(address string) (*apiClient, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("daemon API address is not configured; set paths.api_bind or pass --address")
	}
	return &apiClient{
		address: address,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) url(path string) string {
	return "http://" + c.address + path
}

func (c *apiClient) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

func (c *apiClient) Videos(ctx context.Context) ([]api.Video, error) {
	var payload api.VideoListResponse
	if err := c.getJSON(ctx, "/api/videos", &payload); err != nil {
		return nil, err
	}
	return payload.Videos, nil
}

func (c *apiClient) Video(ctx context.Context, id int64) (api.Video, error) {
	var payload api.VideoResponse
	err := c.getJSON(ctx, fmt.Sprintf("/api/videos/%d", id), &payload)
	return payload.Video, err
}

func (c *apiClient) AddVideo(ctx context.Context, title, sourcePath string) (api.Video, error) {
	var payload api.VideoResponse
	err := c.postJSON(ctx, "/api/videos", api.AddVideoRequest{Title: title, SourcePath: sourcePath}, &payload)
	return payload.Video, err
}

func (c *apiClient) SubmitJob(ctx context.Context, videoID int64, segmentSeconds int) (string, error) {
	var payload api.SubmitJobResponse
	err := c.postJSON(ctx,
		fmt.Sprintf("/api/videos/%d/jobs", videoID),
		api.SubmitJobRequest{SegmentSeconds: segmentSeconds},
		&payload,
	)
	return payload.JobID, err
}

func (c *apiClient) Jobs(ctx context.Context, statuses ...string) ([]api.Job, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		query := make([]string, 0, len(statuses))
		for _, status := range statuses {
			query = append(query, "status="+status)
		}
		path += "?" + strings.Join(query, "&")
	}
	var payload api.JobListResponse
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) Job(ctx context.Context, id string) (api.Job, error) {
	var payload api.JobResponse
	err := c.getJSON(ctx, "/api/jobs/"+id, &payload)
	return payload.Job, err
}

// WatchJob streams progress events for a job until a terminal event arrives,
// the daemon closes the stream, or ctx is cancelled.
func (c *apiClient) WatchJob(ctx context.Context, jobID string, fn func(api.ProgressEvent)) error {
	wsURL := "ws://" + c.address + "/api/jobs/" + jobID + "/progress"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeErrorResponse(resp)
		}
		return wrapConnectError(err, c.address)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var evt api.ProgressEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read progress stream: %w", err)
		}
		fn(evt)
		if evt.Terminal {
			return nil
		}
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *apiClient) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapConnectError(err, c.address)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeErrorResponse(resp)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeErrorResponse(resp *http.Response) error {
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}

func wrapConnectError(err error, address string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `hlsforged`", address)
	}
	return fmt.Errorf("connect to daemon at %s: %w", address, err)
}
