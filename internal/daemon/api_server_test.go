package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hlsforge/internal/api"
	"hlsforge/internal/daemon"
	"hlsforge/internal/library"
	"hlsforge/internal/testsupport"
)

func startTestDaemon(t *testing.T, encoder *stubEncoder) (*daemon.Daemon, string, string) {
	t.Helper()

	d, _, cfg := newTestDaemon(t, encoder)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	source := filepath.Join(cfg.Paths.MediaDir, "sintel.mp4")
	testsupport.WriteFile(t, source, 2048)

	return d, "http://" + d.APIAddr(), source
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func addVideo(t *testing.T, baseURL, sourcePath string) api.Video {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/videos", api.AddVideoRequest{Title: "Sintel", SourcePath: sourcePath})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var payload api.VideoResponse
	decodeJSON(t, resp, &payload)
	return payload.Video
}

func submitJob(t *testing.T, baseURL string, videoID int64) string {
	t.Helper()
	resp := postJSON(t, fmt.Sprintf("%s/api/videos/%d/jobs", baseURL, videoID), api.SubmitJobRequest{})
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	var payload api.SubmitJobResponse
	decodeJSON(t, resp, &payload)
	if payload.JobID == "" {
		t.Fatal("expected job id in response")
	}
	return payload.JobID
}

func waitForAPIJobStatus(t *testing.T, baseURL, jobID string, want string) api.Job {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/api/jobs/" + jobID)
		if err != nil {
			t.Fatalf("GET job: %v", err)
		}
		var payload api.JobResponse
		decodeJSON(t, resp, &payload)
		if payload.Job.Status == want {
			return payload.Job
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to reach %s (last: %+v)", jobID, want, payload.Job)
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func TestAPITranscodeLifecycle(t *testing.T) {
	t.Parallel()

	_, baseURL, source := startTestDaemon(t, &stubEncoder{segments: 3})

	video := addVideo(t, baseURL, source)
	if video.State != string(library.VideoStatePending) {
		t.Fatalf("expected pending video, got %+v", video)
	}

	jobID := submitJob(t, baseURL, video.ID)
	job := waitForAPIJobStatus(t, baseURL, jobID, string(library.JobStatusCompleted))
	if job.ProgressPercent != 100 {
		t.Fatalf("expected 100 percent, got %v", job.ProgressPercent)
	}

	// video now reports its manifest and segment count
	resp, err := http.Get(fmt.Sprintf("%s/api/videos/%d", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET video: %v", err)
	}
	var videoPayload api.VideoResponse
	decodeJSON(t, resp, &videoPayload)
	if videoPayload.Video.State != string(library.VideoStateComplete) {
		t.Fatalf("expected complete video, got %+v", videoPayload.Video)
	}
	if videoPayload.Video.SegmentCount != 3 {
		t.Fatalf("expected 3 segments, got %d", videoPayload.Video.SegmentCount)
	}

	// manifest is served with the HLS content type and cache header
	resp, err = http.Get(fmt.Sprintf("%s/api/videos/%d/manifest", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET manifest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 manifest, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "max-age=3600" {
		t.Fatalf("unexpected cache control %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "#EXTM3U") {
		t.Fatalf("expected playlist body, got %q", body)
	}

	// segments are served by name with the transport stream content type
	resp, err = http.Get(fmt.Sprintf("%s/api/videos/%d/segments/output0.ts", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET segment: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 segment, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "video/mp2t" {
		t.Fatalf("unexpected segment content type %q", got)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/videos/%d/segments/output9.ts", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET segment: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown segment, got %d", resp.StatusCode)
	}
}

func TestAPISubmitJobErrors(t *testing.T) {
	t.Parallel()

	_, baseURL, source := startTestDaemon(t, &stubEncoder{segments: 1, fail: true})

	// unknown video
	resp := postJSON(t, baseURL+"/api/videos/9999/jobs", api.SubmitJobRequest{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	video := addVideo(t, baseURL, source)

	// invalid segment duration
	resp = postJSON(t, fmt.Sprintf("%s/api/videos/%d/jobs", baseURL, video.ID), api.SubmitJobRequest{SegmentSeconds: 500})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIManifestQueuesTranscodeWhenNotReady(t *testing.T) {
	t.Parallel()

	_, baseURL, source := startTestDaemon(t, &stubEncoder{segments: 2})
	video := addVideo(t, baseURL, source)

	// first request finds no output and queues a transcode
	resp, err := http.Get(fmt.Sprintf("%s/api/videos/%d/manifest", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET manifest: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		resp.Body.Close()
		t.Fatalf("expected 409 for pending video, got %d", resp.StatusCode)
	}
	var pending api.ManifestPendingResponse
	decodeJSON(t, resp, &pending)
	if pending.JobID == "" {
		t.Fatalf("expected queued job id, got %+v", pending)
	}

	// once the queued job completes the same request serves the playlist
	waitForAPIJobStatus(t, baseURL, pending.JobID, string(library.JobStatusCompleted))
	resp, err = http.Get(fmt.Sprintf("%s/api/videos/%d/manifest", baseURL, video.ID))
	if err != nil {
		t.Fatalf("GET manifest: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after transcode, got %d", resp.StatusCode)
	}
}

func TestAPIStatusEndpoint(t *testing.T) {
	t.Parallel()

	_, baseURL, _ := startTestDaemon(t, &stubEncoder{segments: 1})

	resp, err := http.Get(baseURL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status api.DaemonStatus
	decodeJSON(t, resp, &status)
	if !status.Running {
		t.Fatal("expected running daemon in status payload")
	}
	if status.PID == 0 || status.LibraryDBPath == "" {
		t.Fatalf("unexpected status payload: %+v", status)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
}

func TestAPIJobListFilters(t *testing.T) {
	t.Parallel()

	_, baseURL, source := startTestDaemon(t, &stubEncoder{segments: 2})
	video := addVideo(t, baseURL, source)
	jobID := submitJob(t, baseURL, video.ID)
	waitForAPIJobStatus(t, baseURL, jobID, string(library.JobStatusCompleted))

	resp, err := http.Get(baseURL + "/api/jobs?status=completed")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	var payload api.JobListResponse
	decodeJSON(t, resp, &payload)
	if len(payload.Jobs) != 1 || payload.Jobs[0].ID != jobID {
		t.Fatalf("unexpected job list: %+v", payload.Jobs)
	}

	resp, err = http.Get(baseURL + "/api/jobs?status=bogus")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestAPIProgressWebsocketStreamsTerminalState(t *testing.T) {
	t.Parallel()

	d, baseURL, source := startTestDaemon(t, &stubEncoder{segments: 2})
	video := addVideo(t, baseURL, source)
	jobID := submitJob(t, baseURL, video.ID)
	waitForAPIJobStatus(t, baseURL, jobID, string(library.JobStatusCompleted))

	wsURL := "ws://" + d.APIAddr() + "/api/jobs/" + jobID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt api.ProgressEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read progress event: %v", err)
	}
	if !evt.Terminal || evt.Failed || evt.Percent != 100 {
		t.Fatalf("unexpected terminal event: %+v", evt)
	}
	if evt.JobID != jobID {
		t.Fatalf("expected job id %s, got %s", jobID, evt.JobID)
	}
}

func TestAPIProgressWebsocketUnknownJob(t *testing.T) {
	t.Parallel()

	d, _, _ := startTestDaemon(t, &stubEncoder{segments: 1})

	wsURL := "ws://" + d.APIAddr() + "/api/jobs/no-such-job/progress"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown job")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
