package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hlsforge/internal/api"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
	"hlsforge/internal/progress"
)

const progressWriteTimeout = 10 * time.Second

// The API binds to loopback; cross-origin browser pages on the same host are
// allowed so local dashboards can connect.
var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleJobProgress streams a job's progress events over a websocket. For a
// job that already reached a terminal state, a single terminal event is sent
// and the connection closes normally.
func (s *apiServer) handleJobProgress(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	job, err := s.daemon.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	logger := s.log().With(logging.String(logging.FieldJobID, jobID))

	// Terminal jobs have no live stream; report the recorded outcome once.
	if job.Status.IsTerminal() {
		s.writeProgressEvent(conn, terminalEventFromJob(job))
		s.closeProgressStream(conn)
		return
	}

	sub := s.daemon.hub.Subscribe(jobID)
	defer sub.Close()

	// The job may have finished between the lookup and the subscribe. The hub
	// keeps no history, so re-check the durable row and report the recorded
	// outcome instead of waiting on a stream that will never produce.
	refreshed, err := s.daemon.store.GetJob(r.Context(), jobID)
	if err == nil && refreshed != nil && refreshed.Status.IsTerminal() {
		s.writeProgressEvent(conn, terminalEventFromJob(refreshed))
		s.closeProgressStream(conn)
		return
	}

	// Detect client disconnects so the subscription is released promptly.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				s.closeProgressStream(conn)
				return
			}
			if err := s.writeProgressEvent(conn, evt); err != nil {
				logger.Debug("progress write failed; dropping subscriber", logging.Error(err))
				return
			}
		}
	}
}

func (s *apiServer) writeProgressEvent(conn *websocket.Conn, evt progress.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
	return conn.WriteJSON(api.FromProgressEvent(evt))
}

func (s *apiServer) closeProgressStream(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
	_ = conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
	)
}

func terminalEventFromJob(job *library.Job) progress.Event {
	evt := progress.Event{
		JobID:    job.ID,
		VideoID:  job.VideoID,
		Percent:  job.ProgressPercent,
		Terminal: true,
	}
	if job.Status == library.JobStatusFailed {
		evt.Failed = true
		evt.ErrorMessage = job.ErrorMessage
	} else {
		evt.Percent = 100
	}
	return evt
}
