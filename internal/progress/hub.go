package progress

import (
	"sync"
	"time"
)

const subscriberBuffer = 256

// Event is a single progress update for a transcoding job.
type Event struct {
	JobID        string    `json:"job_id"`
	VideoID      int64     `json:"video_id"`
	Percent      float64   `json:"percent"`
	Stage        string    `json:"stage,omitempty"`
	Terminal     bool      `json:"terminal"`
	Failed       bool      `json:"failed,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"ts"`
}

// Subscription delivers events for one job. Events returns a channel that is
// closed after the job's terminal event has been delivered or the
// subscription is closed.
type Subscription struct {
	hub    *Hub
	jobID  string
	events chan Event
	once   sync.Once
}

// Events returns the subscriber's delivery channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscriber from the hub. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.jobID, s)
	})
}

// Hub fans progress events out to per-job subscribers. Delivery is live-only:
// events published before a subscriber attaches are gone, and publishing never
// blocks. A subscriber that falls more than subscriberBuffer events behind
// misses intermediate updates, but never the terminal event. The job row in the store is the durable record;
// callers that need the outcome of a finished job read it from there.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*Subscription]struct{}
}

// NewHub constructs an empty progress hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in a job's progress stream. The subscriber
// sees only events published after this call returns. Callers must Close the
// subscription.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		hub:    h,
		jobID:  jobID,
		events: make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[jobID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subscribers[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish delivers an event to every subscriber of its job. With no
// subscribers the event is dropped. Terminal events close all subscriber
// channels and release the job's topic.
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers[evt.JobID] {
		select {
		case sub.events <- evt:
		default:
			if evt.Terminal {
				// A stream must not end without its outcome; evict one stale
				// update to make room for the terminal event.
				select {
				case <-sub.events:
				default:
				}
				select {
				case sub.events <- evt:
				default:
				}
			}
		}
		if evt.Terminal {
			close(sub.events)
		}
	}
	if evt.Terminal {
		delete(h.subscribers, evt.JobID)
	}
}

// SubscriberCount reports the number of live subscribers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[jobID])
}

func (h *Hub) unsubscribe(jobID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[jobID]
	if !ok {
		return
	}
	if _, present := set[sub]; !present {
		return
	}
	delete(set, sub)
	close(sub.events)
	if len(set) == 0 {
		delete(h.subscribers, jobID)
	}
}
