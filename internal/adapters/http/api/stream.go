package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/query"
)

const heartbeatInterval = 15 * time.Second

// StreamDependencies defines the interface for live employee subscriptions.
type StreamDependencies interface {
	employeeReader
	WatchEmployee(ctx context.Context, employeeID, collection string, fn repository.ChangeFunc) (*query.Subscription, error)
}

// StreamHandler serves live record sets as server-sent events.
type StreamHandler struct {
	deps      StreamDependencies
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{deps: deps, heartbeat: heartbeatInterval}
}

type snapshotEvent struct {
	Collection string           `json:"collection"`
	Mode       query.Mode       `json:"mode"`
	Records    []map[string]any `json:"records"`
}

// latest holds the newest snapshot not yet written. Older ones are dropped.
type latest struct {
	mu     sync.Mutex
	docs   []repository.Document
	err    error
	signal chan struct{}
}

func (l *latest) set(docs []repository.Document, err error) {
	l.mu.Lock()
	l.docs, l.err = docs, err
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *latest) take() ([]repository.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.docs, l.err
}

// HandleStream handles GET /employees/{id}/stream?collection=goals|feedbacks|performanceMetrics.
// Each change to the employee's records produces a "snapshot" event with the
// full current set.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	emp, err := authorizeEmployee(r, h.deps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, ErrStreaming)
		return
	}
	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = model.CollectionGoals
	}

	ctx := r.Context()
	state := &latest{signal: make(chan struct{}, 1)}
	sub, err := h.deps.WatchEmployee(ctx, emp.ID, collection, state.set)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-state.signal:
			docs, err := state.take()
			if err != nil {
				_ = writeEvent(w, "error", errorResponse{Code: "stream_failed", Message: err.Error()})
				flusher.Flush()
				return
			}
			ev := snapshotEvent{Collection: collection, Mode: sub.Mode(), Records: flatten(docs)}
			if err := writeEvent(w, "snapshot", ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write %s event: %w", name, err)
	}
	return nil
}

// flatten turns documents into JSON objects carrying their key as "id".
func flatten(docs []repository.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		rec := make(map[string]any, len(d.Data)+1)
		for k, v := range d.Data {
			rec[k] = v
		}
		rec["id"] = d.ID
		out = append(out, rec)
	}
	return out
}
