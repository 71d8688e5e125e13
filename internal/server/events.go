package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/recall-cli/internal/progress"
)

// handleScanEvents streams a run's progress as server-sent events. The
// stream ends when the run completes or the client disconnects. For a run
// with no live broker the current stored state is sent as a single event.
func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	s.mu.Lock()
	broker := s.brokers[id]
	s.mu.Unlock()

	if broker == nil {
		run, err := s.store.GetRun(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		sseHeaders(w)
		writeEvent(w, progress.Event{
			Kind:    progress.KindComplete,
			Message: fmt.Sprintf("run %s", run.Status),
			Percent: 100,
			Payload: run.Result,
		})
		flusher.Flush()
		return
	}

	ch, cancel := broker.Subscribe()
	defer cancel()

	sseHeaders(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w http.ResponseWriter, ev progress.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
}
