package api

import (
	"fmt"
	"net/http"
	"time"
)

// HandleEvents serves the live event stream over SSE. The session sends a
// ready marker immediately, then drains its subscriber channel, emitting a
// keep-alive ping whenever the stream is idle for the configured interval.
// The loop exits when the client goes away; the deferred unsubscribe keeps
// the broker's registry clean.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)

	writeSSE(w, "ping", []byte("ready"))
	flusher.Flush()

	done := r.Context().Done()
	timer := time.NewTimer(h.keepAlive)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case evt := <-sub.Events():
			writeSSE(w, evt.Name, evt.Data)
			flusher.Flush()
		case <-timer.C:
			writeSSE(w, "ping", []byte("keepalive"))
			flusher.Flush()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(h.keepAlive)
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
