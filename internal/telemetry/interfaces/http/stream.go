package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	masterdata "greengauge/internal/masterdata/domain"
)

// stream handles GET /api/v1/devices/{device}/stream. Each committed poll
// tick is pushed as one snapshot event carrying the rendered view.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	req, err := h.parseViewRequest(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	device, err := h.catalog.Get(mux.Vars(r)["device"])
	if err != nil {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}

	sub, err := h.hub.Subscribe(r.Context(), device.Key)
	if errors.Is(err, masterdata.ErrUnknownDevice) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			req.Now = h.clock.Now()
			view, err := h.views.Build(r.Context(), device, snapshot, req)
			if err != nil {
				h.logf("stream: build view device=%s err=%v", device.Key, err)
				continue
			}
			payload, err := json.Marshal(view)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: snapshot\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
