package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/vmunix/audiarr/internal/extractor"
)

type sandboxRequest struct {
	Args []string `json:"args"`
}

func (s *Server) sandboxRun(w http.ResponseWriter, r *http.Request) {
	var req sandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Args) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_state", "args required")
		return
	}

	result, err := s.sandbox.Run(r.Context(), req.Args)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// sandboxStream delivers sandbox output as server-sent events, one typed
// event per line of extractor output.
func (s *Server) sandboxStream(w http.ResponseWriter, r *http.Request) {
	var req sandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Args) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_state", "args required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The sandbox emits from its stdout and stderr readers concurrently;
	// the response writer needs one writer at a time.
	var mu sync.Mutex
	emit := func(e extractor.SandboxEvent) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		mu.Lock()
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, payload)
		flusher.Flush()
		mu.Unlock()
	}

	if err := s.sandbox.Stream(r.Context(), req.Args, emit); err != nil {
		s.log.Warn("sandbox stream failed", "error", err)
	}
}
