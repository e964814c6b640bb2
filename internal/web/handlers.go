package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-organizer/internal/naming"
	"github.com/kozaktomas/face-organizer/internal/pipeline"
)

// errInvalidRequestBody is a shared error message for invalid JSON bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// healthCheck handles the health check endpoint.
func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// status reports the latest counters and the number of pending naming
// requests.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	pending := 0
	if session := s.currentSession(); session != nil {
		pending = len(session.Pending())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"counts":         s.broadcaster.Counts(),
		"naming_pending": pending,
	})
}

// events streams pipeline events as SSE until the client disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := s.broadcaster.AddListener()
	defer s.broadcaster.RemoveListener(eventCh)

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
			if event.Type == pipeline.EventDone || event.Type == pipeline.EventStopped {
				return
			}
		}
	}
}

// sendSSEEvent writes one SSE frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}

type pendingRequest struct {
	ClusterID      string `json:"cluster_id"`
	Representative string `json:"representative"`
	MemberCount    int    `json:"member_count"`
}

// namingPending lists clusters waiting for a name decision.
func (s *Server) namingPending(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession()
	if session == nil {
		respondJSON(w, http.StatusOK, []pendingRequest{})
		return
	}

	pending := session.Pending()
	out := make([]pendingRequest, 0, len(pending))
	for _, req := range pending {
		out = append(out, pendingRequest{
			ClusterID:      req.ClusterID,
			Representative: req.Representative.ImagePath,
			MemberCount:    req.MemberCount,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type nameRequest struct {
	Name string `json:"name"`
}

// namingSubmit records the name decision for one cluster. An empty name marks
// the cluster as skipped.
func (s *Server) namingSubmit(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")
	if clusterID == "" {
		respondError(w, http.StatusBadRequest, "missing cluster ID")
		return
	}

	session := s.currentSession()
	if session == nil {
		respondError(w, http.StatusConflict, "no naming session active")
		return
	}

	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := session.Submit(clusterID, naming.SanitizeName(req.Name)); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// stop requests a cooperative stop of the detection phase.
func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stopFn := s.stopFn
	s.mu.RUnlock()

	if stopFn == nil {
		respondError(w, http.StatusConflict, "no run in progress")
		return
	}
	stopFn()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

type personInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Skipped bool   `json:"skipped"`
	Members int    `json:"members"`
}

// people lists the known clusters with their naming state.
func (s *Server) people(w http.ResponseWriter, r *http.Request) {
	all := s.store.All()
	out := make([]personInfo, 0, len(all))
	for _, c := range all {
		out = append(out, personInfo{
			ID:      c.ID,
			Name:    c.Name,
			Skipped: c.Skipped,
			Members: len(c.Members),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
