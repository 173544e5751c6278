package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

const sseKeepAlive = 25 * time.Second

// sseEndpoint streams events addressed to the caller. Admins receive every
// event.
func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	client := s.sseHub.Register(actor.UserID, actor.IsAdmin())
	defer s.sseHub.Unregister(client.ClientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case e, ok := <-client.Messages:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("id: " + e.EventID.String() + "\nevent: " + string(e.Type) + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
