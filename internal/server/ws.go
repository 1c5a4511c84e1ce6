package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsError is sent to the client when a query fails. The connection
// stays open.
type wsError struct {
	Error string `json:"error"`
}

// handleWS runs a chat session over a websocket. Each client message
// is a QueryRequest; each reply is either a QueryResponse or a wsError.
// Session continuity works the same way as the REST endpoint: the
// client echoes back the session_id it received.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("websocket client connected", "remote", conn.RemoteAddr())

	for {
		var req QueryRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if req.Query == "" {
			if err := conn.WriteJSON(wsError{Error: "query is required"}); err != nil {
				return
			}
			continue
		}

		resp, err := s.assistant.Query(r.Context(), req.Query, req.SessionID)
		if err != nil {
			s.logger.Error("websocket query failed", "query", truncate(req.Query, maxQueryLogLen), "error", err)
			if err := conn.WriteJSON(wsError{Error: "failed to answer query"}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}
