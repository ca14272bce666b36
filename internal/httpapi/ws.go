package httpapi

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/interaction"
)

const (
	wsFrameTurn  = "turn"
	wsFrameReply = "reply"
	wsFrameError = "error"
)

type wsClientFrame struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	SubmissionType string `json:"submission_type"`
}

type wsReplyFrame struct {
	Type string `json:"type"`
	*interaction.Reply
}

type wsErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsConn serializes writes; replies arrive from queue workers while the
// read loop may be writing errors.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeError(msg string) error {
	return c.write(wsErrorFrame{Type: wsFrameError, Error: msg})
}

// handleWS runs a session over a websocket. Each turn frame is queued and
// answered with a reply frame in order.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := s.deps.Lessons.Get(r.Context(), vars["lesson"]); err != nil {
		s.fail(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: isWebSocketOriginAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBytes)

	c := &wsConn{conn: conn}
	logger := s.logger.With(zap.String("learner", vars["learner"]), zap.String("lesson", vars["lesson"]))

	// pending tracks queued turns so their replies are written before the
	// connection is closed.
	var pending sync.WaitGroup
	defer pending.Wait()

	for {
		var frame wsClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if frame.Type != wsFrameTurn {
			_ = c.writeError(fmt.Sprintf("unsupported frame type %q", frame.Type))
			continue
		}

		turn, err := toTurn(vars, turnRequest{Message: frame.Message, SubmissionType: frame.SubmissionType})
		if err != nil {
			_ = c.writeError(err.Error())
			continue
		}

		pending.Add(1)
		err = s.deps.Turns.Enqueue(r.Context(), turn, func(res interaction.Result) {
			defer pending.Done()
			if res.Err != nil {
				logger.Warn("websocket turn failed", zap.Error(res.Err))
				_, msg := s.public(r, res.Err)
				_ = c.writeError(msg)
				return
			}
			_ = c.write(wsReplyFrame{Type: wsFrameReply, Reply: res.Reply})
		})
		if err != nil {
			pending.Done()
			_, msg := s.public(r, err)
			_ = c.writeError(msg)
		}
	}
}
