package http

import (
	"encoding/json"
	"net/http"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// socketWrite is a client frame replacing one field.
type socketWrite struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// SubscribeSocket handles GET /ws?path=Slice.field (repeatable) as a
// WebSocket stream. Frames sent to the client carry the watched values as a
// JSON array, like /events. Clients may send {"path": ..., "value": ...}
// frames to replace a field; a rejected write is answered with {"error": ...}.
func (s *Server) SubscribeSocket(w http.ResponseWriter, r *http.Request) {
	paths, err := queryPaths(r)
	if err != nil {
		s.badRequest(w, "SubscribeSocket", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 16)
	cb := func(values []any) error {
		msg, err := json.Marshal(values)
		if err != nil {
			return nil
		}
		select {
		case ch <- msg:
		default:
			s.logger.Warn("websocket: client buffer full, dropping message", "paths", r.URL.Query()["path"])
		}
		return nil
	}

	s.mu.Lock()
	unsubscribe, err := s.engine.Subscribe(cb, paths...)
	s.mu.Unlock()
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer func() {
		s.mu.Lock()
		unsubscribe()
		s.mu.Unlock()
	}()

	writes := make(chan socketWrite)
	closed := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(closed)
		for {
			var msg socketWrite
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case writes <- msg:
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Debug("websocket client disconnected")
			return
		case msg := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case req := <-writes:
			if err := s.applySocketWrite(req); err != nil {
				s.logger.Warn("websocket write rejected", "path", req.Path, "err", err)
				if err := conn.WriteJSON(map[string]string{"error": err.Error()}); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) applySocketWrite(req socketWrite) error {
	path, err := domain.ParsePath(req.Path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DispatchState(path, req.Value)
}
