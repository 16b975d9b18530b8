package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams worker events over a WebSocket. The subscription
// is dropped by the hub if this writer falls behind; the closed channel
// ends the stream with a normal close frame.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Msgf("admin.Server.handleEvents upgrade failed err=%v", err)
		return
	}
	defer conn.Close()

	id, events := s.service.Events().Subscribe()
	defer s.service.Events().Unsubscribe(id)
	log.Info().Msgf("admin.Server.handleEvents subscriber=%d connected", id)

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-peerGone:
			log.Info().Msgf("admin.Server.handleEvents subscriber=%d disconnected", id)
			return
		case evt, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				log.Warn().Msgf("admin.Server.handleEvents subscriber=%d write failed err=%v", id, err)
				return
			}
		}
	}
}
