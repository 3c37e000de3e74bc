package server

import (
	"net/http"

	"mcp/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub is the main Hub loop. All client map mutation happens here, so no
// lock is needed on the clients map.
func (s *APIServer) runHub() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.Logger.Debug("Client registered, %d connected", len(s.clients))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case notif := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- notif:
				default:
					// Client too slow, disconnect to keep the Hub from
					// blocking on one dead consumer.
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a notification for every connected session. Non-blocking:
// if the hub buffer is full the notification is dropped with a log line
// rather than stalling the caller.
func (s *APIServer) Broadcast(notif *models.MNotification) {
	select {
	case s.broadcast <- notif:
	case <-s.done:
	default:
		s.Logger.Warning("Broadcast buffer full, dropping notification %s", notif.ID)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MNotification, 64),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}
