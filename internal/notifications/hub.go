package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Cabralneto/site-tracker-pro/internal/permits"
	"github.com/Cabralneto/site-tracker-pro/pkg/workflows"
)

// StatusMessage is pushed to every connected client when a permit changes
// status.
type StatusMessage struct {
	Type        string    `json:"type"`
	PermitID    uuid.UUID `json:"pt_id"`
	NumeroPT    string    `json:"numero_pt"`
	Status      string    `json:"status"`
	Responsavel *string   `json:"responsavel_atraso,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Hub fans permit status changes out to WebSocket clients. Delivery is
// fire-and-forget: slow clients are disconnected rather than blocking the
// transition path.
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]bool
	broadcast   chan StatusMessage
	stop        chan struct{}
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

type connection struct {
	conn *websocket.Conn
	send chan StatusMessage
}

// NewHub creates the hub and starts its broadcast loop.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		connections: make(map[*connection]bool),
		broadcast:   make(chan StatusMessage, 256),
		stop:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The API is served behind the portal's reverse proxy which
				// enforces the origin.
				return true
			},
		},
		logger: logger,
	}

	go h.run()
	return h
}

// BroadcastStatus implements the permit service's broadcaster. It never
// blocks: when the channel is full the message is dropped and logged.
func (h *Hub) BroadcastStatus(permitID uuid.UUID, numeroPT string, status workflows.Status, responsavel *permits.Responsavel) {
	msg := StatusMessage{
		Type:      "pt_status",
		PermitID:  permitID,
		NumeroPT:  numeroPT,
		Status:    string(status),
		Timestamp: time.Now(),
	}
	if responsavel != nil {
		r := string(*responsavel)
		msg.Responsavel = &r
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping status message",
			zap.String("pt_id", permitID.String()))
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	conn := &connection{
		conn: ws,
		send: make(chan StatusMessage, 64),
	}

	h.mu.Lock()
	h.connections[conn] = true
	h.mu.Unlock()

	go h.writePump(conn)
	go h.readPump(conn)
}

// ConnectionCount reports the number of active clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close disconnects all clients and stops the broadcast loop.
func (h *Hub) Close() {
	close(h.stop)
}

func (h *Hub) run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*connection, 0, len(h.connections))
			for conn := range h.connections {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				select {
				case conn.send <- msg:
				default:
					h.drop(conn)
				}
			}

		case <-h.stop:
			h.mu.Lock()
			for conn := range h.connections {
				close(conn.send)
				conn.conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		close(conn.send)
		conn.conn.Close()
	}
}

// readPump discards client messages; the socket is push-only. It exists to
// process control frames and detect disconnects.
func (h *Hub) readPump(conn *connection) {
	defer h.drop(conn)

	conn.conn.SetReadLimit(512)
	conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
