package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/models"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = 50 * time.Second
	liveSendBuffer = 16
)

// liveEvent is the wire shape pushed to room subscribers.
type liveEvent struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"roomId"`
	Payload interface{} `json:"payload,omitempty"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan liveEvent
}

// Hub fans pipeline events out to websocket subscribers, one subscriber
// set per room. It satisfies the pipeline's notifier contract: sends are
// best effort and a slow client is dropped rather than blocking a job
// handler.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*liveClient]bool
	upgrader websocket.Upgrader
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*liveClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// LiveHandler upgrades the connection and subscribes it to the room's
// event stream until the peer goes away.
func (h *Hub) LiveHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if _, err := primitive.ObjectIDFromHex(roomID); err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Error("failed to upgrade live connection")
		return
	}
	client := &liveClient{conn: conn, send: make(chan liveEvent, liveSendBuffer)}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*liveClient]bool)
	}
	h.rooms[roomID][client] = true
	h.mu.Unlock()
	zap.S().Infow("live subscriber connected", "roomId", roomID)

	go h.writePump(roomID, client)
	h.readPump(roomID, client)
}

// readPump discards inbound frames; the stream is one way. It exists to
// notice the close frame and tear the subscription down.
func (h *Hub) readPump(roomID string, client *liveClient) {
	defer h.drop(roomID, client)
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(livePongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(roomID string, client *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(roomID, client)
	}()
	for {
		select {
		case event, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(roomID string, client *liveClient) {
	h.mu.Lock()
	if subscribers, ok := h.rooms[roomID]; ok && subscribers[client] {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.rooms, roomID)
		}
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *Hub) broadcast(roomID primitive.ObjectID, event liveEvent) {
	h.mu.RLock()
	subscribers := h.rooms[roomID.Hex()]
	var dropped []*liveClient
	for client := range subscribers {
		select {
		case client.send <- event:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range dropped {
		zap.S().Warnw("dropping slow live subscriber", "roomId", roomID.Hex())
		h.drop(roomID.Hex(), client)
	}
}

// TurnPersisted pushes a newly persisted debate statement.
func (h *Hub) TurnPersisted(roomID primitive.ObjectID, turn *models.DebateTurn) {
	h.broadcast(roomID, liveEvent{Type: "turn", RoomID: roomID.Hex(), Payload: turn})
}

// RoomStatusChanged pushes a lifecycle transition.
func (h *Hub) RoomStatusChanged(roomID primitive.ObjectID, status models.RoomStatus) {
	h.broadcast(roomID, liveEvent{Type: "status", RoomID: roomID.Hex(), Payload: status})
}

// VerdictReady pushes the final decision.
func (h *Hub) VerdictReady(roomID primitive.ObjectID, decision *models.JudgeDecision) {
	h.broadcast(roomID, liveEvent{Type: "verdict", RoomID: roomID.Hex(), Payload: decision})
}
