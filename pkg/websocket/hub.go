package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"safeher/pkg/logger"
)

// Message types exchanged with clients.
const (
	TypeWelcome            = "welcome"
	TypeNotice             = "notice"
	TypeLocationRequest    = "location_request"
	TypeChatMessage        = "chat_message"
	TypeDispatchResult     = "dispatch_result"
	TypeVoiceState         = "voice_state"
	TypeTranscript         = "transcript"
	TypeSpeechError        = "speech_error"
	TypeSpeechEnd          = "speech_end"
	TypeSpeechCapabilities = "speech_capabilities"
	TypeLocation           = "location"
	TypeLocationError      = "location_error"
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	done       chan struct{}
	onRegister func(sessionID string)
	log        *logger.Logger
}

type Message struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// OnRegister sets a callback run after each client joins its session. It must be set
// before Run.
func (h *Hub) OnRegister(fn func(sessionID string)) {
	h.onRegister = fn
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)
			if h.onRegister != nil {
				h.onRegister(client.SessionID)
			}

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// join hands client to Run. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands client to Run for removal. After shutdown every client is already gone.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoom(client, roomName(client.SessionID))
	h.log.WithSessionID(client.SessionID).Debug("websocket client registered")

	h.sendToClient(client, Message{
		Type:      TypeWelcome,
		SessionID: client.SessionID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeClient(client)
}

// removeClient expects the write lock to be held.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.log.WithSessionID(client.SessionID).Debug("websocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeClient(client)
	}
}

// SendToSession delivers message to every client connected for the session. Clients
// whose buffers are full are dropped.
func (h *Hub) SendToSession(sessionID string, message Message) {
	message.SessionID = sessionID
	if message.Timestamp == 0 {
		message.Timestamp = getCurrentTimestamp()
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal websocket message")
		return
	}

	var slow []*Client
	h.mutex.RLock()
	for client := range h.rooms[roomName(sessionID)] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range slow {
		h.removeClient(client)
	}
	h.mutex.Unlock()
}

// ClientCount reports how many clients are connected for the session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomName(sessionID)])
}

// sendToClient expects the lock to be held.
func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
		h.removeClient(client)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

func roomName(sessionID string) string {
	return "session_" + sessionID
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
