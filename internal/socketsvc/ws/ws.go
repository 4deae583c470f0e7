package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/assassin-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type client struct {
	conn     Conn
	role     string
	playerID string
	mu       sync.Mutex // gorilla connections take one writer at a time
}

func (c *client) write(m *comm.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(m)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles a message sent by a web client.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "ping":
		s.send(socketId, &comm.WSMessage{Type: "pong", SocketId: socketId})
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) StoreConnection(socketId string, conn Conn, role, playerID string) {
	s.connMap.Store(socketId, &client{conn: conn, role: role, playerID: playerID})
	log.Infof("socket %s registered for %s %s", socketId, role, playerID)
}

func (s *Ws) GetConnection(socketId string) (Conn, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client).conn, true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Broadcast writes a message of the given type to every client accepted by deliver and
// returns how many received it. A nil deliver reaches everyone.
func (s *Ws) Broadcast(msgType string, data json.RawMessage, deliver func(role, playerID string) bool) int {
	sent := 0
	s.connMap.Range(func(key, value any) bool {
		c := value.(*client)
		if deliver != nil && !deliver(c.role, c.playerID) {
			return true
		}
		socketId := key.(string)
		if err := c.write(&comm.WSMessage{Type: msgType, Data: data, SocketId: socketId}); err != nil {
			log.Warnf("unable to write to socket %s: %v", socketId, err)
			return true
		}
		sent++
		return true
	})
	return sent
}

// SendError reports a bad client message back to that client only.
func (s *Ws) SendError(socketId, text string) {
	data, _ := json.Marshal(text)
	s.send(socketId, &comm.WSMessage{Type: "error", Data: data, SocketId: socketId})
}

func (s *Ws) send(socketId string, m *comm.WSMessage) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return
	}
	if err := c.(*client).write(m); err != nil {
		log.Warnf("unable to write to socket %s: %v", socketId, err)
	}
}
