// Package status broadcasts export progress to websocket clients.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

type Status struct {
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
	Type     int       `json:"type"`
	Progress float32   `json:"progress"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans every published status out to connected clients. New clients
// receive the last status first.
type Hub struct {
	lock        sync.Mutex
	clients     map[*client]bool
	lastMessage []byte
	upgrader    websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

var Default = NewHub()

func (h *Hub) register(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c] = true
	if h.lastMessage != nil {
		c.send <- h.lastMessage
	}
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Publish(s Status) {
	if math.IsNaN(float64(s.Progress)) || math.IsInf(float64(s.Progress), 0) {
		s.Progress = 0
	}
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	data, err := json.Marshal(&s)
	if err != nil {
		log.Printf("[status] marshal error: %v", err)
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.lastMessage = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow client, it catches up with the next message
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				h.unregister(c)
				return
			}
		}
	}
}

// ServeHTTP upgrades the request and streams statuses until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[status] ws upgrade error: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register(c)
	go h.writePump(c)

	// reads only detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

func Info(format string, a ...interface{}) {
	Default.Publish(Status{Message: fmt.Sprintf(format, a...), Type: INFO})
}

func Error(format string, a ...interface{}) {
	Default.Publish(Status{Message: fmt.Sprintf(format, a...), Type: ERROR})
}

func Progress(progress float32, format string, a ...interface{}) {
	Default.Publish(Status{Message: fmt.Sprintf(format, a...), Type: PROGRESS, Progress: progress})
}
