// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wheelsim

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeJoin  = "JOIN"
	MsgTypeState = "STATE"
	MsgTypePing  = "PING"
	MsgTypePong  = "PONG"
	MsgTypeError = "ERROR"
)

// Message is a websocket frame in either direction.
type Message struct {
	Type  string `json:"type"`
	State *State `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// hubRequest is a message read from a client, handled on the hub goroutine.
type hubRequest struct {
	client *wsClient
	msg    Message
}

// Hub fans engine states out to every connected page.
type Hub struct {
	snapshot func() State
	log      *zap.Logger

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	requests   chan hubRequest
	states     chan State

	stop chan struct{}
	done chan struct{}
}

func newHub(snapshot func() State, logger *zap.Logger) *Hub {
	return &Hub{
		snapshot:   snapshot,
		log:        logger,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		requests:   make(chan hubRequest, 16),
		states:     make(chan State, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case req := <-h.requests:
			if h.clients[req.client] {
				h.handle(req.client, req.msg)
			}
		case s := <-h.states:
			h.broadcast(Message{Type: MsgTypeState, State: &s})
		case <-h.stop:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Publish queues s for every client. It never blocks the engine.
func (h *Hub) Publish(s State) {
	select {
	case h.states <- s:
	default:
		h.log.Warn("Hub channel full, dropping state", zap.String("phase", s.Phase))
	}
}

func (h *Hub) handle(c *wsClient, msg Message) {
	switch msg.Type {
	case MsgTypeJoin:
		s := h.snapshot()
		h.send(c, Message{Type: MsgTypeState, State: &s})
	case MsgTypePing:
		h.send(c, Message{Type: MsgTypePong})
	default:
		h.log.Debug("Unknown message type", zap.String("type", msg.Type))
		h.send(c, Message{Type: MsgTypeError, Error: "Unknown message type"})
	}
}

// send drops a client whose buffer is full.
func (h *Hub) send(c *wsClient, msg Message) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		h.send(client, msg)
	}
}

func (h *Hub) shutdown() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.done
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan Message, 16)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("Websocket closed", zap.Error(err))
			}
			return
		}
		select {
		case c.hub.requests <- hubRequest{client: c, msg: msg}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
