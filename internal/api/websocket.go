package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vtouch/internal/input"
	"vtouch/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Capture clients run on the local network, often from a plain page.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager tracks capture clients.
type WSManager struct {
	server       *Server
	clients      map[*WebSocketClient]bool
	clientsMu    sync.RWMutex
	register     chan *WebSocketClient
	unregister   chan *WebSocketClient
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// WebSocketClient is one connected capture stream. Raw events are translated
// with the client's own key state.
type WebSocketClient struct {
	manager    *WSManager
	conn       *websocket.Conn
	send       chan []byte
	id         string
	ip         string
	translator *input.Translator
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.clientsMu.Unlock()
			log.WithFields(log.Fields{"client": client.id, "remote": client.ip}).Printf("WS: client registered, %d connected", total)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.WithField("client", client.id).Printf("WS: client unregistered, %d connected", len(m.clients))
			}
			m.clientsMu.Unlock()

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				client.conn.Close()
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.shutdownOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) count() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WS: failed to upgrade connection")
		return
	}

	client := &WebSocketClient{
		manager:    m,
		conn:       conn,
		send:       make(chan []byte, 256),
		id:         uuid.NewString(),
		ip:         r.RemoteAddr,
		translator: input.NewTranslator(),
	}

	client.sendEnvelope(protocol.TypeAck, protocol.AckPayload{ClientID: client.id, Session: m.server.session})

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps capture messages from the connection to the reactor.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WS: read error")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if !c.handleMessage(message) {
			break
		}
	}
}

// writePump pumps replies to the connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.manager.shutdown:
			return
		}
	}
}

// handleMessage decodes one envelope. It reports false once the client sent
// the exit sentinel.
func (c *WebSocketClient) handleMessage(data []byte) bool {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.WithField("client", c.id).Debugf("WS: invalid envelope: %v", err)
		return true
	}

	switch env.Type {
	case protocol.TypeLine:
		var line string
		if err := json.Unmarshal(env.Payload, &line); err != nil {
			log.WithField("client", c.id).Debugf("WS: invalid line payload: %v", err)
			return true
		}
		msg, err := protocol.ParseLine(line)
		if err != nil {
			log.WithField("client", c.id).Debugf("WS: %v", err)
			return true
		}
		c.forward(msg)
		return msg.Kind != protocol.KindExit

	case protocol.TypeRaw:
		var ev protocol.RawEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			log.WithField("client", c.id).Debugf("WS: invalid raw payload: %v", err)
			return true
		}
		if msg, ok := c.translator.Translate(ev); ok {
			c.forward(msg)
		}

	case protocol.TypePing:
		c.sendEnvelope(protocol.TypePing, nil)

	default:
		log.WithField("client", c.id).Debugf("WS: ignoring %q envelope", env.Type)
	}
	return true
}

func (c *WebSocketClient) forward(msg protocol.Message) {
	out := c.manager.server.out
	if out == nil {
		return
	}
	select {
	case out <- msg:
	case <-c.manager.shutdown:
	}
}

func (c *WebSocketClient) sendEnvelope(t protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		log.WithError(err).Warn("WS: failed to encode reply")
		return
	}
	data, _ := json.Marshal(env)
	select {
	case c.send <- data:
	default:
		log.WithField("client", c.id).Debug("WS: reply dropped, send buffer full")
	}
}
