package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vtouch/internal/protocol"
)

// Forwarder sends captured messages to a remote instance.
type Forwarder interface {
	Send(m protocol.Message) bool
	Close()
}

// WSClient forwards protocol lines to a remote /ws endpoint, reconnecting
// until closed.
type WSClient struct {
	hostAddr  string
	token     string
	retry     time.Duration
	send      chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	isConnected bool
	clientID    string
}

// NewWSClient creates a forwarder for hostAddr ("host:port").
func NewWSClient(hostAddr, token string) *WSClient {
	return &WSClient{
		hostAddr: hostAddr,
		token:    token,
		retry:    5 * time.Second,
		send:     make(chan protocol.Message, 256),
		done:     make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		select {
		case <-c.done:
			return
		case <-time.After(c.retry):
			log.Debug("WS Client: attempting reconnection")
		}
	}
}

func (c *WSClient) url() string {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	if c.token != "" {
		u.RawQuery = url.Values{"token": {c.token}}.Encode()
	}
	return u.String()
}

func (c *WSClient) connect() {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url(), header)
	if err != nil {
		log.WithError(err).Warnf("WS Client: connection to %s failed", c.hostAddr)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()
	log.Printf("WS Client: connected to %s", c.hostAddr)

	stop := make(chan struct{})
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(conn, stop)
	}()

	c.readPump(conn)
	close(stop)

	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WS Client: read error")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debugf("WS Client: invalid message: %v", err)
			continue
		}
		if env.Type == protocol.TypeAck {
			var ack protocol.AckPayload
			if err := json.Unmarshal(env.Payload, &ack); err == nil {
				c.mu.Lock()
				c.clientID = ack.ClientID
				c.mu.Unlock()
				log.WithFields(log.Fields{"client": ack.ClientID, "session": ack.Session}).Debug("WS Client: registered")
			}
		}
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(protocol.LineEnvelope(msg)); err != nil {
				log.WithError(err).Warn("WS Client: write error")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return

		case <-c.done:
			c.flush(conn)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
			return
		}
	}
}

// flush writes whatever is still queued.
func (c *WSClient) flush(conn *websocket.Conn) {
	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteJSON(protocol.LineEnvelope(msg)); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues m for the remote. It reports false when the queue is full or
// the client is closed.
func (c *WSClient) Send(m protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- m:
		return true
	default:
		log.Debugf("WS Client: dropping %s, queue full", m)
		return false
	}
}

// IsConnected returns true if client is connected to host
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// WaitConnected blocks until the client is connected, ctx ends or the client
// is closed, and reports whether it is connected.
func (c *WSClient) WaitConnected(ctx context.Context) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !c.IsConnected() {
		select {
		case <-ctx.Done():
			return false
		case <-c.done:
			return false
		case <-ticker.C:
		}
	}
	return true
}

// ClientID returns the id assigned by the remote, empty before the first ack.
func (c *WSClient) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Close stops the client
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
