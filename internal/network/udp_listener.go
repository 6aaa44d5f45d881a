package network

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/input"
	"vtouch/internal/protocol"
)

// UDPListener accepts binary capture packets from forwarders and turns them
// into protocol messages. Each remote gets its own key state and duplicate
// filter.
type UDPListener struct {
	port    int
	conn    *net.UDPConn
	out     chan<- protocol.Message
	peers   map[string]*udpPeer
	peersMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

type udpPeer struct {
	addr       *net.UDPAddr
	lastSeen   time.Time
	dedup      seqDedup
	translator *input.Translator
}

// seqDedup tracks recently seen sequence numbers to discard redundant packets.
// Uses a fixed-size ring buffer, O(1) lookup.
type seqDedup struct {
	ring [512]uint32
	pos  int
	seen map[uint32]struct{}
}

func newSeqDedup() seqDedup {
	return seqDedup{seen: make(map[uint32]struct{}, 512)}
}

func (d *seqDedup) isDuplicate(seq uint32) bool {
	if _, ok := d.seen[seq]; ok {
		return true
	}
	old := d.ring[d.pos]
	if old != 0 {
		delete(d.seen, old)
	}
	d.ring[d.pos] = seq
	d.seen[seq] = struct{}{}
	d.pos = (d.pos + 1) % len(d.ring)
	return false
}

// NewUDPListener creates a listener on port; zero picks a free port.
func NewUDPListener(port int, out chan<- protocol.Message) *UDPListener {
	return &UDPListener{
		port:  port,
		out:   out,
		peers: make(map[string]*udpPeer),
		done:  make(chan struct{}),
	}
}

// Start binds the socket and begins receiving.
func (l *UDPListener) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: l.port})
	if err != nil {
		return fmt.Errorf("udp listen :%d: %w", l.port, err)
	}
	l.conn = conn
	conn.SetReadBuffer(1 << 20)

	log.Printf("UDP Listener: listening on %s", conn.LocalAddr())

	l.wg.Add(2)
	go l.readLoop()
	go l.cleanupLoop()
	return nil
}

// Addr returns the bound address.
func (l *UDPListener) Addr() *net.UDPAddr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Peers returns the number of registered forwarders.
func (l *UDPListener) Peers() int {
	l.peersMu.Lock()
	defer l.peersMu.Unlock()
	return len(l.peers)
}

func (l *UDPListener) readLoop() {
	defer l.wg.Done()
	buf := make([]byte, 64)
	for {
		n, remoteAddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				continue
			}
		}

		pkt, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			log.Debugf("UDP Listener: %v from %s", err, remoteAddr)
			continue
		}
		l.handle(pkt, remoteAddr)
	}
}

func (l *UDPListener) peer(addr *net.UDPAddr) *udpPeer {
	key := addr.String()
	l.peersMu.Lock()
	defer l.peersMu.Unlock()
	p, ok := l.peers[key]
	if !ok {
		p = &udpPeer{addr: addr, dedup: newSeqDedup(), translator: input.NewTranslator()}
		l.peers[key] = p
		log.Printf("UDP Listener: forwarder registered from %s", key)
	}
	p.lastSeen = time.Now()
	return p
}

func (l *UDPListener) handle(pkt *protocol.UDPPacket, addr *net.UDPAddr) {
	p := l.peer(addr)

	switch pkt.Type {
	case protocol.UDPPacketRegister:
		ack := &protocol.UDPPacket{Type: protocol.UDPPacketAck, Timestamp: time.Now().UnixMilli()}
		l.conn.WriteToUDP(protocol.EncodeUDPPacket(ack), addr)
		return
	case protocol.UDPPacketHeartbeat, protocol.UDPPacketAck:
		return
	}

	if p.dedup.isDuplicate(pkt.Seq) {
		return
	}

	var (
		msg protocol.Message
		ok  bool
	)
	switch pkt.Type {
	case protocol.UDPPacketPointerMove:
		msg, ok = p.translator.Translate(protocol.RawEvent{Type: protocol.RawPointerMove, X: int(pkt.X), Y: int(pkt.Y)})
	case protocol.UDPPacketPointerBtn:
		msg, ok = p.translator.Translate(protocol.RawEvent{Type: protocol.RawPointerBtn, Button: int(pkt.Button), Pressed: true, X: int(pkt.X), Y: int(pkt.Y)})
	case protocol.UDPPacketKeyRaw:
		msg, ok = p.translator.Translate(protocol.RawEvent{Type: protocol.RawKey, KeyCode: pkt.KeyCode, Pressed: pkt.Pressed == 1})
	case protocol.UDPPacketToken:
		parsed, err := protocol.ParseLine(pkt.Token)
		msg, ok = parsed, err == nil && parsed.Kind == protocol.KindKey
	}
	if !ok {
		return
	}

	select {
	case l.out <- msg:
	case <-l.done:
	}
}

// cleanupLoop removes forwarders that haven't sent anything recently.
func (l *UDPListener) cleanupLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.peersMu.Lock()
			for key, p := range l.peers {
				if time.Since(p.lastSeen) > 30*time.Second {
					log.Printf("UDP Listener: removing stale forwarder %s", key)
					delete(l.peers, key)
				}
			}
			l.peersMu.Unlock()
		case <-l.done:
			return
		}
	}
}

// Stop closes the socket and waits for the loops to exit.
func (l *UDPListener) Stop() {
	l.once.Do(func() {
		close(l.done)
		if l.conn != nil {
			l.conn.Close()
		}
	})
	l.wg.Wait()
}
