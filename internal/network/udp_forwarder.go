package network

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"vtouch/internal/protocol"
)

// UDPForwarder sends protocol messages to a remote UDPListener. Clicks and
// keys are sent several times under one sequence number; the listener drops
// the copies.
type UDPForwarder struct {
	hostAddr string
	host     *net.UDPAddr
	conn     *net.UDPConn
	seq      uint32 // atomic, monotonically increasing
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	// Redundancy is the number of copies of each click or key packet.
	Redundancy int
}

// NewUDPForwarder creates a forwarder for hostAddr ("ip:port").
func NewUDPForwarder(hostAddr string) *UDPForwarder {
	return &UDPForwarder{
		hostAddr:   hostAddr,
		done:       make(chan struct{}),
		Redundancy: 3,
	}
}

// Probe tests whether UDP connectivity to the host is available.
// It sends register packets and waits for an Ack response.
func (f *UDPForwarder) Probe() bool {
	hostUDP, err := net.ResolveUDPAddr("udp", f.hostAddr)
	if err != nil {
		log.WithError(err).Warn("UDP Probe: failed to resolve host")
		return false
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		log.WithError(err).Warn("UDP Probe: failed to bind")
		return false
	}
	defer conn.Close()

	buf := make([]byte, 64)
	for attempt := 0; attempt < 3; attempt++ {
		pkt := &protocol.UDPPacket{
			Type:      protocol.UDPPacketRegister,
			Timestamp: time.Now().UnixMilli(),
		}
		conn.WriteToUDP(protocol.EncodeUDPPacket(pkt), hostUDP)

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		resp, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}
		if resp.Type == protocol.UDPPacketAck {
			log.Printf("UDP Probe: %s replied with Ack (attempt %d)", f.hostAddr, attempt+1)
			return true
		}
	}

	log.Warnf("UDP Probe: no Ack from %s after 3 attempts", f.hostAddr)
	return false
}

// Start opens a socket, registers with the host and keeps the registration
// alive with heartbeats.
func (f *UDPForwarder) Start() error {
	hostUDP, err := net.ResolveUDPAddr("udp", f.hostAddr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", f.hostAddr, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return err
	}
	f.host = hostUDP
	f.conn = conn
	conn.SetWriteBuffer(1 << 20)

	log.Printf("UDP Forwarder: sending from %s to %s", conn.LocalAddr(), f.hostAddr)

	f.sendControl(protocol.UDPPacketRegister)
	f.wg.Add(1)
	go f.heartbeatLoop()
	return nil
}

// heartbeatLoop sends periodic heartbeat packets to keep the registration alive.
func (f *UDPForwarder) heartbeatLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.sendControl(protocol.UDPPacketHeartbeat)
		case <-f.done:
			return
		}
	}
}

// sendControl sends a register or heartbeat packet (header-only, no payload).
func (f *UDPForwarder) sendControl(pktType uint8) {
	pkt := &protocol.UDPPacket{
		Type:      pktType,
		Timestamp: time.Now().UnixMilli(),
	}
	f.conn.WriteToUDP(protocol.EncodeUDPPacket(pkt), f.host)
}

// Send encodes m and writes it to the host. The exit sentinel has no UDP
// form and is not sent.
func (f *UDPForwarder) Send(m protocol.Message) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	if f.conn == nil {
		return false
	}

	pkt, ok := protocol.PacketForMessage(m)
	if !ok {
		return false
	}
	pkt.Seq = atomic.AddUint32(&f.seq, 1)
	pkt.Timestamp = time.Now().UnixMilli()

	redundancy := 1
	if m.Kind != protocol.KindMove && f.Redundancy > 1 {
		redundancy = f.Redundancy
	}

	data := protocol.EncodeUDPPacket(pkt)
	for i := 0; i < redundancy; i++ {
		if _, err := f.conn.WriteToUDP(data, f.host); err != nil {
			log.WithError(err).Debug("UDP Forwarder: write failed")
			return false
		}
	}
	return true
}

// Close shuts down the forwarder.
func (f *UDPForwarder) Close() {
	f.once.Do(func() {
		close(f.done)
		if f.conn != nil {
			f.conn.Close()
		}
	})
	f.wg.Wait()
}
