package protocol

import (
	"encoding/binary"
	"fmt"
)

// UDP Packet types
const (
	UDPPacketPointerMove uint8 = 0x01
	UDPPacketPointerBtn  uint8 = 0x02
	UDPPacketKeyRaw      uint8 = 0x04
	UDPPacketToken       uint8 = 0x05
	UDPPacketRegister    uint8 = 0x10
	UDPPacketHeartbeat   uint8 = 0x11
	UDPPacketAck         uint8 = 0x12 // Listener -> Forwarder: confirms UDP path is open
)

// Header: [type(1)] [seq(4)] [timestamp(8)] = 13 bytes
const UDPHeaderSize = 13

// MaxTokenLen bounds the token payload; canonical tokens are at most "!CSAF12".
const MaxTokenLen = 32

// UDPPacket represents a binary-encoded input event for low-latency UDP transport.
//
// Wire format per type:
//
//	PointerMove (0x01): header + x(int32) + y(int32)                    = 21 bytes
//	PointerBtn  (0x02): header + button(uint8) + x(int32) + y(int32)    = 22 bytes
//	KeyRaw      (0x04): header + keyCode(uint16) + pressed(uint8)       = 16 bytes
//	Token       (0x05): header + len(uint8) + token bytes               = 14+len bytes
//	Register    (0x10): header only                                     = 13 bytes
//	Heartbeat   (0x11): header only                                     = 13 bytes
type UDPPacket struct {
	Type      uint8
	Seq       uint32
	Timestamp int64
	X         int32  // pointer
	Y         int32  // pointer
	Button    uint8  // 1=left, 2=right
	Pressed   uint8  // key (1=pressed, 0=released)
	KeyCode   uint16 // raw key code
	Token     string // canonical token
}

// EncodeUDPPacket serializes a UDPPacket to wire format.
func EncodeUDPPacket(pkt *UDPPacket) []byte {
	size := UDPHeaderSize
	switch pkt.Type {
	case UDPPacketPointerMove:
		size += 8
	case UDPPacketPointerBtn:
		size += 9
	case UDPPacketKeyRaw:
		size += 3
	case UDPPacketToken:
		size += 1 + len(pkt.Token)
	}

	buf := make([]byte, size)
	buf[0] = pkt.Type
	binary.BigEndian.PutUint32(buf[1:5], pkt.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(pkt.Timestamp))

	payload := buf[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketPointerMove:
		binary.BigEndian.PutUint32(payload[0:4], uint32(pkt.X))
		binary.BigEndian.PutUint32(payload[4:8], uint32(pkt.Y))
	case UDPPacketPointerBtn:
		payload[0] = pkt.Button
		binary.BigEndian.PutUint32(payload[1:5], uint32(pkt.X))
		binary.BigEndian.PutUint32(payload[5:9], uint32(pkt.Y))
	case UDPPacketKeyRaw:
		binary.BigEndian.PutUint16(payload[0:2], pkt.KeyCode)
		payload[2] = pkt.Pressed
	case UDPPacketToken:
		payload[0] = uint8(len(pkt.Token))
		copy(payload[1:], pkt.Token)
	}

	return buf
}

// DecodeUDPPacket deserializes wire bytes into a UDPPacket.
func DecodeUDPPacket(data []byte) (*UDPPacket, error) {
	if len(data) < UDPHeaderSize {
		return nil, fmt.Errorf("%w: udp packet too short", ErrMalformed)
	}

	pkt := &UDPPacket{
		Type:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	payload := data[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketPointerMove:
		if len(payload) < 8 {
			return nil, fmt.Errorf("%w: pointer move payload too short", ErrMalformed)
		}
		pkt.X = int32(binary.BigEndian.Uint32(payload[0:4]))
		pkt.Y = int32(binary.BigEndian.Uint32(payload[4:8]))
	case UDPPacketPointerBtn:
		if len(payload) < 9 {
			return nil, fmt.Errorf("%w: pointer button payload too short", ErrMalformed)
		}
		pkt.Button = payload[0]
		pkt.X = int32(binary.BigEndian.Uint32(payload[1:5]))
		pkt.Y = int32(binary.BigEndian.Uint32(payload[5:9]))
	case UDPPacketKeyRaw:
		if len(payload) < 3 {
			return nil, fmt.Errorf("%w: key payload too short", ErrMalformed)
		}
		pkt.KeyCode = binary.BigEndian.Uint16(payload[0:2])
		pkt.Pressed = payload[2]
	case UDPPacketToken:
		if len(payload) < 1 {
			return nil, fmt.Errorf("%w: token payload too short", ErrMalformed)
		}
		n := int(payload[0])
		if n == 0 || n > MaxTokenLen || len(payload) < 1+n {
			return nil, fmt.Errorf("%w: bad token length %d", ErrMalformed, n)
		}
		pkt.Token = string(payload[1 : 1+n])
	case UDPPacketRegister, UDPPacketHeartbeat, UDPPacketAck:
		// no payload
	default:
		return nil, fmt.Errorf("%w: unknown udp packet type 0x%02x", ErrMalformed, pkt.Type)
	}

	return pkt, nil
}

// PacketForMessage converts a protocol message to its UDP form. The exit
// sentinel has no UDP form and reports false.
func PacketForMessage(m Message) (*UDPPacket, bool) {
	switch m.Kind {
	case KindMove:
		return &UDPPacket{Type: UDPPacketPointerMove, X: int32(m.X), Y: int32(m.Y)}, true
	case KindLeft:
		return &UDPPacket{Type: UDPPacketPointerBtn, Button: 1, X: int32(m.X), Y: int32(m.Y)}, true
	case KindRight:
		return &UDPPacket{Type: UDPPacketPointerBtn, Button: 2, X: int32(m.X), Y: int32(m.Y)}, true
	case KindKey:
		if len(m.Token) == 0 || len(m.Token) > MaxTokenLen {
			return nil, false
		}
		return &UDPPacket{Type: UDPPacketToken, Token: m.Token}, true
	}
	return nil, false
}
