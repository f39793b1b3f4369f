package beacon

import (
	"bytes"
	"encoding/binary"

	"github.com/irai/beacon/fastlog"
)

// Beacon wire constants
const (
	// EthTypeBeacon is the ethertype carried by beacon frames. It sits outside
	// the registered ranges on purpose.
	EthTypeBeacon = 0xBEAC

	// lengthMask is xor'ed with the message length in the payload header.
	// Same bit pattern as EthTypeBeacon, unrelated value.
	lengthMask = 0xBEAC

	// HeaderLen is the len of the length tag preceding the message.
	HeaderLen = 2

	// MaxMessageLen keeps header + message within a single 1500 byte ethernet payload.
	MaxMessageLen = 1498

	// MaxPayloadLen is the largest payload a beacon frame carries.
	MaxPayloadLen = HeaderLen + MaxMessageLen

	// MinFrameLen is the minimum ethernet payload size. Shorter frames are
	// padded by the sender so any valid read is at least this long.
	MinFrameLen = 46
)

// Payload provides access to beacon payload fields without copying the structure.
//
//	offset 0..1 : big endian (message len XOR 0xBEAC)
//	offset 2..N : message bytes
type Payload []byte

// IsValid returns ErrMalformedFrame if the declared message len exceeds the available bytes.
func (p Payload) IsValid() error {
	if len(p) < HeaderLen {
		return ErrFrameLen
	}
	if p.Len() > len(p)-HeaderLen {
		return ErrMalformedFrame
	}
	return nil
}

func (p Payload) LengthTag() uint16 { return binary.BigEndian.Uint16(p[0:2]) }
func (p Payload) Len() int          { return int(p.LengthTag() ^ lengthMask) }
func (p Payload) Message() []byte   { return p[HeaderLen : HeaderLen+p.Len()] }

// Text returns the message as a string, up to the first NUL byte.
func (p Payload) Text() string {
	msg := p.Message()
	if n := bytes.IndexByte(msg, 0); n >= 0 {
		msg = msg[:n]
	}
	return string(msg)
}

func (p Payload) String() string {
	line := fastlog.NewLine("", "")
	return p.FastLog(line).ToString()
}

// FastLog implements fastlog struct interface
func (p Payload) FastLog(line *fastlog.Line) *fastlog.Line {
	line.Uint16Hex("tag", p.LengthTag())
	line.Int("len", p.Len())
	line.String("msg", p.Text())
	return line
}

// Encode returns a new payload carrying msg.
func Encode(msg []byte) (Payload, error) {
	if len(msg) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	return EncodeTo(make([]byte, HeaderLen+len(msg)), msg)
}

// EncodeTo creates a beacon payload in b using msg.
// b must have enough capacity for the header and message.
func EncodeTo(b []byte, msg []byte) (Payload, error) {
	if len(msg) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	if cap(b) < HeaderLen+len(msg) {
		return nil, ErrInvalidLen
	}
	b = b[:HeaderLen+len(msg)]
	binary.BigEndian.PutUint16(b[0:2], uint16(len(msg))^lengthMask)
	copy(b[HeaderLen:], msg)
	return Payload(b), nil
}

// Decode validates a received frame payload and returns it trimmed to the
// declared message, dropping any ethernet padding.
//
// A read shorter than MinFrameLen returns ErrFrameLen; it means the socket is
// misused and the caller should stop. ErrMalformedFrame means the frame is noise
// and can be skipped.
func Decode(b []byte) (Payload, error) {
	if len(b) < MinFrameLen {
		return nil, ErrFrameLen
	}
	p := Payload(b)
	if err := p.IsValid(); err != nil {
		return nil, err
	}
	return p[:HeaderLen+p.Len()], nil
}
