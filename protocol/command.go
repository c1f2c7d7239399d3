// Package protocol implements the control command codec of the local
// routing fabric. Commands share a fixed 8-byte header followed by a
// per-variant payload; multi-byte fields are little-endian.
package protocol

import (
	"encoding/binary"
	"errors"
)

// Header layout.
const (
	posID      = 0
	posVersion = 1
	posClient  = 2
	posSize    = 4
	posPayload = 8

	// HeaderSize is the fixed length of the common command header.
	HeaderSize = 8
)

// Version is the protocol version written into every header.
const Version uint8 = 0

// Deserialize errors.
var (
	ErrTooShort  = errors.New("protocol: buffer shorter than command header")
	ErrTruncated = errors.New("protocol: payload truncated")
	ErrUnknownID = errors.New("protocol: unknown command id")
)

// Serialize errors.
var (
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds size field range")
)

// Command is a control message exchanged with the routing daemon.
type Command interface {
	// ID returns the wire tag of the command kind.
	ID() CommandID
	// Sender returns the originating client.
	Sender() ClientID

	payloadSize() int
	packPayload(b []byte)
}

var mhUnpack = map[CommandID]func(h header, p []byte) (Command, error){
	IDAssignClient:                 unpackAssignClient,
	IDAssignClientAck:              unpackAssignClientAck,
	IDRegisterApplication:          unpackHeaderOnly(IDRegisterApplication),
	IDDeregisterApplication:        unpackHeaderOnly(IDDeregisterApplication),
	IDPing:                         unpackHeaderOnly(IDPing),
	IDPong:                         unpackHeaderOnly(IDPong),
	IDOfferService:                 unpackOffer,
	IDStopOfferService:             unpackOffer,
	IDSubscribe:                    unpackSubscribe,
	IDUnsubscribe:                  unpackSubscribe,
	IDSubscribeNack:                unpackSubscribe,
	IDSubscribeAck:                 unpackSubscribe,
	IDUnsubscribeAck:               unpackSubscribe,
	IDUpdateSecurityPolicyResponse: unpackSecurityPolicyResponse,
	IDRemoveSecurityPolicyResponse: unpackSecurityPolicyResponse,
	IDSuspend:                      unpackHeaderOnly(IDSuspend),
}

type header struct {
	id      CommandID
	version uint8
	client  ClientID
	size    uint32
}

// Serialize encodes c as header plus payload and returns the buffer.
func Serialize(c Command) ([]byte, error) {
	n := c.payloadSize()
	if uint64(n) > uint64(^uint32(0)) {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderSize+n)
	buf[posID] = byte(c.ID())
	buf[posVersion] = Version
	binary.LittleEndian.PutUint16(buf[posClient:], uint16(c.Sender()))
	binary.LittleEndian.PutUint32(buf[posSize:], uint32(n))
	c.packPayload(buf[posPayload:])
	return buf, nil
}

// Deserialize decodes one command from b. The buffer must hold the full
// header and at least size payload bytes; trailing bytes are ignored.
func Deserialize(b []byte) (Command, error) {
	if len(b) < HeaderSize {
		return nil, ErrTooShort
	}
	h := header{
		id:      CommandID(b[posID]),
		version: b[posVersion],
		client:  ClientID(binary.LittleEndian.Uint16(b[posClient:])),
		size:    binary.LittleEndian.Uint32(b[posSize:]),
	}
	f, ok := mhUnpack[h.id]
	if !ok {
		return nil, ErrUnknownID
	}
	if uint64(h.size) > uint64(len(b)-HeaderSize) {
		return nil, ErrTruncated
	}
	return f(h, b[posPayload:posPayload+int(h.size)])
}
