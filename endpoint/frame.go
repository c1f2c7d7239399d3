package endpoint

import (
	"bytes"
	"encoding/binary"

	"github.com/ecukit/localsip/protocol"
)

// frameAssembler reassembles tag-delimited commands from the byte stream.
// Bytes preceding a start tag and frames failing the end-tag check are
// discarded silently.
type frameAssembler struct {
	buf     []byte
	maxSize uint32
}

func (a *frameAssembler) push(p []byte) {
	a.buf = append(a.buf, p...)
}

// next returns the next complete command (header plus payload, tags
// stripped), or nil when more bytes are needed. The returned slice is a
// copy and stays valid across further pushes.
func (a *frameAssembler) next() []byte {
	for {
		idx := bytes.Index(a.buf, protocol.StartTag)
		if idx < 0 {
			// Keep a possible tag prefix at the end of the buffer.
			if keep := len(protocol.StartTag) - 1; len(a.buf) > keep {
				a.buf = a.buf[len(a.buf)-keep:]
			}
			return nil
		}
		if idx > 0 {
			a.buf = a.buf[idx:]
		}
		if len(a.buf) < protocol.TagSize+protocol.HeaderSize {
			return nil
		}
		size := binary.LittleEndian.Uint32(a.buf[protocol.TagSize+4:])
		if a.maxSize != 0 && size > a.maxSize {
			// Implausible length; resync at the next tag.
			a.buf = a.buf[1:]
			continue
		}
		total := protocol.TagSize + protocol.HeaderSize + int(size) + protocol.TagSize
		if len(a.buf) < total {
			return nil
		}
		if !bytes.Equal(a.buf[total-protocol.TagSize:total], protocol.EndTag) {
			a.buf = a.buf[1:]
			continue
		}
		body := make([]byte, protocol.HeaderSize+int(size))
		copy(body, a.buf[protocol.TagSize:total-protocol.TagSize])
		a.buf = a.buf[total:]
		return body
	}
}

// checkAssignClientAck validates the strict shape of the first inbound
// frame: exactly LocalRecvBufferSize bytes, both tags in place and the
// AssignClientAck id at offset 4. Returns the command bytes on success.
func checkAssignClientAck(data []byte) ([]byte, bool) {
	if len(data) != protocol.LocalRecvBufferSize {
		return nil, false
	}
	if !bytes.Equal(data[:protocol.TagSize], protocol.StartTag) {
		return nil, false
	}
	if data[4] != byte(protocol.IDAssignClientAck) {
		return nil, false
	}
	if !bytes.Equal(data[len(data)-protocol.TagSize:], protocol.EndTag) {
		return nil, false
	}
	body := make([]byte, len(data)-2*protocol.TagSize)
	copy(body, data[protocol.TagSize:len(data)-protocol.TagSize])
	return body, true
}
