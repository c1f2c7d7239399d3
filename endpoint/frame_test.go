package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecukit/localsip/protocol"
)

func framed(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()
	body, err := protocol.Serialize(cmd)
	assert.NoError(t, err)
	out := append([]byte{}, protocol.StartTag...)
	out = append(out, body...)
	return append(out, protocol.EndTag...)
}

func TestAssemblerSingleFrame(t *testing.T) {
	var asm frameAssembler
	cmd := protocol.NewSuspend(0x0103)
	asm.push(framed(t, cmd))

	body := asm.next()
	assert.NotNil(t, body)
	back, err := protocol.Deserialize(body)
	assert.NoError(t, err)
	assert.Equal(t, protocol.IDSuspend, back.ID())
	assert.Nil(t, asm.next())
}

func TestAssemblerSplitAcrossPushes(t *testing.T) {
	var asm frameAssembler
	frame := framed(t, &protocol.Subscribe{Client: 1, SubscribeFields: protocol.SubscribeFields{Service: 0x1234}})

	for i := 0; i < len(frame); i++ {
		assert.Nil(t, asm.next())
		asm.push(frame[i : i+1])
	}
	body := asm.next()
	assert.NotNil(t, body)
	back, err := protocol.Deserialize(body)
	assert.NoError(t, err)
	assert.Equal(t, protocol.IDSubscribe, back.ID())
}

func TestAssemblerMultipleFramesOnePush(t *testing.T) {
	var asm frameAssembler
	var stream []byte
	for i := 1; i <= 3; i++ {
		stream = append(stream, framed(t, &protocol.Subscribe{
			Client:          1,
			SubscribeFields: protocol.SubscribeFields{Pending: protocol.PendingID(i)},
		})...)
	}
	asm.push(stream)

	for i := 1; i <= 3; i++ {
		body := asm.next()
		assert.NotNil(t, body, "frame %d", i)
		back, err := protocol.Deserialize(body)
		assert.NoError(t, err)
		assert.Equal(t, protocol.PendingID(i), back.(*protocol.Subscribe).Pending)
	}
	assert.Nil(t, asm.next())
}

func TestAssemblerSkipsGarbage(t *testing.T) {
	var asm frameAssembler
	asm.push([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	asm.push(framed(t, protocol.NewSuspend(1)))

	body := asm.next()
	assert.NotNil(t, body)
	assert.Equal(t, byte(protocol.IDSuspend), body[0])
}

func TestAssemblerDropsBadEndTag(t *testing.T) {
	var asm frameAssembler
	bad := framed(t, protocol.NewSuspend(1))
	bad[len(bad)-1] = 0x00
	asm.push(bad)
	assert.Nil(t, asm.next())

	// A later well-formed frame still gets through.
	asm.push(framed(t, protocol.NewSuspend(2)))
	body := asm.next()
	assert.NotNil(t, body)
	back, err := protocol.Deserialize(body)
	assert.NoError(t, err)
	assert.Equal(t, protocol.ClientID(2), back.Sender())
}

func TestCheckAssignClientAck(t *testing.T) {
	frame := framed(t, &protocol.AssignClientAck{Assigned: 0x0103})
	assert.Len(t, frame, protocol.LocalRecvBufferSize)

	body, ok := checkAssignClientAck(frame)
	assert.True(t, ok)
	assert.Len(t, body, protocol.LocalRecvBufferSize-2*protocol.TagSize)
	assert.Equal(t, byte(protocol.IDAssignClientAck), body[0])

	// Corrupted end tag.
	corrupt := append([]byte{}, frame...)
	corrupt[len(corrupt)-1] = 0x00
	_, ok = checkAssignClientAck(corrupt)
	assert.False(t, ok)

	// Wrong id.
	wrongID := append([]byte{}, frame...)
	wrongID[4] = byte(protocol.IDPong)
	_, ok = checkAssignClientAck(wrongID)
	assert.False(t, ok)

	// Wrong length.
	_, ok = checkAssignClientAck(frame[:len(frame)-1])
	assert.False(t, ok)
}
