package routingtest

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/protocol"
)

func dialDaemon(t *testing.T, d *Daemon) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", d.Addr.String())
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeCommand(t *testing.T, conn net.Conn, cmd protocol.Command) {
	t.Helper()
	buf, err := protocol.Serialize(cmd)
	assert.NoError(t, err)
	assert.NoError(t, writeFramed(conn, buf))
}

func TestAssignClientHandshake(t *testing.T) {
	d, err := Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	conn := dialDaemon(t, d)
	writeCommand(t, conn, &protocol.AssignClient{Name: "tester"})

	reply := make([]byte, protocol.LocalRecvBufferSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(conn, reply)
	assert.NoError(t, err)

	assert.Equal(t, protocol.StartTag, reply[:4])
	assert.Equal(t, byte(protocol.IDAssignClientAck), reply[4])
	assert.Equal(t, protocol.EndTag, reply[len(reply)-4:])

	cmd, err := protocol.Deserialize(reply[4 : len(reply)-4])
	assert.NoError(t, err)
	assert.Equal(t, protocol.ClientID(0x0101), cmd.(*protocol.AssignClientAck).Assigned)
}

func TestAssignedIDsIncrement(t *testing.T) {
	d, err := Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	for i := 0; i < 2; i++ {
		conn := dialDaemon(t, d)
		writeCommand(t, conn, &protocol.AssignClient{Name: "tester"})
		reply := make([]byte, protocol.LocalRecvBufferSize)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = io.ReadFull(conn, reply)
		assert.NoError(t, err)
		cmd, err := protocol.Deserialize(reply[4 : len(reply)-4])
		assert.NoError(t, err)
		assert.Equal(t, protocol.ClientID(0x0101+i), cmd.(*protocol.AssignClientAck).Assigned)
	}
}

func TestCommandsRecordedAndHandlerInvoked(t *testing.T) {
	d, err := Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	d.Handler = func(w *ConnWriter, cmd protocol.Command) {
		if sub, ok := cmd.(*protocol.Subscribe); ok {
			w.WriteCommand(&protocol.SubscribeAck{SubscribeFields: sub.SubscribeFields})
		}
	}

	conn := dialDaemon(t, d)
	writeCommand(t, conn, &protocol.Subscribe{
		Client:          0x0103,
		SubscribeFields: protocol.SubscribeFields{Service: 0x1234, Eventgroup: 0x0ABC},
	})

	select {
	case cmd := <-d.Commands:
		assert.Equal(t, protocol.IDSubscribe, cmd.ID())
	case <-time.After(2 * time.Second):
		t.Fatal("command not recorded")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	raw, err := readFrame(conn)
	assert.NoError(t, err)
	cmd, err := protocol.Deserialize(raw)
	assert.NoError(t, err)
	assert.Equal(t, protocol.ServiceID(0x1234), cmd.(*protocol.SubscribeAck).Service)
}

func TestBadFrameClosesConnection(t *testing.T) {
	d, err := Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	conn := dialDaemon(t, d)
	_, err = conn.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0})
	assert.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}
