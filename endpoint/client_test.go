package endpoint

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/protocol"
	"github.com/ecukit/localsip/routingtest"
)

type hostRecorder struct {
	mtx         sync.Mutex
	messages    [][]byte
	connects    int
	disconnects int
}

func (r *hostRecorder) OnMessage(data []byte, from *Client) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.messages = append(r.messages, append([]byte{}, data...))
}

func (r *hostRecorder) OnConnect(*Client) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.connects++
}

func (r *hostRecorder) OnDisconnect(*Client) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.disconnects++
}

func (r *hostRecorder) messageCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.messages)
}

func (r *hostRecorder) message(i int) []byte {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.messages[i]
}

func (r *hostRecorder) connectCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.connects
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestClient(t *testing.T, remote string, rec *hostRecorder) *Client {
	t.Helper()
	c := NewClient(Options{
		Remote:         remote,
		MaxMessageSize: 32768,
		Routing:        rec,
		Host:           rec,
		Log:            logging.Discard,
	})
	t.Cleanup(c.Stop)
	return c
}

func sendCommand(t *testing.T, c *Client, cmd protocol.Command) {
	t.Helper()
	buf, err := protocol.Serialize(cmd)
	assert.NoError(t, err)
	assert.True(t, c.Send(buf))
}

func TestColdStartAssignClientAck(t *testing.T) {
	d, err := routingtest.Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	rec := &hostRecorder{}
	c := newTestClient(t, d.Addr.String(), rec)
	c.Start()

	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))

	sendCommand(t, c, &protocol.AssignClient{Name: "test-app"})

	assert.True(t, waitFor(t, 2*time.Second, func() bool { return rec.messageCount() == 1 }))
	body := rec.message(0)
	assert.Len(t, body, protocol.LocalRecvBufferSize-2*protocol.TagSize)
	assert.Equal(t, byte(protocol.IDAssignClientAck), body[0])

	cmd, err := protocol.Deserialize(body)
	assert.NoError(t, err)
	assert.Equal(t, protocol.ClientID(0x0101), cmd.(*protocol.AssignClientAck).Assigned)
}

func TestMalformedAckDroppedAndReceiveRearmed(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	rec := &hostRecorder{}
	c := newTestClient(t, l.Addr().String(), rec)
	c.Start()

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
	}
	defer conn.Close()

	ack, err := protocol.Serialize(&protocol.AssignClientAck{Assigned: 0x0101})
	assert.NoError(t, err)

	frame := append([]byte{}, protocol.StartTag...)
	frame = append(frame, ack...)
	frame = append(frame, protocol.EndTag...)

	corrupt := append([]byte{}, frame...)
	corrupt[len(corrupt)-1] = 0x00
	_, err = conn.Write(corrupt)
	assert.NoError(t, err)

	// The malformed frame is dropped without a delivery.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.messageCount())

	// The receive was re-armed: a valid frame still arrives.
	_, err = conn.Write(frame)
	assert.NoError(t, err)
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return rec.messageCount() == 1 }))
}

func TestPeerCrashReconnects(t *testing.T) {
	d, err := routingtest.Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	rec := &hostRecorder{}
	c := newTestClient(t, d.Addr.String(), rec)
	c.Start()
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))
	assert.Equal(t, 1, rec.connectCount())

	d.CloseConnections()

	// One restart, queue cleared, one new connect attempt.
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.connectCount() == 2 }))
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))
	entries, bytes := c.Status()
	assert.Equal(t, 0, entries)
	assert.Equal(t, uint32(0), bytes)
	assert.Equal(t, 1, d.ConnectionCount())
}

func TestQueueLimitBackPressure(t *testing.T) {
	// Not started: nothing drains the queue, so the accounting is exact.
	c := NewClient(Options{
		Remote:         "127.0.0.1:1",
		MaxMessageSize: 256,
		QueueLimit:     1024,
		Log:            logging.Discard,
	})

	payload := make([]byte, 256)
	for i := 0; i < 4; i++ {
		assert.True(t, c.Send(payload), "frame %d", i+1)
	}
	assert.False(t, c.Send(payload), "fifth frame must be refused")

	entries, bytes := c.Status()
	assert.Equal(t, 4, entries)
	assert.Equal(t, uint32(1024), bytes)

	// Oversize is refused outright.
	assert.False(t, c.Send(make([]byte, 257)))
}

func TestSendBlockedAfterStop(t *testing.T) {
	c := NewClient(Options{Remote: "127.0.0.1:1", Log: logging.Discard})
	c.Stop()
	assert.Equal(t, Terminal, c.State())
	assert.False(t, c.Send([]byte{1}))
}

func TestSendFIFO(t *testing.T) {
	d, err := routingtest.Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	rec := &hostRecorder{}
	c := newTestClient(t, d.Addr.String(), rec)
	c.Start()
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))

	const k = 8
	for i := 1; i <= k; i++ {
		sendCommand(t, c, &protocol.Subscribe{
			Client:          0x0101,
			SubscribeFields: protocol.SubscribeFields{Pending: protocol.PendingID(i)},
		})
	}

	for i := 1; i <= k; i++ {
		select {
		case cmd := <-d.Commands:
			sub, ok := cmd.(*protocol.Subscribe)
			assert.True(t, ok)
			assert.Equal(t, protocol.PendingID(i), sub.Pending)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d did not arrive", i)
		}
	}
}

func TestInboundFramesAfterAck(t *testing.T) {
	d, err := routingtest.Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	rec := &hostRecorder{}
	c := newTestClient(t, d.Addr.String(), rec)
	c.Start()
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))

	sendCommand(t, c, &protocol.AssignClient{Name: "subscriber"})
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return rec.messageCount() == 1 }))

	err = d.Broadcast(&protocol.SubscribeAck{
		Client:          0x0100,
		SubscribeFields: protocol.SubscribeFields{Service: 0x1234, Eventgroup: 0x0ABC},
	})
	assert.NoError(t, err)

	assert.True(t, waitFor(t, 2*time.Second, func() bool { return rec.messageCount() == 2 }))
	cmd, err := protocol.Deserialize(rec.message(1))
	assert.NoError(t, err)
	ack := cmd.(*protocol.SubscribeAck)
	assert.Equal(t, protocol.ServiceID(0x1234), ack.Service)
	assert.Equal(t, protocol.EventgroupID(0x0ABC), ack.Eventgroup)
}

func TestStopDrainsAndCloses(t *testing.T) {
	d, err := routingtest.Run("127.0.0.1:0", logging.Discard)
	assert.NoError(t, err)
	defer d.Shutdown()

	rec := &hostRecorder{}
	c := newTestClient(t, d.Addr.String(), rec)
	c.Start()
	assert.True(t, waitFor(t, 2*time.Second, func() bool { return c.State() == Established }))

	sendCommand(t, c, protocol.NewSuspend(0x0101))

	start := time.Now()
	c.Stop()
	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.Equal(t, Terminal, c.State())
	assert.False(t, c.Send([]byte{1}))

	// The daemon observes the close.
	assert.True(t, waitFor(t, time.Second, func() bool { return d.ConnectionCount() == 0 }))
}

func TestRestartWhileConnectingIsNoop(t *testing.T) {
	// Nothing listens here; the endpoint stays in the reconnect path.
	c := NewClient(Options{
		Remote:         "127.0.0.1:1",
		ConnectTimeout: 50 * time.Millisecond,
		Log:            logging.Discard,
	})
	defer c.Stop()

	c.Start()
	assert.True(t, waitFor(t, time.Second, func() bool { return c.State() == Connecting }))

	c.Restart(false)
	assert.Equal(t, Connecting, c.State())

	// Forced restart is accepted in any state other than Draining and
	// Terminal.
	c.Restart(true)
	assert.Equal(t, Connecting, c.State())
}

func TestStartIsNoopUnlessClosed(t *testing.T) {
	c := NewClient(Options{Remote: "127.0.0.1:1", Log: logging.Discard})
	c.Stop()
	c.Start()
	assert.Equal(t, Terminal, c.State())
}
