package endpoint

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/protocol"
)

// recvBufferSize is the size of the reused receive buffer. It must hold at
// least one assign-client-ack frame; later frames may span several reads
// and are reassembled.
const recvBufferSize = 4096

// Client is the local client endpoint: one stream connection to the
// routing daemon, an outbound train plus frozen FIFO queue, and a receive
// path delivering framed commands to the routing host.
//
// Lock order, strict: queueMu, sockMu, connectTimerMu, errMu.
type Client struct {
	opts Options
	log  logging.Logger

	state atomic.Int32

	// queueMu guards train, queue, queueBytes and sendingBlocked.
	queueMu        sync.Mutex
	train          []byte
	queue          [][]byte
	queueBytes     uint32
	sendingBlocked bool

	// sockMu guards conn and connStop.
	sockMu   sync.Mutex
	conn     net.Conn
	connStop chan struct{}

	// connectTimerMu guards the reconnect timer, backoff and counter.
	connectTimerMu sync.Mutex
	connectTimer   *time.Timer
	connectTimeout time.Duration
	reconnects     uint32

	errMu        sync.Mutex
	errorHandler ErrorHandler

	wakeSend chan struct{}
}

// NewClient creates an endpoint in the Closed state.
func NewClient(opts Options) *Client {
	o := opts.withDefaults()
	return &Client{
		opts:           o,
		log:            o.Log,
		connectTimeout: o.ConnectTimeout,
		wakeSend:       make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Start initiates the first connection attempt. No-op unless Closed.
func (c *Client) Start() {
	if c.State() != Closed {
		return
	}
	c.queueMu.Lock()
	c.sendingBlocked = false
	c.queueMu.Unlock()
	c.setState(Connecting)
	go c.connect()
}

// Stop blocks further sends, waits up to 500ms for the outbound queue to
// drain, then tears the socket down. The endpoint ends Terminal and is not
// reused.
func (c *Client) Stop() {
	c.queueMu.Lock()
	c.sendingBlocked = true
	c.queueMu.Unlock()

	c.connectTimerMu.Lock()
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
	c.connectTimeout = c.opts.ConnectTimeout
	c.connectTimerMu.Unlock()

	c.sockMu.Lock()
	open := c.conn != nil
	c.sockMu.Unlock()

	if open {
		c.setState(Draining)
		for slept := 0; slept < drainPolls; slept++ {
			c.queueMu.Lock()
			empty := len(c.queue) == 0
			c.queueMu.Unlock()
			if empty {
				break
			}
			time.Sleep(drainInterval)
		}
	}
	c.closeSocket()
	c.setState(Terminal)
}

// Restart tears the connection down and schedules a fresh connect after
// the current backoff. While Connecting it is a no-op unless force is set.
func (c *Client) Restart(force bool) {
	if !force && c.State() == Connecting {
		return
	}
	if s := c.State(); s == Terminal || s == Draining {
		return
	}
	c.setState(Connecting)

	c.queueMu.Lock()
	c.sendingBlocked = false
	c.train = nil
	c.queue = nil
	c.queueBytes = 0
	c.queueMu.Unlock()

	c.closeSocket()

	c.connectTimerMu.Lock()
	c.reconnects = 0
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
	c.connectTimer = time.AfterFunc(c.connectTimeout, c.connect)
	c.connectTimerMu.Unlock()
}

// SetErrorHandler registers the callback fired on non-recoverable
// transport errors. A nil handler clears the slot.
func (c *Client) SetErrorHandler(h ErrorHandler) {
	c.errMu.Lock()
	c.errorHandler = h
	c.errMu.Unlock()
}

// Status reports the frozen queue depth and its byte count.
func (c *Client) Status() (entries int, bytes uint32) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue), c.queueBytes
}

// Send appends data to the outbound train and freezes it onto the send
// queue. It never blocks; false means blocked, oversize, overflow or
// queue-full and leaves the queue unchanged.
func (c *Client) Send(data []byte) bool {
	n := uint32(len(data))
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if c.sendingBlocked {
		return false
	}
	if c.opts.MaxMessageSize != 0 && n > c.opts.MaxMessageSize {
		return false
	}
	if !c.checkPacketizerSpace(n) {
		return false
	}
	if !c.checkQueueLimit(n) {
		return false
	}
	c.train = append(c.train, data...)
	c.queueTrainLocked()
	c.signalSend()
	return true
}

func (c *Client) signalSend() {
	select {
	case c.wakeSend <- struct{}{}:
	default:
	}
}

func (c *Client) connect() {
	switch c.State() {
	case Terminal, Draining, Established:
		return
	}
	c.setState(Connecting)

	var localAddr net.Addr
	if c.opts.Local != "" {
		addr, err := net.ResolveTCPAddr("tcp", c.opts.Local)
		if err != nil {
			c.log.Warnf("endpoint: cannot bind to %s: %v", c.opts.Local, err)
			c.connectCbk(nil, err)
			return
		}
		localAddr = addr
	}

	d := net.Dialer{
		Timeout:   c.opts.ConnectingTimeout,
		LocalAddr: localAddr,
		Control: func(network, address string, rc syscall.RawConn) error {
			var soErr error
			if err := rc.Control(func(fd uintptr) {
				soErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); err != nil {
				soErr = err
			}
			if soErr != nil {
				c.log.Warnf("endpoint: cannot enable SO_REUSEADDR: %v", soErr)
			}
			return nil
		},
	}
	conn, err := d.Dial("tcp", c.opts.Remote)
	c.connectCbk(conn, err)
}

func (c *Client) connectCbk(conn net.Conn, err error) {
	if err != nil {
		c.log.Infof("endpoint: connect to %s failed: %v", c.opts.Remote, err)
		c.scheduleReconnect()
		return
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		// Nagle off, keep-alive on, and a bounded linger so the FIN/ACK
		// has time to drain on close. Failures are logged, not fatal.
		if err := tcp.SetNoDelay(true); err != nil {
			c.log.Warnf("endpoint: cannot disable Nagle algorithm: %v", err)
		}
		if err := tcp.SetKeepAlive(true); err != nil {
			c.log.Warnf("endpoint: cannot enable keep-alive: %v", err)
		}
		if err := tcp.SetLinger(5); err != nil {
			c.log.Warnf("endpoint: cannot set SO_LINGER: %v", err)
		}
	}

	c.sockMu.Lock()
	if s := c.State(); s == Terminal || s == Draining || c.conn != nil {
		// Stopped meanwhile, or an earlier attempt already won.
		c.sockMu.Unlock()
		conn.Close()
		return
	}
	stop := make(chan struct{})
	c.conn = conn
	c.connStop = stop
	c.sockMu.Unlock()

	c.connectTimerMu.Lock()
	c.connectTimeout = c.opts.ConnectTimeout
	c.reconnects = 0
	c.connectTimerMu.Unlock()

	c.setState(Established)
	c.log.Debugf("endpoint: connected to %s", c.opts.Remote)

	go c.readLoop(conn)
	go c.writeLoop(conn, stop)
	c.signalSend()

	if h := c.opts.Host; h != nil {
		h.OnConnect(c)
	}
}

func (c *Client) scheduleReconnect() {
	c.connectTimerMu.Lock()
	if s := c.State(); s == Terminal || s == Draining {
		c.connectTimerMu.Unlock()
		return
	}
	c.reconnects++
	if c.opts.MaxReconnects != MaxReconnectsUnlimited && c.reconnects >= c.opts.MaxReconnects {
		c.connectTimerMu.Unlock()
		c.log.Errorf("endpoint: max allowed reconnects reached (%d) for %s",
			c.opts.MaxReconnects, c.opts.Remote)
		c.fireErrorHandler()
		return
	}
	delay := c.connectTimeout
	c.connectTimeout *= 2
	if c.connectTimeout > MaxConnectTimeout {
		c.connectTimeout = MaxConnectTimeout
	}
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
	c.connectTimer = time.AfterFunc(delay, c.connect)
	c.connectTimerMu.Unlock()
}

// closeSocket tears the connection down and notifies the endpoint host if
// one was open.
func (c *Client) closeSocket() {
	c.sockMu.Lock()
	conn := c.conn
	if c.connStop != nil {
		close(c.connStop)
		c.connStop = nil
	}
	c.conn = nil
	c.sockMu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		c.log.Debugf("endpoint: close: %v", err)
	}
	if h := c.opts.Host; h != nil {
		h.OnDisconnect(c)
	}
}

func (c *Client) writeLoop(conn net.Conn, stop <-chan struct{}) {
	for {
		c.queueMu.Lock()
		var entry []byte
		if len(c.queue) > 0 {
			entry = c.queue[0]
		}
		c.queueMu.Unlock()

		if entry == nil {
			select {
			case <-stop:
				return
			case <-c.wakeSend:
				continue
			}
		}

		bufs := net.Buffers{protocol.StartTag, entry, protocol.EndTag}
		if _, err := bufs.WriteTo(conn); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.log.Warnf("endpoint: send failed: %v", err)
			}
			return
		}

		c.queueMu.Lock()
		// The queue may have been cleared by a concurrent restart; only
		// pop the entry this loop just wrote.
		if len(c.queue) > 0 && sameBuffer(c.queue[0], entry) {
			c.queueBytes -= uint32(len(c.queue[0]))
			c.queue = c.queue[1:]
		}
		c.queueMu.Unlock()
	}
}

func sameBuffer(a, b []byte) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (c *Client) readLoop(conn net.Conn) {
	acked := false
	asm := frameAssembler{maxSize: c.opts.MaxMessageSize}
	buf := make([]byte, recvBufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			c.handleReceiveError(err)
			return
		}
		data := buf[:n]

		if !acked {
			// The very first message must be the assign-client-ack in
			// its exact shape; anything else is dropped and the receive
			// re-armed.
			body, ok := checkAssignClientAck(data)
			if !ok {
				c.log.Debugf("endpoint: dropping malformed first frame (%d bytes)", n)
				continue
			}
			acked = true
			c.deliver(body)
			continue
		}

		asm.push(data)
		for body := asm.next(); body != nil; body = asm.next() {
			c.deliver(body)
		}
	}
}

func (c *Client) deliver(body []byte) {
	if rh := c.opts.Routing; rh != nil {
		rh.OnMessage(body, c)
	}
}

func (c *Client) handleReceiveError(err error) {
	switch {
	case errors.Is(err, net.ErrClosed):
		// Endpoint was stopped or restarted; nothing to do.

	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		c.log.Infof("endpoint: peer closed connection")
		c.queueMu.Lock()
		c.sendingBlocked = false
		c.train = nil
		c.queue = nil
		c.queueBytes = 0
		c.queueMu.Unlock()
		c.Restart(false)

	case errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EBADF):
		c.log.Infof("endpoint: receive failed: %v", err)
		c.Restart(true)

	default:
		c.log.Warnf("endpoint: receive failed: %v", err)
		c.fireErrorHandler()
	}
}

func (c *Client) fireErrorHandler() {
	c.errMu.Lock()
	h := c.errorHandler
	c.errMu.Unlock()
	if h != nil {
		h()
	}
}
