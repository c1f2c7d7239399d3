// Package routingtest provides an in-process routing daemon speaking the
// local control protocol. It backs the endpoint tests and the mockd
// command; it is not a complete routing manager.
package routingtest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/protocol"
)

var (
	errBadStartTag = errors.New("routingtest: bad start tag")
	errBadEndTag   = errors.New("routingtest: bad end tag")
)

// Handler is invoked for every decoded inbound command. The writer sends
// framed commands back on the same connection.
type Handler func(w *ConnWriter, cmd protocol.Command)

// Daemon is a minimal local routing daemon: it accepts stream connections,
// answers AssignClient with a fixed-size AssignClientAck frame and passes
// every decoded command to Commands. A command is dropped when Commands is
// full.
type Daemon struct {
	Addr     net.Addr
	Handler  Handler
	Commands chan protocol.Command

	listener net.Listener
	log      logging.Logger

	lock       sync.Mutex
	activeConn map[net.Conn]struct{}
	nextClient protocol.ClientID
	wg         sync.WaitGroup
}

// Run starts a daemon listening on addr ("127.0.0.1:0" for an ephemeral
// port) and serves until Shutdown.
func Run(addr string, log logging.Logger) (*Daemon, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		Addr:       l.Addr(),
		Commands:   make(chan protocol.Command, 64),
		listener:   l,
		log:        log,
		activeConn: make(map[net.Conn]struct{}),
		nextClient: 0x0101,
	}
	d.wg.Add(1)
	go d.serve()
	return d, nil
}

// Shutdown stops accepting, closes every connection and waits for the
// connection goroutines to finish.
func (d *Daemon) Shutdown() {
	d.listener.Close()
	d.CloseConnections()
	d.wg.Wait()
}

// CloseConnections drops every active connection, simulating a daemon
// crash while the listener stays up.
func (d *Daemon) CloseConnections() {
	d.lock.Lock()
	defer d.lock.Unlock()
	for c := range d.activeConn {
		c.Close()
		delete(d.activeConn, c)
	}
}

// ConnectionCount reports the number of live client connections.
func (d *Daemon) ConnectionCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.activeConn)
}

// Broadcast frames cmd and writes it to every active connection.
func (d *Daemon) Broadcast(cmd protocol.Command) error {
	buf, err := protocol.Serialize(cmd)
	if err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	for c := range d.activeConn {
		if err := writeFramed(c, buf); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.log.Debugf("routingtest: new connection from %s", conn.RemoteAddr())
		d.trackConn(conn, true)
		d.wg.Add(1)
		go d.serveConn(conn)
	}
}

func (d *Daemon) trackConn(c net.Conn, add bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if add {
		d.activeConn[c] = struct{}{}
	} else {
		delete(d.activeConn, c)
	}
}

func (d *Daemon) serveConn(conn net.Conn) {
	defer d.wg.Done()
	defer d.trackConn(conn, false)
	defer conn.Close()

	w := &ConnWriter{conn: conn}
	for {
		raw, err := readFrame(conn)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				d.log.Debugf("routingtest: read from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		cmd, err := protocol.Deserialize(raw)
		if err != nil {
			d.log.Debugf("routingtest: dropping frame: %v", err)
			continue
		}

		select {
		case d.Commands <- cmd:
		default:
		}

		if ac, ok := cmd.(*protocol.AssignClient); ok {
			d.lock.Lock()
			assigned := d.nextClient
			d.nextClient++
			d.lock.Unlock()
			d.log.Debugf("routingtest: assigning client 0x%04X to %q", assigned, ac.Name)
			if err := w.WriteCommand(&protocol.AssignClientAck{Assigned: assigned}); err != nil {
				d.log.Debugf("routingtest: ack to %s: %v", conn.RemoteAddr(), err)
				return
			}
			continue
		}
		if d.Handler != nil {
			d.Handler(w, cmd)
		}
	}
}

// ConnWriter frames and writes commands on one client connection.
type ConnWriter struct {
	mtx  sync.Mutex
	conn net.Conn
}

// WriteCommand serializes cmd and writes it as one tagged frame.
func (w *ConnWriter) WriteCommand(cmd protocol.Command) error {
	buf, err := protocol.Serialize(cmd)
	if err != nil {
		return err
	}
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return writeFramed(w.conn, buf)
}

func writeFramed(conn net.Conn, command []byte) error {
	frame := make([]byte, 0, 2*protocol.TagSize+len(command))
	frame = append(frame, protocol.StartTag...)
	frame = append(frame, command...)
	frame = append(frame, protocol.EndTag...)
	_, err := conn.Write(frame)
	return err
}

// readFrame reads one tag-delimited command from the stream: start tag,
// header, payload per the header's size field, end tag.
func readFrame(r io.Reader) ([]byte, error) {
	tag := make([]byte, protocol.TagSize)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, err
	}
	if !bytes.Equal(tag, protocol.StartTag) {
		return nil, errBadStartTag
	}

	command := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(r, command); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(command[4:8])

	command = append(command, make([]byte, size)...)
	if _, err := io.ReadFull(r, command[protocol.HeaderSize:]); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, err
	}
	if !bytes.Equal(tag, protocol.EndTag) {
		return nil, errBadEndTag
	}
	return command, nil
}
