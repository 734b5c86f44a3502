// Package server owns the listeners, per-connection sessions and protocol
// adapters: the legacy binary envelope on one side, the modern text/XML
// dialect on the other, both feeding the same match registry.
package server

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// outboundDepth is the per-connection send buffer. The match lock is held
// while events are enqueued, so a peer that stops draining is kicked rather
// than waited on.
const outboundDepth = 64

type outMsg struct {
	msgType uint32
	payload []byte
	// raw bytes bypass the encoder and go out verbatim (modern command
	// responses share the connection with encoded game traffic).
	raw []byte
	// enterGame switches a legacy socket's envelope signature to the game
	// channel. Carried through the queue so the switch stays ordered with
	// the surrounding messages.
	enterGame bool
}

// encodeFn renders one application message into wire bytes. It runs only on
// the writer goroutine, so implementations may keep unguarded state (the
// legacy sequence counter, envelope phase).
type encodeFn func(msg outMsg) ([]byte, error)

// playerSocket is the per-connection outbound half: a buffered queue drained
// by one writer goroutine. It implements match.Messenger; Send never blocks.
type playerSocket struct {
	conn net.Conn
	log  *logrus.Entry

	out    chan outMsg
	closed chan struct{}
	once   sync.Once
}

func newPlayerSocket(conn net.Conn, log *logrus.Entry, encode encodeFn) *playerSocket {
	s := &playerSocket{
		conn:   conn,
		log:    log,
		out:    make(chan outMsg, outboundDepth),
		closed: make(chan struct{}),
	}
	go s.writeLoop(encode)
	return s
}

func (s *playerSocket) writeLoop(encode encodeFn) {
	for {
		select {
		case <-s.closed:
			return
		case msg := <-s.out:
			if msg.raw != nil {
				if _, err := s.conn.Write(msg.raw); err != nil {
					s.Kick()
					return
				}
				continue
			}
			buf, err := encode(msg)
			if err != nil {
				s.log.WithError(err).Warn("encode failed, dropping connection")
				s.Kick()
				return
			}
			if buf == nil {
				continue
			}
			if _, err := s.conn.Write(buf); err != nil {
				s.Kick()
				return
			}
		}
	}
}

// Send implements match.Messenger. It is called with the match lock held and
// must not block: a full queue means the peer stopped draining, so the
// connection is dropped instead.
func (s *playerSocket) Send(msgType uint32, payload []byte) {
	s.enqueue(outMsg{msgType: msgType, payload: payload})
}

// SendRaw queues pre-rendered bytes, keeping them ordered with encoded
// traffic on the same connection.
func (s *playerSocket) SendRaw(line []byte) {
	s.enqueue(outMsg{raw: line})
}

// EnterGamePhase queues the envelope-signature switch for a legacy socket.
// A no-op for sockets whose encoder ignores it.
func (s *playerSocket) EnterGamePhase() {
	s.enqueue(outMsg{enterGame: true})
}

func (s *playerSocket) enqueue(msg outMsg) {
	select {
	case s.out <- msg:
	case <-s.closed:
	default:
		s.log.Warn("outbound queue full, dropping connection")
		s.Kick()
	}
}

// Kick implements match.Messenger: it terminates the connection, which
// unblocks the session's read loop.
func (s *playerSocket) Kick() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// Done reports socket termination to the session loop.
func (s *playerSocket) Done() <-chan struct{} { return s.closed }
