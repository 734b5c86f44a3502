package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/openzone-dev/zoneserver/internal/config"
	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// Server accepts client connections on the legacy and modern listen
// addresses and runs one session goroutine per connection. Either protocol
// is recognized on either port by sniffing the first bytes.
type Server struct {
	cfg      config.Config
	log      *logrus.Logger
	registry *match.Registry

	keyMu sync.Mutex
	rng   *rand.Rand
}

// New creates a server. The random source feeds session-key generation and
// must be distinct from the registry's.
func New(cfg config.Config, log *logrus.Logger, registry *match.Registry, rng *rand.Rand) *Server {
	return &Server{cfg: cfg, log: log, registry: registry, rng: rng}
}

// Run listens on both configured addresses until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	addrs := []string{s.cfg.LegacyAddr, s.cfg.ModernAddr}
	listeners := make([]net.Listener, 0, len(addrs))

	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return err
		}
		listeners = append(listeners, ln)
		s.log.WithField("addr", addr).Info("listening")
	}

	go func() {
		<-ctx.Done()
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	for _, ln := range listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			s.acceptLoop(ctx, ln)
		}(ln)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("accept failed")
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn sniffs the protocol and hands the connection to the matching
// session handler. The legacy client opens with its hi struct, whose first
// ciphered word decrypts to the hi signature under the well-known default
// key; anything else is treated as the modern text greeting.
func (s *Server) handleConn(conn net.Conn) {
	br := bufio.NewReader(conn)
	head, err := br.Peek(4)
	if err != nil {
		conn.Close()
		return
	}
	word := binary.BigEndian.Uint32(head) ^ protocol.OpenKey(protocol.DefaultKey)
	if word == protocol.HiSignature {
		s.handleLegacy(conn, br)
		return
	}
	s.handleModern(conn, br)
}

// newSessionKey draws a uniformly random 32-bit session key. The shared
// random source is guarded; sessions start concurrently.
func (s *Server) newSessionKey() uint32 {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	return protocol.NewSessionKey(s.rng)
}
