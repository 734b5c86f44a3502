package server

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// handleLegacy runs one legacy binary session: hi/hello key negotiation,
// then a blocking read loop that routes the join request to the registry and
// everything after it to the joined match. On this path Rejected and Fatal
// outcomes both terminate the connection.
func (s *Server) handleLegacy(conn net.Conn, br *bufio.Reader) {
	log := s.log.WithField("remote", conn.RemoteAddr().String()).WithField("proto", "legacy")

	hi, err := protocol.ReadHi(br)
	if err != nil {
		log.WithError(err).Debug("handshake failed")
		conn.Close()
		return
	}
	sessionKey := s.newSessionKey()
	if err := protocol.WriteHello(conn, protocol.Hello{SessionKey: sessionKey, MachineID: hi.MachineID}); err != nil {
		conn.Close()
		return
	}

	// Outbound envelope state lives on the writer goroutine.
	phase := protocol.PhaseLobby
	var seq uint32
	sock := newPlayerSocket(conn, log, func(msg outMsg) ([]byte, error) {
		if msg.enterGame {
			phase = protocol.PhaseGame
			return nil, nil
		}
		seq++
		return protocol.Encode(phase, msg.msgType, msg.payload, sessionKey, seq)
	})
	defer sock.Kick()

	var (
		m        *match.Match
		rosterID int
		inPhase  = protocol.PhaseLobby
	)
	defer func() {
		if m != nil {
			m.Disconnect(rosterID)
		}
	}()

	for {
		msgType, payload, err := protocol.ReadMessage(br, inPhase, sessionKey)
		if err != nil {
			log.WithError(err).Debug("session closed")
			return
		}

		if m == nil {
			switch msgType {
			case protocol.MsgClientConfig:
				// Informational; nothing to apply server-side.
				continue
			case protocol.MsgServerStatus:
				sock.Send(protocol.MsgServerStatus, s.statusPayload())
				continue
			case protocol.MsgJoinLobby:
				gt, name, skill, err := parseJoin(payload)
				if err != nil {
					log.WithError(err).Info("bad join request")
					return
				}
				// The channel switches signatures in both directions
				// once seated; the switch precedes placement so the
				// join's own roster update already rides the game
				// channel.
				sock.EnterGamePhase()
				m, rosterID, err = s.registry.FindLobby(gt, name, skill, sock)
				if err != nil {
					log.WithError(err).Info("lobby placement failed")
					return
				}
				log = log.WithField("match", m.ID)
				inPhase = protocol.PhaseGame
				continue
			default:
				log.WithField("type", msgType).Info("unexpected lobby message")
				return
			}
		}

		out := m.HandleMessage(rosterID, msgType, payload)
		if out.Verdict != match.VerdictAccepted {
			log.WithField("type", msgType).WithField("reason", out.Reason).Info("terminating on protocol violation")
			return
		}
	}
}

// parseJoin decodes the matchmaking request: a 4-character game code, the
// declared skill level, and the length-prefixed player name.
func parseJoin(payload []byte) (protocol.GameType, string, int, error) {
	if len(payload) < 12 {
		return 0, "", 0, fmt.Errorf("server: join payload too short")
	}
	gt, err := protocol.ParseGameCode(string(payload[0:4]))
	if err != nil {
		return 0, "", 0, err
	}
	skill := int(binary.BigEndian.Uint32(payload[4:]))
	nameLen := int(binary.BigEndian.Uint32(payload[8:]))
	if nameLen <= 0 || nameLen > 64 || 12+nameLen > len(payload) {
		return 0, "", 0, fmt.Errorf("server: bad name length %d", nameLen)
	}
	return gt, string(payload[12 : 12+nameLen]), skill, nil
}

// statusPayload reports the live match count per game type.
func (s *Server) statusPayload() []byte {
	buf := make([]byte, 4*protocol.NumGameTypes)
	for gt := 0; gt < protocol.NumGameTypes; gt++ {
		binary.BigEndian.PutUint32(buf[4*gt:], uint32(s.registry.MatchCount(protocol.GameType(gt))))
	}
	return buf
}
