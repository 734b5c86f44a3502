package server

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// Modern text dialect: the client opens with a literal greeting line that
// the server echoes, then issues ASCII commands with &-delimited fields.
// Server-to-client game traffic is delivered as
//
//	STATE <root> Length: <hex>\r\n\r\n<xml>\r\n
//
// where the XML root is one of GameInit, GameEvent or ManagementEvent.
// On this path Rejected outcomes are silently dropped; only Fatal
// outcomes (and framing errors) terminate the connection.

// gameInit announces match start: the receiver's seat and the roster in seat
// order.
type gameInit struct {
	XMLName xml.Name `xml:"GameInit"`
	Seat    int      `xml:"Seat"`
	Players []string `xml:"Players>Player"`
}

// gameEvent relays one validated in-game message.
type gameEvent struct {
	XMLName xml.Name `xml:"GameEvent"`
	Type    uint32   `xml:"Type"`
	Data    string   `xml:"Data"` // hex-encoded payload
}

// managementEvent carries the out-of-band sub-protocols: roster updates,
// resign/draw/double bookkeeping, game results and rematch voting.
type managementEvent struct {
	XMLName xml.Name `xml:"ManagementEvent"`
	Kind    string   `xml:"Kind"`
	Data    string   `xml:"Data"` // hex-encoded payload
}

var managementKinds = map[uint32]string{
	protocol.MsgRosterUpdate:     "Roster",
	protocol.MsgGameEndGame:      "EndGame",
	protocol.MsgGameEndMatch:     "EndMatch",
	protocol.MsgGameDrawVote:     "Draw",
	protocol.MsgGameResign:       "Resign",
	protocol.MsgGameDouble:       "Double",
	protocol.MsgGameNextGameVote: "NextGameVote",
}

// handleModern runs one modern text session.
func (s *Server) handleModern(conn net.Conn, br *bufio.Reader) {
	log := s.log.WithField("remote", conn.RemoteAddr().String()).WithField("proto", "modern")

	greeting, err := readLine(br)
	if err != nil {
		conn.Close()
		return
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", greeting); err != nil {
		conn.Close()
		return
	}

	sock := newPlayerSocket(conn, log, encodeModern)
	defer sock.Kick()

	var (
		m        *match.Match
		rosterID int
	)
	defer func() {
		if m != nil {
			m.Disconnect(rosterID)
		}
	}()

	for {
		line, err := readLine(br)
		if err != nil {
			log.WithError(err).Debug("session closed")
			return
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "JOIN":
			if m != nil {
				continue // duplicate join retransmit, tolerated
			}
			fields := parseFields(rest)
			gt, err := protocol.ParseGameCode(fields["Game"])
			if err != nil {
				log.WithError(err).Info("bad join request")
				return
			}
			name := fields["Name"]
			if name == "" {
				name = fields["Session"]
			}
			skill, _ := strconv.Atoi(fields["Skill"])
			m, rosterID, err = s.registry.FindLobby(gt, name, skill, sock)
			if err != nil {
				log.WithError(err).Info("lobby placement failed")
				return
			}
			log = log.WithField("match", m.ID)
			sock.SendRaw([]byte(fmt.Sprintf("JoinContext %s&%s&%s\r\nREADY\r\n", fields["Session"], m.ID, gt.Code())))
		case "PLAY":
			if m == nil {
				continue // late or replayed before join, tolerated
			}
			msgType, payload, err := parsePlay(rest)
			if err != nil {
				log.WithError(err).Info("malformed play line")
				return
			}
			out := m.HandleMessage(rosterID, msgType, payload)
			if out.Verdict == match.VerdictFatal {
				log.WithField("type", msgType).WithField("reason", out.Reason).Info("terminating on protocol violation")
				return
			}
			// Rejected: no event is produced; the client self-corrects.
		default:
			log.WithField("cmd", cmd).Info("unknown command")
			return
		}
	}
}

// encodeModern renders an application message as a STATE line. Runs on the
// writer goroutine.
func encodeModern(msg outMsg) ([]byte, error) {
	if msg.enterGame {
		return nil, nil
	}

	var (
		doc  interface{}
		root string
	)
	switch {
	case msg.msgType == protocol.MsgGameStart:
		seat, names, err := decodeGameStart(msg.payload)
		if err != nil {
			return nil, err
		}
		doc = gameInit{Seat: seat, Players: names}
		root = "GameInit"
	case managementKinds[msg.msgType] != "":
		doc = managementEvent{Kind: managementKinds[msg.msgType], Data: hex.EncodeToString(msg.payload)}
		root = "ManagementEvent"
	default:
		doc = gameEvent{Type: msg.msgType, Data: hex.EncodeToString(msg.payload)}
		root = "GameEvent"
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("STATE %s Length: %x\r\n\r\n%s\r\n", root, len(body), body)), nil
}

// decodeGameStart unpacks the match-start payload: seat, seat count, then
// length-prefixed names in seat order.
func decodeGameStart(payload []byte) (int, []string, error) {
	if len(payload) < 8 {
		return 0, nil, fmt.Errorf("server: short game start payload")
	}
	seat := int(binary.BigEndian.Uint32(payload[0:]))
	count := int(binary.BigEndian.Uint32(payload[4:]))
	names := make([]string, 0, count)
	off := 8
	for i := 0; i < count; i++ {
		if off+4 > len(payload) {
			return 0, nil, fmt.Errorf("server: truncated game start payload")
		}
		n := int(binary.BigEndian.Uint32(payload[off:]))
		off += 4
		if n < 0 || off+n > len(payload) {
			return 0, nil, fmt.Errorf("server: truncated game start payload")
		}
		names = append(names, string(payload[off:off+n]))
		off += n
	}
	return seat, names, nil
}

// parsePlay decodes a PLAY command tail: "match Type=<num>&Data=<hex>".
func parsePlay(rest string) (uint32, []byte, error) {
	_, args, ok := strings.Cut(rest, " ")
	if !ok {
		return 0, nil, fmt.Errorf("server: malformed play command")
	}
	fields := parseFields(args)
	t, err := strconv.ParseUint(fields["Type"], 10, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("server: bad message type: %w", err)
	}
	payload, err := hex.DecodeString(fields["Data"])
	if err != nil {
		return 0, nil, fmt.Errorf("server: bad payload encoding: %w", err)
	}
	return uint32(t), payload, nil
}

// parseFields splits &-delimited Key=Value pairs.
func parseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, "&") {
		if k, v, ok := strings.Cut(part, "="); ok {
			fields[k] = v
		}
	}
	return fields
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
