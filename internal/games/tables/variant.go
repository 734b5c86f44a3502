// Package tables implements the board-game match variants (backgammon,
// checkers, reversi). These games are simulated client-side; the server
// validates seat, turn order and payload bounds, tracks resign/draw/double
// bookkeeping, and relays moves to the opponent.
package tables

import (
	"encoding/binary"
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

const numSeats = 2

// PassCell marks a turn passed with no move (reversi has forced passes).
const PassCell = 0xFFFFFFFF

// DrawnGame is the end-game winner value reporting a draw.
const DrawnGame = 0xFFFFFFFF

// Double message actions.
const (
	DoubleOffer   = 0
	DoubleAccept  = 1
	DoubleDecline = 2
)

// Config bounds one board game's relay validation.
type Config struct {
	Game        protocol.GameType
	Cells       uint32 // valid board positions, 0..Cells-1
	MoveWords   int    // 32-bit words in a move payload
	DiceWords   int    // trailing MoveWords validated as dice, 1..6
	AllowDouble bool
}

var configs = map[protocol.GameType]Config{
	// 24 points plus bar and borne-off trays per side.
	protocol.GameBackgammon: {Game: protocol.GameBackgammon, Cells: 28, MoveWords: 4, DiceWords: 2, AllowDouble: true},
	protocol.GameCheckers:   {Game: protocol.GameCheckers, Cells: 64, MoveWords: 2},
	protocol.GameReversi:    {Game: protocol.GameReversi, Cells: 64, MoveWords: 2},
}

// ConfigFor returns the relay configuration for a board game type.
func ConfigFor(game protocol.GameType) (Config, bool) {
	cfg, ok := configs[game]
	return cfg, ok
}

// Variant is the relay match variant for one board game.
type Variant struct {
	cfg Config
	rng *rand.Rand

	playing bool
	turn    int
	winner  uint32

	drawVote   [numSeats]bool
	pendingDbl int // seat with an unanswered double offer, -1 when none
	cube       int
	votes      [numSeats]bool
}

// NewVariant returns a relay variant for the given board game config.
func NewVariant(cfg Config) *Variant {
	return &Variant{cfg: cfg, pendingDbl: -1, cube: 1}
}

// RequiredPlayers implements match.Variant.
func (v *Variant) RequiredPlayers() int { return numSeats }

// Start picks the opening seat at random and announces it.
func (v *Variant) Start(rng *rand.Rand) []match.Event {
	v.rng = rng
	v.reset()
	return []match.Event{v.turnEvent()}
}

// Finished implements match.Variant.
func (v *Variant) Finished() bool { return v.rng != nil && !v.playing }

// reset begins a fresh game of the same match.
func (v *Variant) reset() {
	v.playing = true
	v.turn = v.rng.Intn(numSeats)
	v.drawVote = [numSeats]bool{}
	v.pendingDbl = -1
	v.cube = 1
	v.votes = [numSeats]bool{}
}

// HandleMessage implements match.Variant. Malformed payloads are Fatal; out
// of turn or out of bounds input is Rejected and relays nothing.
func (v *Variant) HandleMessage(seat int, msgType uint32, payload []byte) match.Outcome {
	switch msgType {
	case protocol.MsgGameMove:
		return v.handleMove(seat, payload)
	case protocol.MsgGameResign:
		return v.handleResign(seat, payload)
	case protocol.MsgGameDrawVote:
		return v.handleDrawVote(seat, payload)
	case protocol.MsgGameDouble:
		return v.handleDouble(seat, payload)
	case protocol.MsgGameEndGame:
		return v.handleEndGame(seat, payload)
	case protocol.MsgGameChat:
		return v.handleChat(seat, payload)
	case protocol.MsgGameNextGameVote:
		return v.handleNextGameVote(seat)
	default:
		return match.Reject("message type not valid for this game")
	}
}

// handleMove bounds-checks one complete turn and relays it. The payload is
// MoveWords big-endian 32-bit words: board cells first, then for backgammon
// the dice rolled for the turn. Turn ownership flips after each relayed move.
func (v *Variant) handleMove(seat int, payload []byte) match.Outcome {
	if len(payload) != 4*v.cfg.MoveWords {
		return match.Fail("malformed move payload")
	}
	if !v.playing {
		return match.Reject("game is not in progress")
	}
	if seat != v.turn {
		return match.Reject("not this seat's turn")
	}
	if v.pendingDbl >= 0 {
		return match.Reject("double offer unanswered")
	}

	cellWords := v.cfg.MoveWords - v.cfg.DiceWords
	for i := 0; i < v.cfg.MoveWords; i++ {
		w := binary.BigEndian.Uint32(payload[4*i:])
		if i < cellWords {
			if w != PassCell && w >= v.cfg.Cells {
				return match.Reject("board position out of range")
			}
			continue
		}
		// Backgammon dice; the second die is zero on a single-die turn.
		if w > 6 || (w == 0 && i == cellWords) {
			return match.Reject("die value out of range")
		}
	}

	v.turn = 1 - v.turn
	v.drawVote = [numSeats]bool{}
	return match.Accept(
		match.Broadcast(protocol.MsgGameMove, append(encodeU32(uint32(seat)), payload...)),
		v.turnEvent(),
	)
}

func (v *Variant) handleResign(seat int, payload []byte) match.Outcome {
	if len(payload) != 0 {
		return match.Fail("malformed resign payload")
	}
	if !v.playing {
		return match.Reject("game is not in progress")
	}
	return v.endGame(uint32(1 - seat))
}

// handleDrawVote records a draw offer; when both seats have an outstanding
// offer the game ends drawn. Offers are cleared by any relayed move.
func (v *Variant) handleDrawVote(seat int, payload []byte) match.Outcome {
	if len(payload) != 0 {
		return match.Fail("malformed draw payload")
	}
	if !v.playing {
		return match.Reject("game is not in progress")
	}
	if v.drawVote[seat] {
		return match.Reject("duplicate draw offer")
	}
	v.drawVote[seat] = true
	if v.drawVote[0] && v.drawVote[1] {
		out := v.endGame(DrawnGame)
		out.Events = append([]match.Event{match.Broadcast(protocol.MsgGameDrawVote, encodeU32(uint32(seat)))}, out.Events...)
		return out
	}
	return match.Accept(match.Broadcast(protocol.MsgGameDrawVote, encodeU32(uint32(seat))))
}

// handleDouble runs the backgammon doubling cube sub-protocol: offer, then
// accept (cube doubles) or decline (decliner forfeits at the current stake).
func (v *Variant) handleDouble(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed double payload")
	}
	if !v.cfg.AllowDouble {
		return match.Reject("doubling not available in this game")
	}
	if !v.playing {
		return match.Reject("game is not in progress")
	}

	action := binary.BigEndian.Uint32(payload)
	switch action {
	case DoubleOffer:
		if v.pendingDbl >= 0 {
			return match.Reject("duplicate double offer")
		}
		if seat != v.turn {
			return match.Reject("not this seat's turn")
		}
		v.pendingDbl = seat
		return match.Accept(match.Broadcast(protocol.MsgGameDouble, encodeSeatValue(seat, DoubleOffer)))
	case DoubleAccept:
		if v.pendingDbl < 0 || v.pendingDbl == seat {
			return match.Reject("no double offer to accept")
		}
		v.pendingDbl = -1
		v.cube *= 2
		return match.Accept(match.Broadcast(protocol.MsgGameDouble, encodeSeatValue(seat, DoubleAccept)))
	case DoubleDecline:
		if v.pendingDbl < 0 || v.pendingDbl == seat {
			return match.Reject("no double offer to decline")
		}
		winner := uint32(v.pendingDbl)
		out := v.endGame(winner)
		out.Events = append([]match.Event{match.Broadcast(protocol.MsgGameDouble, encodeSeatValue(seat, DoubleDecline))}, out.Events...)
		return out
	default:
		return match.Fail("unknown double action")
	}
}

// handleEndGame accepts the client's reported result. The server does not
// replay the board, so the first well-formed report from either seat ends
// the game.
func (v *Variant) handleEndGame(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed end-game payload")
	}
	if !v.playing {
		return match.Reject("game already over")
	}
	winner := binary.BigEndian.Uint32(payload)
	if winner != DrawnGame && winner >= numSeats {
		return match.Reject("winner out of range")
	}
	return v.endGame(winner)
}

func (v *Variant) handleChat(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed chat payload")
	}
	id := binary.BigEndian.Uint32(payload)
	if !protocol.ValidChatID(v.cfg.Game, id) {
		return match.Reject("unknown chat id")
	}
	return match.Accept(match.Broadcast(protocol.MsgGameChat, encodeSeatValue(seat, id)))
}

func (v *Variant) handleNextGameVote(seat int) match.Outcome {
	if v.playing {
		return match.Reject("game still in progress")
	}
	if v.votes[seat] {
		return match.Reject("duplicate rematch vote")
	}
	v.votes[seat] = true

	events := []match.Event{match.Broadcast(protocol.MsgGameNextGameVote, encodeU32(uint32(seat)))}
	if !(v.votes[0] && v.votes[1]) {
		return match.Accept(events...)
	}
	v.reset()
	events = append(events, v.turnEvent())
	return match.Accept(events...)
}

// endGame broadcasts the result with the cube-multiplied stake and leaves
// the variant waiting for rematch votes.
func (v *Variant) endGame(winner uint32) match.Outcome {
	v.playing = false
	v.winner = winner
	v.pendingDbl = -1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:], winner)
	binary.BigEndian.PutUint32(buf[4:], uint32(v.cube))
	return match.Accept(match.Broadcast(protocol.MsgGameEndGame, buf))
}

// Winner returns the reported winner of the last finished game.
func (v *Variant) Winner() uint32 { return v.winner }

// Cube returns the current doubling-cube stake.
func (v *Variant) Cube() int { return v.cube }

func (v *Variant) turnEvent() match.Event {
	return match.Broadcast(protocol.MsgGameTurn, encodeU32(uint32(v.turn)))
}

func encodeU32(val uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, val)
	return buf
}

func encodeSeatValue(seat int, value uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:], uint32(seat))
	binary.BigEndian.PutUint32(buf[4:], value)
	return buf
}
