package hearts

import (
	"encoding/binary"
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/cards"
	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// Variant adapts the hearts engine to the generic match extension point.
// Hands are dealt server-side and delivered per seat, so every deal and pass
// transfer fans out private MsgGameHand events.
type Variant struct {
	opts  Options
	eng   *Engine
	votes [numSeats]bool
}

// NewVariant returns a hearts variant; the engine is created when the match
// starts and hands it a random source.
func NewVariant(opts Options) *Variant {
	return &Variant{opts: opts}
}

// RequiredPlayers implements match.Variant.
func (v *Variant) RequiredPlayers() int { return numSeats }

// Start deals the first hand and delivers each seat its cards.
func (v *Variant) Start(rng *rand.Rand) []match.Event {
	v.eng = NewEngine(v.opts, rng)
	return v.handStartEvents()
}

// Finished implements match.Variant. A successful rematch restart makes it
// report false again.
func (v *Variant) Finished() bool {
	return v.eng != nil && v.eng.Phase() == PhaseEnded
}

// HandleMessage implements match.Variant. Malformed payloads are Fatal; rule
// violations are Rejected with no state mutated.
func (v *Variant) HandleMessage(seat int, msgType uint32, payload []byte) match.Outcome {
	switch msgType {
	case protocol.MsgGamePassCards:
		return v.handlePass(seat, payload)
	case protocol.MsgGamePlayCard:
		return v.handlePlay(seat, payload)
	case protocol.MsgGameChat:
		return v.handleChat(seat, payload)
	case protocol.MsgGameNextGameVote:
		return v.handleNextGameVote(seat)
	default:
		return match.Reject("message type not valid for hearts")
	}
}

func (v *Variant) handlePass(seat int, payload []byte) match.Outcome {
	if len(payload) != 4*passCount {
		return match.Fail("malformed pass payload")
	}
	picks := make([]cards.Card, passCount)
	for i := range picks {
		picks[i] = cards.Card(binary.BigEndian.Uint32(payload[4*i:]))
	}

	done, err := v.eng.PassCards(seat, picks)
	if err != nil {
		return match.Reject(err.Error())
	}

	// Selections stay private; the rest of the table only learns that the
	// seat has passed.
	events := []match.Event{match.Broadcast(protocol.MsgGamePassCards, encodeU32(uint32(seat)))}
	if done {
		for s := 0; s < numSeats; s++ {
			events = append(events, match.ToSeat(s, protocol.MsgGameHand, encodeHand(v.eng.Hand(s))))
		}
		events = append(events, turnEvent(v.eng.Turn()))
	}
	return match.Accept(events...)
}

func (v *Variant) handlePlay(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed play payload")
	}
	c := cards.Card(binary.BigEndian.Uint32(payload))

	trick, hand, err := v.eng.PlayCard(seat, c)
	if err != nil {
		return match.Reject(err.Error())
	}

	events := []match.Event{match.Broadcast(protocol.MsgGamePlayCard, encodeSeatValue(seat, int32(c)))}
	if trick != nil {
		events = append(events, match.Broadcast(protocol.MsgGameTrickResult, encodeSeatValue(trick.Winner, int32(trick.Points))))
	}
	if hand != nil {
		events = append(events, match.Broadcast(protocol.MsgGameScore, encodeHandResult(hand)))
		if hand.GameOver {
			events = append(events, match.Broadcast(protocol.MsgGameEndGame, encodeU32(uint32(v.eng.Winner()))))
			return match.Accept(events...)
		}
		// The engine has already dealt the next hand.
		events = append(events, v.handStartEvents()...)
		return match.Accept(events...)
	}
	events = append(events, turnEvent(v.eng.Turn()))
	return match.Accept(events...)
}

func (v *Variant) handleChat(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed chat payload")
	}
	id := binary.BigEndian.Uint32(payload)
	if !protocol.ValidChatID(protocol.GameHearts, id) {
		return match.Reject("unknown chat id")
	}
	return match.Accept(match.Broadcast(protocol.MsgGameChat, encodeSeatValue(seat, int32(id))))
}

func (v *Variant) handleNextGameVote(seat int) match.Outcome {
	if v.eng.Phase() != PhaseEnded {
		return match.Reject("game still in progress")
	}
	if v.votes[seat] {
		return match.Reject("duplicate rematch vote")
	}
	v.votes[seat] = true

	events := []match.Event{match.Broadcast(protocol.MsgGameNextGameVote, encodeU32(uint32(seat)))}
	for s := 0; s < numSeats; s++ {
		if !v.votes[s] {
			return match.Accept(events...)
		}
	}
	if err := v.eng.Restart(); err != nil {
		return match.Reject(err.Error())
	}
	v.votes = [numSeats]bool{}
	events = append(events, v.handStartEvents()...)
	return match.Accept(events...)
}

// handStartEvents fans out the freshly dealt hands. On no-pass hands the
// engine is already playing and the lead seat is announced; otherwise clients
// are expected to submit their pass selections.
func (v *Variant) handStartEvents() []match.Event {
	events := make([]match.Event, 0, numSeats+1)
	for s := 0; s < numSeats; s++ {
		events = append(events, match.ToSeat(s, protocol.MsgGameHand, encodeHand(v.eng.Hand(s))))
	}
	if v.eng.Phase() == PhasePlaying {
		events = append(events, turnEvent(v.eng.Turn()))
	}
	return events
}

func turnEvent(seat int) match.Event {
	return match.Broadcast(protocol.MsgGameTurn, encodeU32(uint32(seat)))
}

func encodeU32(val uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, val)
	return buf
}

func encodeSeatValue(seat int, value int32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:], uint32(seat))
	binary.BigEndian.PutUint32(buf[4:], uint32(value))
	return buf
}

// encodeHand serializes a hand as a count followed by card values.
func encodeHand(h cards.Hand) []byte {
	buf := make([]byte, 4+4*len(h))
	binary.BigEndian.PutUint32(buf[0:], uint32(len(h)))
	for i, c := range h {
		binary.BigEndian.PutUint32(buf[4+4*i:], uint32(c))
	}
	return buf
}

// encodeHandResult serializes per-seat charged points and running totals,
// then the shooting seat (or -1).
func encodeHandResult(r *HandResult) []byte {
	buf := make([]byte, 4*2*numSeats+4)
	off := 0
	for s := 0; s < numSeats; s++ {
		binary.BigEndian.PutUint32(buf[off:], uint32(int32(r.HandTaken[s])))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(int32(r.Totals[s])))
		off += 8
	}
	binary.BigEndian.PutUint32(buf[off:], uint32(int32(r.ShotMoon)))
	return buf
}
