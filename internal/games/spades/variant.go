package spades

import (
	"encoding/binary"
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/cards"
	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// BidShowHand is the wire bid value requesting the seat's own dealt cards.
const BidShowHand = -1

// Variant adapts the spades engine to the generic match extension point:
// it decodes wire payloads, maps rule violations to Rejected outcomes, and
// encodes the engine's results as outbound events.
type Variant struct {
	opts  Options
	eng   *Engine
	votes [numSeats]bool
}

// NewVariant returns a spades variant; the engine is created when the match
// starts and hands it a random source.
func NewVariant(opts Options) *Variant {
	return &Variant{opts: opts}
}

// RequiredPlayers implements match.Variant.
func (v *Variant) RequiredPlayers() int { return numSeats }

// Start deals the first hand and announces the first bidder.
func (v *Variant) Start(rng *rand.Rand) []match.Event {
	v.eng = NewEngine(v.opts, rng)
	return []match.Event{turnEvent(v.eng.Turn())}
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
	case protocol.MsgGameBid:
		return v.handleBid(seat, payload)
	case protocol.MsgGamePlayCard:
		return v.handlePlay(seat, payload)
	case protocol.MsgGameChat:
		return v.handleChat(seat, payload)
	case protocol.MsgGameNextGameVote:
		return v.handleNextGameVote(seat)
	default:
		return match.Reject("message type not valid for spades")
	}
}

func (v *Variant) handleBid(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed bid payload")
	}
	bid := int(int32(binary.BigEndian.Uint32(payload)))

	if bid == BidShowHand {
		hand, err := v.eng.ViewHand(seat)
		if err != nil {
			return match.Reject(err.Error())
		}
		return match.Accept(match.ToSeat(seat, protocol.MsgGameHand, encodeHand(hand)))
	}

	revealed, err := v.eng.SubmitBid(seat, bid)
	if err != nil {
		return match.Reject(err.Error())
	}

	events := []match.Event{match.Broadcast(protocol.MsgGameBid, encodeSeatValue(seat, int32(bid)))}
	if revealed {
		// Blind double nil: fan the remaining seats' pre-bid views out
		// in turn order.
		for s := v.eng.nextSeat(seat); s != seat; s = v.eng.nextSeat(s) {
			events = append(events, match.ToSeat(s, protocol.MsgGameHand, encodeHand(v.eng.Hand(s))))
		}
	}
	events = append(events, turnEvent(v.eng.Turn()))
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
		events = append(events, match.Broadcast(protocol.MsgGameTrickResult, encodeU32(uint32(trick.Winner))))
	}
	if hand != nil {
		events = append(events, match.Broadcast(protocol.MsgGameScore, encodeHandResult(hand)))
		if hand.GameOver {
			events = append(events, match.Broadcast(protocol.MsgGameEndGame, encodeU32(uint32(v.eng.Winner()))))
			return match.Accept(events...)
		}
	}
	events = append(events, turnEvent(v.eng.Turn()))
	return match.Accept(events...)
}

func (v *Variant) handleChat(seat int, payload []byte) match.Outcome {
	if len(payload) != 4 {
		return match.Fail("malformed chat payload")
	}
	id := binary.BigEndian.Uint32(payload)
	if !protocol.ValidChatID(protocol.GameSpades, id) {
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
	events = append(events, turnEvent(v.eng.Turn()))
	return match.Accept(events...)
}

func turnEvent(seat int) match.Event {
	return match.Broadcast(protocol.MsgGameTurn, encodeU32(uint32(seat)))
}

func encodeU32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
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

// encodeHandResult serializes per-team deltas, totals and bags.
func encodeHandResult(r *HandResult) []byte {
	buf := make([]byte, 4*3*numTeams)
	off := 0
	for t := 0; t < numTeams; t++ {
		binary.BigEndian.PutUint32(buf[off:], uint32(int32(r.TeamDelta[t])))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(int32(r.TeamScore[t])))
		binary.BigEndian.PutUint32(buf[off+8:], uint32(int32(r.TeamBags[t])))
		off += 12
	}
	return buf
}
