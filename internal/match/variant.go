// Package match implements the generic match lifecycle state machine shared
// by every game, and the registry that owns all live matches.
package match

import "math/rand"

// Verdict classifies the result of interpreting one inbound message.
type Verdict int

const (
	// VerdictAccepted means the message mutated game state; Events carry
	// the resulting outbound messages.
	VerdictAccepted Verdict = iota
	// VerdictRejected means the message was invalid but recoverable; no
	// state was mutated. The protocol adapter decides whether this is
	// silent (modern) or connection-closing (legacy).
	VerdictRejected
	// VerdictFatal means a protocol violation; the offending connection
	// must be terminated on either protocol.
	VerdictFatal
)

// AllSeats addresses an event to every seat in the match.
const AllSeats = -1

// Event is one outbound message produced by a variant or by the match core.
type Event struct {
	Seat    int // destination seat, or AllSeats
	Type    uint32
	Payload []byte
}

// Broadcast builds an event addressed to every seat.
func Broadcast(msgType uint32, payload []byte) Event {
	return Event{Seat: AllSeats, Type: msgType, Payload: payload}
}

// ToSeat builds an event addressed to a single seat.
func ToSeat(seat int, msgType uint32, payload []byte) Event {
	return Event{Seat: seat, Type: msgType, Payload: payload}
}

// Outcome is the result of processing one inbound message.
type Outcome struct {
	Verdict Verdict
	Reason  string
	Events  []Event
}

// Accept returns an accepted outcome carrying the given outbound events.
func Accept(events ...Event) Outcome {
	return Outcome{Verdict: VerdictAccepted, Events: events}
}

// Reject returns a recoverable rejection. No state may have been mutated.
func Reject(reason string) Outcome {
	return Outcome{Verdict: VerdictRejected, Reason: reason}
}

// Fail returns a session-fatal rejection. No state may have been mutated.
func Fail(reason string) Outcome {
	return Outcome{Verdict: VerdictFatal, Reason: reason}
}

// Variant is the per-game extension point plugged into the generic Match.
// The match core serializes all calls through its own lock; implementations
// need no locking of their own.
type Variant interface {
	// RequiredPlayers returns the fixed seat count (2 or 4).
	RequiredPlayers() int

	// Start is invoked when the match transitions to Playing, after seats
	// are assigned. The returned events are delivered to the seats.
	Start(rng *rand.Rand) []Event

	// HandleMessage interprets one inbound application message from the
	// given seat. Validation must precede any mutation: a Rejected or
	// Fatal outcome implies game state is untouched.
	HandleMessage(seat int, msgType uint32, payload []byte) Outcome

	// Finished reports whether the current game has concluded. A variant
	// whose rematch sub-protocol revives play reports false again.
	Finished() bool
}
