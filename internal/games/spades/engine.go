// Package spades implements the fully server-simulated spades engine: deal,
// bidding (including nil and blind double nil), trick play, and team scoring
// with bag carry-over.
package spades

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/cards"
)

// Phase is the engine's hand state, independent of the match's outer
// lifecycle.
type Phase int

const (
	PhaseBidding Phase = iota
	PhasePlaying
	PhaseEnded
)

const (
	numSeats      = 4
	cardsPerHand  = 13
	numTeams      = 2
	bagPenaltyAt  = 10
	bagPenaltyPts = 100
)

// Bid values. Non-negative values are trick bids; zero is nil.
const (
	BidNil       = 0
	BidMax       = 13
	BidDoubleNil = -2

	bidUnset = -100
)

// Options bound a game of spades.
type Options struct {
	WinScore  int // game over when a team reaches this (≥)
	LoseScore int // game over when a team falls to this (≤)
}

// DefaultOptions returns the standard 500/-200 thresholds.
func DefaultOptions() Options {
	return Options{WinScore: 500, LoseScore: -200}
}

// Rule violation errors. None of them leaves engine state mutated.
var (
	ErrNotBidding  = errors.New("spades: not in bidding phase")
	ErrNotPlaying  = errors.New("spades: not in playing phase")
	ErrNotYourTurn = errors.New("spades: not this seat's turn")
	ErrAlreadyBid  = errors.New("spades: seat already bid")
	ErrBidRange    = errors.New("spades: bid out of range")
	ErrLateDblNil  = errors.New("spades: double nil only from the initial unbid state")
	ErrCardNotHeld = errors.New("spades: card not held")
	ErrMustFollow  = errors.New("spades: must follow the lead suit")
	ErrNotEnded    = errors.New("spades: game is not over")
)

// Engine holds the full state of one spades game across hands. It is not
// concurrency-safe; the match lock serializes access.
type Engine struct {
	opts   Options
	rng    *rand.Rand
	phase  Phase
	dealer int

	hands   [numSeats]cards.Hand
	bids    [numSeats]int
	viewed  [numSeats]bool // seat has seen its hand this hand
	bidTurn int
	trick   *cards.Trick
	leader  int
	taken   [numSeats]int

	teamScore [numTeams]int
	teamBags  [numTeams]int
	winner    int // winning team once ended, -1 otherwise
}

// NewEngine creates an engine and deals the first hand.
func NewEngine(opts Options, rng *rand.Rand) *Engine {
	e := &Engine{opts: opts, rng: rng, dealer: 0, winner: -1}
	e.deal()
	return e
}

// deal shuffles a fresh deck and distributes 13 cards to each seat, resetting
// per-hand state. Bidding starts left of the dealer.
func (e *Engine) deal() {
	deck := cards.NewDeck()
	deck.Shuffle(e.rng)
	hands, _ := deck.Deal(numSeats)
	for s := 0; s < numSeats; s++ {
		e.hands[s] = hands[s]
		e.bids[s] = bidUnset
		e.viewed[s] = false
		e.taken[s] = 0
	}
	e.phase = PhaseBidding
	e.bidTurn = e.nextSeat(e.dealer)
	e.leader = e.nextSeat(e.dealer)
	e.trick = cards.NewTrick(numSeats)
}

func (e *Engine) nextSeat(s int) int { return (s + 1) % numSeats }

// Phase returns the engine phase.
func (e *Engine) Phase() Phase { return e.phase }

// Hand returns a copy of the seat's current hand.
func (e *Engine) Hand(seat int) cards.Hand {
	h := make(cards.Hand, len(e.hands[seat]))
	copy(h, e.hands[seat])
	return h
}

// Turn returns the seat expected to act: the bidder during bidding, the seat
// on play otherwise.
func (e *Engine) Turn() int {
	if e.phase == PhaseBidding {
		return e.bidTurn
	}
	return e.playTurn()
}

// playTurn derives the seat on play from the leader and the trick's filled
// slots.
func (e *Engine) playTurn() int {
	s := e.leader
	for e.trick.Card(s) != cards.NoCard {
		s = e.nextSeat(s)
	}
	return s
}

// TeamOf returns the seat's team: seats 0&2 versus 1&3.
func (e *Engine) TeamOf(seat int) int { return seat % numTeams }

// TeamScore returns the cumulative score for a team.
func (e *Engine) TeamScore(team int) int { return e.teamScore[team] }

// TeamBags returns the accumulated bag count for a team.
func (e *Engine) TeamBags(team int) int { return e.teamBags[team] }

// TricksTaken returns the seat's trick count this hand.
func (e *Engine) TricksTaken(seat int) int { return e.taken[seat] }

// Bid returns the recorded bid of the seat, or false if the seat has not bid.
func (e *Engine) Bid(seat int) (int, bool) {
	if e.bids[seat] == bidUnset {
		return 0, false
	}
	return e.bids[seat], true
}

// Winner returns the winning team once the game has ended, -1 otherwise.
func (e *Engine) Winner() int { return e.winner }

// ViewHand answers a seat's request to see its own dealt cards. Always legal
// during bidding; it forfeits the seat's option to bid double nil.
func (e *Engine) ViewHand(seat int) (cards.Hand, error) {
	if e.phase != PhaseBidding {
		return nil, ErrNotBidding
	}
	e.viewed[seat] = true
	return e.Hand(seat), nil
}

// SubmitBid records a numeric bid (0–13, 0 is nil) or double nil for the
// seat. Numeric bids must come from the seat on bidding turn; a double nil is
// legal only from the hand's initial unbid state, before the seat has viewed
// its cards, and counts as a blind commitment. When it is submitted, every
// other seat's hand is revealed in turn order as their own pre-bid view
// (reported via the returned revealed flag to the caller, which fans the
// hands out). The fourth bid transitions the engine to playing.
func (e *Engine) SubmitBid(seat, bid int) (revealed bool, err error) {
	if e.phase != PhaseBidding {
		return false, ErrNotBidding
	}
	if e.bids[seat] != bidUnset {
		return false, ErrAlreadyBid
	}

	switch {
	case bid == BidDoubleNil:
		for s := 0; s < numSeats; s++ {
			if e.bids[s] != bidUnset {
				return false, ErrLateDblNil
			}
		}
		if e.viewed[seat] {
			return false, ErrLateDblNil
		}
		revealed = true
		for s := 0; s < numSeats; s++ {
			e.viewed[s] = true
		}
	case bid >= BidNil && bid <= BidMax:
		if seat != e.bidTurn {
			return false, ErrNotYourTurn
		}
	default:
		return false, ErrBidRange
	}

	e.bids[seat] = bid
	e.viewed[seat] = true
	e.advanceBidTurn()

	if e.allBid() {
		e.phase = PhasePlaying
		e.leader = e.nextSeat(e.dealer)
	}
	return revealed, nil
}

// advanceBidTurn moves the bidding turn past seats that already hold a bid.
func (e *Engine) advanceBidTurn() {
	for i := 0; i < numSeats; i++ {
		e.bidTurn = e.nextSeat(e.bidTurn)
		if e.bids[e.bidTurn] == bidUnset {
			return
		}
	}
}

func (e *Engine) allBid() bool {
	for s := 0; s < numSeats; s++ {
		if e.bids[s] == bidUnset {
			return false
		}
	}
	return true
}

// TrickResult reports a completed trick.
type TrickResult struct {
	Winner int
}

// HandResult reports a scored hand.
type HandResult struct {
	TeamDelta [numTeams]int
	TeamScore [numTeams]int
	TeamBags  [numTeams]int
	GameOver  bool
}

// PlayCard plays a card from the seat on turn. Legality: the seat must be on
// turn, must hold the card, and must follow the lead suit unless void in it.
// Returns the trick result when the play completes a trick and the hand
// result when it completes the hand.
func (e *Engine) PlayCard(seat int, c cards.Card) (*TrickResult, *HandResult, error) {
	if e.phase != PhasePlaying {
		return nil, nil, ErrNotPlaying
	}
	if seat != e.playTurn() {
		return nil, nil, ErrNotYourTurn
	}
	if !c.Valid() || !e.hands[seat].Contains(c) {
		return nil, nil, ErrCardNotHeld
	}
	if lead := e.trick.Lead(); lead != cards.NoCard {
		if c.Suit() != lead.Suit() && e.hands[seat].CountSuit(lead.Suit()) > 0 {
			return nil, nil, ErrMustFollow
		}
	}

	e.hands[seat].Remove(c)
	if err := e.trick.Play(seat, c); err != nil {
		return nil, nil, fmt.Errorf("spades: %w", err)
	}
	if !e.trick.Finished() {
		return nil, nil, nil
	}

	winner, err := e.trick.Winner(cards.SuitSpades)
	if err != nil {
		return nil, nil, err
	}
	e.taken[winner]++
	e.leader = winner
	e.trick = cards.NewTrick(numSeats)
	tr := &TrickResult{Winner: winner}

	if !e.hands[0].Empty() {
		return tr, nil, nil
	}
	return tr, e.scoreHand(), nil
}

// scoreHand applies the hand's team scoring and either ends the game or
// redeals with a rotated dealer.
func (e *Engine) scoreHand() *HandResult {
	res := &HandResult{}
	for team := 0; team < numTeams; team++ {
		delta, bags := ScoreTeam(
			[2]int{e.bids[team], e.bids[team+2]},
			[2]int{e.taken[team], e.taken[team+2]},
			e.teamBags[team],
		)
		e.teamScore[team] += delta
		e.teamBags[team] = bags
		res.TeamDelta[team] = delta
		res.TeamScore[team] = e.teamScore[team]
		res.TeamBags[team] = bags
	}

	for team := 0; team < numTeams; team++ {
		if e.teamScore[team] >= e.opts.WinScore || e.teamScore[team] <= e.opts.LoseScore {
			e.phase = PhaseEnded
			res.GameOver = true
		}
	}
	if res.GameOver {
		if e.teamScore[1] > e.teamScore[0] {
			e.winner = 1
		} else {
			e.winner = 0
		}
		return res
	}

	e.dealer = e.nextSeat(e.dealer)
	e.deal()
	return res
}

// Restart resets scores and deals a fresh game after a unanimous rematch
// vote. The dealer keeps rotating.
func (e *Engine) Restart() error {
	if e.phase != PhaseEnded {
		return ErrNotEnded
	}
	e.teamScore = [numTeams]int{}
	e.teamBags = [numTeams]int{}
	e.winner = -1
	e.dealer = e.nextSeat(e.dealer)
	e.deal()
	return nil
}

// ScoreTeam scores one team's hand given its two seats' bids and tricks taken
// plus the team's carried bag count. Pure function, exposed for tests.
//
// Nil (bid 0) scores ±100 on taking zero/some tricks; double nil doubles both
// magnitudes; a failed nil's tricks become bags. The team contract is the sum
// of positive bids: made contracts award contract×10 with excess non-nil
// tricks as bags, set contracts deduct contract×10. The overtrick bonus is
// the excess of all team tricks over the contract, added whenever positive.
// Ten accumulated bags cost 100 points and wrap the remainder.
func ScoreTeam(bids, tricks [2]int, bagsIn int) (delta, bagsOut int) {
	bags := bagsIn
	contract := 0
	nonNilTricks := 0
	allTricks := 0

	for i := 0; i < 2; i++ {
		allTricks += tricks[i]
		switch {
		case bids[i] == BidDoubleNil:
			if tricks[i] == 0 {
				delta += 200
			} else {
				delta -= 200
				bags += tricks[i]
			}
		case bids[i] == BidNil:
			if tricks[i] == 0 {
				delta += 100
			} else {
				delta -= 100
				bags += tricks[i]
			}
		default:
			contract += bids[i]
			nonNilTricks += tricks[i]
		}
	}

	if contract > 0 {
		if nonNilTricks >= contract {
			delta += contract * 10
			bags += nonNilTricks - contract
		} else {
			delta -= contract * 10
		}
	}
	if over := allTricks - contract; over > 0 {
		delta += over
	}
	if bags >= bagPenaltyAt {
		delta -= bagPenaltyPts * (bags / bagPenaltyAt)
		bags %= bagPenaltyAt
	}
	return delta, bags
}
