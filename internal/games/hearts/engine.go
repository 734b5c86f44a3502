// Package hearts implements the fully server-simulated hearts engine: deal,
// the rotating pass phase, trick play with the opening-card and points-broken
// lead restrictions, and shoot-the-moon scoring.
package hearts

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/cards"
)

// Phase is the engine's hand state.
type Phase int

const (
	PhasePassing Phase = iota
	PhasePlaying
	PhaseEnded
)

const (
	numSeats     = 4
	passCount    = 3
	handPoints   = 26 // full per-hand point pool: 13 hearts + queen of spades
)

// Pass directions, cycling each hand. The offset is the seat distance to the
// receiving seat; PassNone skips the passing phase.
const (
	PassLeft   = 1
	PassRight  = 3
	PassAcross = 2
	PassNone   = 0
)

var passCycle = [4]int{PassLeft, PassRight, PassAcross, PassNone}

// Options bound a game of hearts.
type Options struct {
	PointCeiling int // game over when any seat's total reaches this
}

// DefaultOptions returns the standard 100-point ceiling.
func DefaultOptions() Options {
	return Options{PointCeiling: 100}
}

// Rule violation errors. None of them leaves engine state mutated.
var (
	ErrNotPassing         = errors.New("hearts: not in passing phase")
	ErrNotPlaying         = errors.New("hearts: not in playing phase")
	ErrNotYourTurn        = errors.New("hearts: not this seat's turn")
	ErrAlreadyPassed      = errors.New("hearts: seat already passed")
	ErrPassCount          = errors.New("hearts: must pass exactly three cards")
	ErrCardNotHeld        = errors.New("hearts: card not held")
	ErrDuplicatePass      = errors.New("hearts: duplicate card in pass")
	ErrMustFollow         = errors.New("hearts: must follow the lead suit")
	ErrMustOpenLead       = errors.New("hearts: first trick must be led with the opening card")
	ErrPointsNotBroken    = errors.New("hearts: points have not been broken")
	ErrNoFirstTrickPoints = errors.New("hearts: no point cards on the first trick")
	ErrNotEnded           = errors.New("hearts: game is not over")
)

// Engine holds the full state of one hearts game across hands. It is not
// concurrency-safe; the match lock serializes access.
type Engine struct {
	opts Options
	rng  *rand.Rand

	phase   Phase
	handNum int // selects the pass direction

	hands      [numSeats]cards.Hand
	passPick   [numSeats][]cards.Card
	trick      *cards.Trick
	leader     int
	firstTrick bool
	broken     bool

	handTaken [numSeats]int // points taken this hand
	totals    [numSeats]int // running game totals
	winner    int           // lowest total once ended, -1 otherwise
}

// NewEngine creates an engine and deals the first hand.
func NewEngine(opts Options, rng *rand.Rand) *Engine {
	e := &Engine{opts: opts, rng: rng, winner: -1}
	e.deal()
	return e
}

// deal shuffles and distributes the deck and enters the passing phase, or
// directly the playing phase on a no-pass hand.
func (e *Engine) deal() {
	deck := cards.NewDeck()
	deck.Shuffle(e.rng)
	hands, _ := deck.Deal(numSeats)
	for s := 0; s < numSeats; s++ {
		e.hands[s] = hands[s]
		e.passPick[s] = nil
		e.handTaken[s] = 0
	}
	e.trick = cards.NewTrick(numSeats)
	e.firstTrick = true
	e.broken = false

	if e.PassDirection() == PassNone {
		e.beginPlay()
		return
	}
	e.phase = PhasePassing
}

// beginPlay hands the lead to the holder of the opening card.
func (e *Engine) beginPlay() {
	e.phase = PhasePlaying
	for s := 0; s < numSeats; s++ {
		if e.hands[s].Contains(cards.TwoOfClubs) {
			e.leader = s
			break
		}
	}
}

// PassDirection returns the current hand's pass offset.
func (e *Engine) PassDirection() int { return passCycle[e.handNum%len(passCycle)] }

// Phase returns the engine phase.
func (e *Engine) Phase() Phase { return e.phase }

// Hand returns a copy of the seat's current hand.
func (e *Engine) Hand(seat int) cards.Hand {
	h := make(cards.Hand, len(e.hands[seat]))
	copy(h, e.hands[seat])
	return h
}

// Turn returns the seat expected to play. Only meaningful while playing.
func (e *Engine) Turn() int {
	s := e.leader
	for e.trick.Card(s) != cards.NoCard {
		s = (s + 1) % numSeats
	}
	return s
}

// Total returns a seat's running game total.
func (e *Engine) Total(seat int) int { return e.totals[seat] }

// HandPoints returns a seat's points taken this hand.
func (e *Engine) HandPoints(seat int) int { return e.handTaken[seat] }

// Winner returns the seat with the lowest total once ended, -1 otherwise.
func (e *Engine) Winner() int { return e.winner }

// PassCards records the seat's three-card pass selection. Cards are validated
// for current possession but move only once all four seats have passed; the
// returned done flag reports that transfer happened and play began.
func (e *Engine) PassCards(seat int, picks []cards.Card) (done bool, err error) {
	if e.phase != PhasePassing {
		return false, ErrNotPassing
	}
	if e.passPick[seat] != nil {
		return false, ErrAlreadyPassed
	}
	if len(picks) != passCount {
		return false, ErrPassCount
	}
	for i, c := range picks {
		if !c.Valid() || !e.hands[seat].Contains(c) {
			return false, ErrCardNotHeld
		}
		for j := 0; j < i; j++ {
			if picks[j] == c {
				return false, ErrDuplicatePass
			}
		}
	}

	e.passPick[seat] = append([]cards.Card(nil), picks...)
	for s := 0; s < numSeats; s++ {
		if e.passPick[s] == nil {
			return false, nil
		}
	}

	offset := e.PassDirection()
	for s := 0; s < numSeats; s++ {
		for _, c := range e.passPick[s] {
			e.hands[s].Remove(c)
		}
	}
	for s := 0; s < numSeats; s++ {
		to := (s + offset) % numSeats
		for _, c := range e.passPick[s] {
			e.hands[to].Add(c)
		}
	}
	e.beginPlay()
	return true, nil
}

// Received returns the cards the seat received in the just-completed pass.
func (e *Engine) Received(seat int) []cards.Card {
	from := (seat - e.PassDirection() + numSeats) % numSeats
	return e.passPick[from]
}

// TrickResult reports a completed trick.
type TrickResult struct {
	Winner int
	Points int
}

// HandResult reports a scored hand.
type HandResult struct {
	HandTaken [numSeats]int // per-seat points charged for this hand
	Totals    [numSeats]int
	ShotMoon  int // seat that took the whole pool, -1 otherwise
	GameOver  bool
}

// PlayCard plays a card from the seat on turn, enforcing suit-following plus
// the hearts lead restrictions: the first trick must be led with the opening
// card and may not contain point cards unless the hand holds nothing else,
// and later tricks may not be led with a point card until points are broken
// unless the hand holds only point cards.
func (e *Engine) PlayCard(seat int, c cards.Card) (*TrickResult, *HandResult, error) {
	if e.phase != PhasePlaying {
		return nil, nil, ErrNotPlaying
	}
	if seat != e.Turn() {
		return nil, nil, ErrNotYourTurn
	}
	if !c.Valid() || !e.hands[seat].Contains(c) {
		return nil, nil, ErrCardNotHeld
	}

	lead := e.trick.Lead()
	if lead == cards.NoCard {
		if e.firstTrick && c != cards.TwoOfClubs {
			return nil, nil, ErrMustOpenLead
		}
		if !e.firstTrick && cards.IsPointCard(c) && !e.broken && e.holdsNonPoint(seat) {
			return nil, nil, ErrPointsNotBroken
		}
	} else {
		if c.Suit() != lead.Suit() && e.hands[seat].CountSuit(lead.Suit()) > 0 {
			return nil, nil, ErrMustFollow
		}
		if e.firstTrick && cards.IsPointCard(c) && e.holdsNonPoint(seat) {
			return nil, nil, ErrNoFirstTrickPoints
		}
	}

	e.hands[seat].Remove(c)
	if err := e.trick.Play(seat, c); err != nil {
		return nil, nil, fmt.Errorf("hearts: %w", err)
	}
	if cards.IsPointCard(c) {
		e.broken = true
	}
	if !e.trick.Finished() {
		return nil, nil, nil
	}

	winner, err := e.trick.Winner(-1)
	if err != nil {
		return nil, nil, err
	}
	pts, err := e.trick.Points()
	if err != nil {
		return nil, nil, err
	}
	e.handTaken[winner] += pts
	e.leader = winner
	e.trick = cards.NewTrick(numSeats)
	e.firstTrick = false
	tr := &TrickResult{Winner: winner, Points: pts}

	if !e.hands[0].Empty() {
		return tr, nil, nil
	}
	return tr, e.scoreHand(), nil
}

// holdsNonPoint reports whether the seat holds any card without point value.
func (e *Engine) holdsNonPoint(seat int) bool {
	for _, hc := range e.hands[seat] {
		if !cards.IsPointCard(hc) {
			return true
		}
	}
	return false
}

// scoreHand applies shoot-the-moon inversion, accumulates totals, and either
// ends the game at the ceiling or advances the pass cycle and redeals.
func (e *Engine) scoreHand() *HandResult {
	res := &HandResult{ShotMoon: -1}

	for s := 0; s < numSeats; s++ {
		if e.handTaken[s] == handPoints {
			res.ShotMoon = s
			break
		}
	}
	for s := 0; s < numSeats; s++ {
		charged := e.handTaken[s]
		if res.ShotMoon >= 0 {
			if s == res.ShotMoon {
				charged = 0
			} else {
				charged = handPoints
			}
		}
		e.totals[s] += charged
		res.HandTaken[s] = charged
		res.Totals[s] = e.totals[s]
	}

	for s := 0; s < numSeats; s++ {
		if e.totals[s] >= e.opts.PointCeiling {
			res.GameOver = true
		}
	}
	if res.GameOver {
		e.phase = PhaseEnded
		e.winner = 0
		for s := 1; s < numSeats; s++ {
			if e.totals[s] < e.totals[e.winner] {
				e.winner = s
			}
		}
		return res
	}

	e.handNum++
	e.deal()
	return res
}

// Restart resets totals and deals a fresh game after a unanimous rematch
// vote.
func (e *Engine) Restart() error {
	if e.phase != PhaseEnded {
		return ErrNotEnded
	}
	e.totals = [numSeats]int{}
	e.winner = -1
	e.handNum = 0
	e.deal()
	return nil
}
