package hearts

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzone-dev/zoneserver/internal/cards"
)

func newTestEngine(seed int64) *Engine {
	return NewEngine(DefaultOptions(), rand.New(rand.NewSource(seed)))
}

func TestDealEntersPassingPhase(t *testing.T) {
	e := newTestEngine(1)
	assert.Equal(t, PhasePassing, e.Phase())
	assert.Equal(t, PassLeft, e.PassDirection())
}

func TestDealPartitionAcrossSeats(t *testing.T) {
	e := newTestEngine(2)
	seen := make(map[cards.Card]bool)
	for s := 0; s < numSeats; s++ {
		h := e.Hand(s)
		require.Len(t, h, cards.DeckSize/numSeats)
		for _, c := range h {
			assert.False(t, seen[c], "duplicate card %v", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, cards.DeckSize)
}

func TestPassValidation(t *testing.T) {
	e := newTestEngine(1)
	h := e.Hand(0)

	_, err := e.PassCards(0, h[:2])
	assert.ErrorIs(t, err, ErrPassCount)

	notHeld := e.Hand(1)[0]
	_, err = e.PassCards(0, []cards.Card{h[0], h[1], notHeld})
	assert.ErrorIs(t, err, ErrCardNotHeld)

	_, err = e.PassCards(0, []cards.Card{h[0], h[1], h[0]})
	assert.ErrorIs(t, err, ErrDuplicatePass)

	_, err = e.PassCards(0, []cards.Card{h[0], h[1], cards.NoCard})
	assert.ErrorIs(t, err, ErrCardNotHeld)

	done, err := e.PassCards(0, h[:3])
	require.NoError(t, err)
	assert.False(t, done)

	_, err = e.PassCards(0, h[3:6])
	assert.ErrorIs(t, err, ErrAlreadyPassed)
}

// passAll has each seat pass its first three cards and returns once play has
// begun.
func passAll(t *testing.T, e *Engine) {
	t.Helper()
	for s := 0; s < numSeats; s++ {
		done, err := e.PassCards(s, e.Hand(s)[:3])
		require.NoError(t, err)
		assert.Equal(t, s == numSeats-1, done)
	}
	require.Equal(t, PhasePlaying, e.Phase())
}

func TestPassTransferPreservesPartition(t *testing.T) {
	e := newTestEngine(3)
	picks := make(map[int][]cards.Card)
	for s := 0; s < numSeats; s++ {
		picks[s] = append([]cards.Card(nil), e.Hand(s)[:3]...)
	}
	passAll(t, e)

	seen := make(map[cards.Card]bool)
	for s := 0; s < numSeats; s++ {
		h := e.Hand(s)
		require.Len(t, h, cards.DeckSize/numSeats)
		for _, c := range h {
			assert.False(t, seen[c], "duplicate card %v", c)
			seen[c] = true
		}
		// Left neighbor received this hand's picks.
		to := (s + PassLeft) % numSeats
		for _, c := range picks[s] {
			assert.True(t, e.Hand(to).Contains(c), "pass did not reach seat %d", to)
		}
		assert.Equal(t, picks[s], e.Received(to))
	}
	assert.Len(t, seen, cards.DeckSize)
}

func TestPassOnlyDuringPassingPhase(t *testing.T) {
	e := newTestEngine(1)
	passAll(t, e)
	_, err := e.PassCards(0, e.Hand(0)[:3])
	assert.ErrorIs(t, err, ErrNotPassing)
}

func TestOpeningLeadRules(t *testing.T) {
	e := newTestEngine(4)
	passAll(t, e)

	leader := e.Turn()
	require.True(t, e.Hand(leader).Contains(cards.TwoOfClubs), "opening card holder leads")

	var other cards.Card = cards.NoCard
	for _, c := range e.Hand(leader) {
		if c != cards.TwoOfClubs {
			other = c
			break
		}
	}
	require.NotEqual(t, cards.NoCard, other)
	_, _, err := e.PlayCard(leader, other)
	assert.ErrorIs(t, err, ErrMustOpenLead)

	_, _, err = e.PlayCard(leader, cards.TwoOfClubs)
	require.NoError(t, err)
}

// legalCard picks a legal play for the seat: follow suit, honor the opening
// trick and points-broken restrictions, otherwise the first card that fits.
func legalCard(e *Engine, seat int) cards.Card {
	h := e.Hand(seat)
	lead := e.trick.Lead()

	if lead == cards.NoCard {
		if e.firstTrick {
			return cards.TwoOfClubs
		}
		if !e.broken {
			for _, c := range h {
				if !cards.IsPointCard(c) {
					return c
				}
			}
		}
		return h[0]
	}

	var fallback cards.Card = cards.NoCard
	for _, c := range h {
		if c.Suit() == lead.Suit() {
			return c
		}
		if fallback == cards.NoCard && !(e.firstTrick && cards.IsPointCard(c)) {
			fallback = c
		}
	}
	if fallback != cards.NoCard {
		return fallback
	}
	return h[0]
}

// TestFullHandConservation plays hands to completion with legal plays and
// checks the 26-point pool is fully charged each hand.
func TestFullHandConservation(t *testing.T) {
	e := newTestEngine(5)
	if e.Phase() == PhasePassing {
		passAll(t, e)
	}

	var before [numSeats]int
	for s := 0; s < numSeats; s++ {
		before[s] = e.Total(s)
	}

	tricks := 0
	for e.Phase() == PhasePlaying && tricks < cards.DeckSize/numSeats {
		tr, hand, err := e.PlayCard(e.Turn(), legalCard(e, e.Turn()))
		require.NoError(t, err)
		if tr != nil {
			tricks++
		}
		if hand != nil {
			charged := 0
			for s := 0; s < numSeats; s++ {
				charged += hand.HandTaken[s]
				assert.Equal(t, hand.Totals[s], e.Total(s))
			}
			if hand.ShotMoon >= 0 {
				assert.Equal(t, 3*handPoints, charged)
			} else {
				assert.Equal(t, handPoints, charged)
			}
			return
		}
	}
	t.Fatal("hand never completed")
}

// TestShootTheMoonInversion drives the scoring path directly: the shooter is
// charged zero and everyone else the full pool.
func TestShootTheMoonInversion(t *testing.T) {
	e := newTestEngine(1)
	e.handTaken = [numSeats]int{0, 0, handPoints, 0}
	res := e.scoreHand()

	assert.Equal(t, 2, res.ShotMoon)
	assert.Equal(t, [numSeats]int{handPoints, handPoints, 0, handPoints}, res.HandTaken)
	assert.Equal(t, handPoints, e.Total(0))
	assert.Equal(t, handPoints, e.Total(1))
	assert.Zero(t, e.Total(2))
	assert.Equal(t, handPoints, e.Total(3))
	assert.False(t, res.GameOver)
}

func TestMixedHandDoesNotInvert(t *testing.T) {
	e := newTestEngine(1)
	e.handTaken = [numSeats]int{5, 13, 8, 0}
	res := e.scoreHand()

	assert.Equal(t, -1, res.ShotMoon)
	assert.Equal(t, [numSeats]int{5, 13, 8, 0}, res.HandTaken)
}

func TestCeilingEndsGameWithLowestTotalWinning(t *testing.T) {
	e := newTestEngine(1)
	e.totals = [numSeats]int{90, 40, 60, 20}
	e.handTaken = [numSeats]int{13, 5, 8, 0}
	res := e.scoreHand()

	require.True(t, res.GameOver)
	assert.Equal(t, PhaseEnded, e.Phase())
	assert.Equal(t, 3, e.Winner())
}

func TestPassCycleAdvancesEachHand(t *testing.T) {
	e := newTestEngine(1)
	assert.Equal(t, PassLeft, e.PassDirection())
	e.handNum = 1
	assert.Equal(t, PassRight, e.PassDirection())
	e.handNum = 2
	assert.Equal(t, PassAcross, e.PassDirection())
	e.handNum = 3
	assert.Equal(t, PassNone, e.PassDirection())
	e.handNum = 4
	assert.Equal(t, PassLeft, e.PassDirection())
}

func TestNoPassHandSkipsPassing(t *testing.T) {
	e := newTestEngine(1)
	e.handNum = 3
	e.deal()
	assert.Equal(t, PhasePlaying, e.Phase())
	assert.True(t, e.Hand(e.Turn()).Contains(cards.TwoOfClubs))
}

func TestRestartOnlyWhenEnded(t *testing.T) {
	e := newTestEngine(1)
	assert.ErrorIs(t, e.Restart(), ErrNotEnded)

	e.phase = PhaseEnded
	e.totals = [numSeats]int{104, 30, 50, 70}
	e.winner = 1
	require.NoError(t, e.Restart())
	assert.Equal(t, -1, e.Winner())
	assert.Zero(t, e.Total(0))
	assert.Equal(t, PhasePassing, e.Phase())
}
