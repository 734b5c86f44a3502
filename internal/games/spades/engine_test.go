package spades

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzone-dev/zoneserver/internal/cards"
)

// TestScoreTeamMixedNilHand pins a full worked example: bids
// [nil, double nil, 3, 5] with tricks [0, 2, 6, 5]. Seats 0&2 form one team,
// 1&3 the other.
func TestScoreTeamMixedNilHand(t *testing.T) {
	// Team of seats 0 and 2: made nil (+100), contract 3 made with 6
	// non-nil tricks (+30, 3 bags), overtricks 6-3 (+3).
	delta, bags := ScoreTeam([2]int{BidNil, 3}, [2]int{0, 6}, 0)
	assert.Equal(t, 133, delta)
	assert.Equal(t, 3, bags)

	// Team of seats 1 and 3: failed double nil (-200, 2 bags), contract 5
	// made exactly (+50), overtricks 7-5 (+2).
	delta, bags = ScoreTeam([2]int{BidDoubleNil, 5}, [2]int{2, 5}, 0)
	assert.Equal(t, -148, delta)
	assert.Equal(t, 2, bags)
}

func TestScoreTeamSetContract(t *testing.T) {
	delta, bags := ScoreTeam([2]int{4, 3}, [2]int{3, 2}, 0)
	assert.Equal(t, -70, delta)
	assert.Equal(t, 0, bags)
}

// TestScoreTeamBagBoundary carries 8 bags into a hand that adds 3 more,
// crossing the 10-bag penalty and wrapping the remainder.
func TestScoreTeamBagBoundary(t *testing.T) {
	delta, bags := ScoreTeam([2]int{3, 2}, [2]int{5, 3}, 8)
	// Contract 5 made with 3 excess (+50, bags 8+3=11), overtricks 8-5
	// (+3), ten bags (-100).
	assert.Equal(t, -47, delta)
	assert.Equal(t, 1, bags)
}

func TestScoreTeamDoubleBagPenalty(t *testing.T) {
	delta, bags := ScoreTeam([2]int{1, 1}, [2]int{7, 6}, 9)
	// Contract 2 made with 11 excess (+20, bags 9+11=20), overtricks 13-2
	// (+11), twenty bags (-200).
	assert.Equal(t, -169, delta)
	assert.Equal(t, 0, bags)
}

func newTestEngine(seed int64) *Engine {
	return NewEngine(DefaultOptions(), rand.New(rand.NewSource(seed)))
}

func TestDealPartitionAcrossSeats(t *testing.T) {
	e := newTestEngine(3)
	seen := make(map[cards.Card]bool)
	for s := 0; s < numSeats; s++ {
		h := e.Hand(s)
		require.Len(t, h, cardsPerHand)
		for _, c := range h {
			assert.False(t, seen[c], "duplicate card %v", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, cards.DeckSize)
}

func TestBiddingTurnOrder(t *testing.T) {
	e := newTestEngine(1)
	require.Equal(t, PhaseBidding, e.Phase())
	first := e.Turn()
	assert.Equal(t, 1, first, "bidding starts left of dealer 0")

	_, err := e.SubmitBid(e.nextSeat(first), 3)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = e.SubmitBid(first, 14)
	assert.ErrorIs(t, err, ErrBidRange)
	_, err = e.SubmitBid(first, -1)
	assert.ErrorIs(t, err, ErrBidRange)

	revealed, err := e.SubmitBid(first, 3)
	require.NoError(t, err)
	assert.False(t, revealed)

	_, err = e.SubmitBid(first, 4)
	assert.ErrorIs(t, err, ErrAlreadyBid)
}

func TestAllBidsTransitionToPlaying(t *testing.T) {
	e := newTestEngine(1)
	seat := e.Turn()
	for i := 0; i < numSeats; i++ {
		_, err := e.SubmitBid(seat, 3)
		require.NoError(t, err)
		seat = e.Turn()
	}
	assert.Equal(t, PhasePlaying, e.Phase())
	assert.Equal(t, 1, e.Turn(), "left of dealer leads")
}

func TestDoubleNilOnlyFromInitialState(t *testing.T) {
	e := newTestEngine(2)
	first := e.Turn()
	_, err := e.SubmitBid(first, 3)
	require.NoError(t, err)

	_, err = e.SubmitBid(e.Turn(), BidDoubleNil)
	assert.ErrorIs(t, err, ErrLateDblNil, "a recorded bid forecloses double nil")
}

func TestDoubleNilForfeitedByViewingHand(t *testing.T) {
	e := newTestEngine(2)
	_, err := e.ViewHand(2)
	require.NoError(t, err)

	_, err = e.SubmitBid(2, BidDoubleNil)
	assert.ErrorIs(t, err, ErrLateDblNil)

	// A seat that has not viewed may still bid it, out of turn order.
	revealed, err := e.SubmitBid(3, BidDoubleNil)
	require.NoError(t, err)
	assert.True(t, revealed, "blind bid reveals the table's hands")
}

func TestViewHandOnlyDuringBidding(t *testing.T) {
	e := newTestEngine(1)
	bidAll(t, e)
	_, err := e.ViewHand(0)
	assert.ErrorIs(t, err, ErrNotBidding)
}

// bidAll submits a bid of 3 for every seat in turn order.
func bidAll(t *testing.T, e *Engine) {
	t.Helper()
	for i := 0; i < numSeats; i++ {
		_, err := e.SubmitBid(e.Turn(), 3)
		require.NoError(t, err)
	}
	require.Equal(t, PhasePlaying, e.Phase())
}

// legalCard picks a card the seat may legally play: lead suit if held,
// otherwise the first card in hand.
func legalCard(e *Engine, seat int) cards.Card {
	h := e.Hand(seat)
	if lead := e.trick.Lead(); lead != cards.NoCard {
		for _, c := range h {
			if c.Suit() == lead.Suit() {
				return c
			}
		}
	}
	return h[0]
}

func TestPlayCardGuards(t *testing.T) {
	e := newTestEngine(4)

	_, _, err := e.PlayCard(0, cards.TwoOfClubs)
	assert.ErrorIs(t, err, ErrNotPlaying)

	bidAll(t, e)
	onTurn := e.Turn()
	off := e.nextSeat(onTurn)
	_, _, err = e.PlayCard(off, legalCard(e, off))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	notHeld := e.Hand(off)[0]
	_, _, err = e.PlayCard(onTurn, notHeld)
	assert.ErrorIs(t, err, ErrCardNotHeld)
	_, _, err = e.PlayCard(onTurn, cards.NoCard)
	assert.ErrorIs(t, err, ErrCardNotHeld)
}

// TestMustFollowSuit walks deals until a seat both holds the lead suit and
// another suit, then asserts the off-suit play is rejected.
func TestMustFollowSuit(t *testing.T) {
	e := newTestEngine(5)
	bidAll(t, e)

	leader := e.Turn()
	leadCard := e.Hand(leader)[0]
	_, _, err := e.PlayCard(leader, leadCard)
	require.NoError(t, err)

	next := e.Turn()
	h := e.Hand(next)
	var offSuit cards.Card = cards.NoCard
	if h.CountSuit(leadCard.Suit()) > 0 {
		for _, c := range h {
			if c.Suit() != leadCard.Suit() {
				offSuit = c
				break
			}
		}
	}
	if offSuit == cards.NoCard {
		t.Skip("seat is void or single-suited under this seed")
	}
	_, _, err = e.PlayCard(next, offSuit)
	assert.ErrorIs(t, err, ErrMustFollow)
}

// TestFullGamePlaythrough drives whole hands with legal plays until the game
// ends, checking per-hand conservation: 13 tricks per hand, scores evolving,
// and the engine eventually reaching PhaseEnded with a winner.
func TestFullGamePlaythrough(t *testing.T) {
	e := newTestEngine(6)

	for hand := 0; hand < 100; hand++ {
		bidAll(t, e)
		tricks := 0
		for e.Phase() == PhasePlaying {
			tr, _, err := e.PlayCard(e.Turn(), legalCard(e, e.Turn()))
			require.NoError(t, err)
			if tr != nil {
				tricks++
			}
			if tricks == cardsPerHand {
				break
			}
		}
		require.Equal(t, cardsPerHand, tricks)

		taken := 0
		for s := 0; s < numSeats; s++ {
			taken += e.TricksTaken(s)
		}
		if e.Phase() == PhaseEnded {
			w := e.Winner()
			require.GreaterOrEqual(t, w, 0)
			other := 1 - w
			assert.GreaterOrEqual(t, e.TeamScore(w), e.TeamScore(other))
			return
		}
		// Redealt: per-hand counters reset, partition holds again.
		assert.Zero(t, taken)
		require.Equal(t, PhaseBidding, e.Phase())
	}
	t.Fatal("game never ended")
}

func TestRestartOnlyWhenEnded(t *testing.T) {
	e := newTestEngine(1)
	assert.ErrorIs(t, e.Restart(), ErrNotEnded)

	e.phase = PhaseEnded
	e.teamScore = [numTeams]int{520, 100}
	e.winner = 0
	require.NoError(t, e.Restart())
	assert.Equal(t, PhaseBidding, e.Phase())
	assert.Zero(t, e.TeamScore(0))
	assert.Zero(t, e.TeamScore(1))
	assert.Equal(t, -1, e.Winner())
}
