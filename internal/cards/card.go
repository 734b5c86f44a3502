// Package cards implements the playing-card primitives shared by the
// server-simulated card games: integer-encoded cards, deck construction and
// dealing, hands, and trick resolution.
package cards

import (
	"fmt"
	"math/rand"
)

// Suit constants, Card / RanksPerSuit.
const (
	SuitClubs    = 0
	SuitDiamonds = 1
	SuitHearts   = 2
	SuitSpades   = 3

	NumSuits = 4
)

// Rank constants, Card % RanksPerSuit. Two is lowest, Ace highest.
const (
	RankTwo = iota
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce

	RanksPerSuit = 13
)

// DeckSize is the number of cards in a full deck.
const DeckSize = NumSuits * RanksPerSuit

// Card is an integer encoding of suit and rank: suit = value / RanksPerSuit,
// rank = value % RanksPerSuit.
type Card int

// NoCard represents the absence of a card (an empty trick slot).
const NoCard Card = -1

// NewCard constructs a Card from suit and rank.
func NewCard(suit, rank int) Card {
	return Card(suit*RanksPerSuit + rank)
}

// Suit returns the card's suit.
func (c Card) Suit() int { return int(c) / RanksPerSuit }

// Rank returns the card's rank.
func (c Card) Rank() int { return int(c) % RanksPerSuit }

// Valid reports whether c encodes a real card: suit < 4 and rank within the
// per-suit count.
func (c Card) Valid() bool { return c >= 0 && c < DeckSize }

var suitNames = [NumSuits]string{"C", "D", "H", "S"}
var rankNames = [RanksPerSuit]string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}

// String renders the card as rank+suit, e.g. "QS" for the queen of spades.
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return rankNames[c.Rank()] + suitNames[c.Suit()]
}

// TwoOfClubs is the opening card in hearts. It is also card 0.
const TwoOfClubs = Card(SuitClubs*RanksPerSuit + RankTwo)

// QueenOfSpades is the 13-point penalty card in hearts.
const QueenOfSpades = Card(SuitSpades*RanksPerSuit + RankQueen)

// Deck is an ordered pile of cards.
type Deck []Card

// NewDeck returns the full 52-card deck in suit/rank order.
func NewDeck() Deck {
	d := make(Deck, 0, DeckSize)
	for suit := 0; suit < NumSuits; suit++ {
		for rank := 0; rank < RanksPerSuit; rank++ {
			d = append(d, NewCard(suit, rank))
		}
	}
	return d
}

// Shuffle permutes the deck uniformly using the supplied random source.
func (d Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})
}

// Deal partitions the deck into n hands of equal size. The deck size must be
// divisible by n; every card lands in exactly one hand.
func (d Deck) Deal(n int) ([]Hand, error) {
	if n <= 0 || len(d)%n != 0 {
		return nil, fmt.Errorf("cards: cannot deal %d cards to %d hands", len(d), n)
	}
	per := len(d) / n
	hands := make([]Hand, n)
	for p := 0; p < n; p++ {
		hands[p] = make(Hand, 0, per)
	}
	for i, c := range d {
		hands[i%n] = append(hands[i%n], c)
	}
	return hands, nil
}

// Hand is an unordered collection of cards. A card appears at most once.
type Hand []Card

// Contains reports whether the hand holds c.
func (h Hand) Contains(c Card) bool {
	for _, hc := range h {
		if hc == c {
			return true
		}
	}
	return false
}

// Remove deletes c from the hand. Returns false if the card is not held.
func (h *Hand) Remove(c Card) bool {
	for i, hc := range *h {
		if hc == c {
			*h = append((*h)[:i], (*h)[i+1:]...)
			return true
		}
	}
	return false
}

// Add appends c to the hand.
func (h *Hand) Add(c Card) { *h = append(*h, c) }

// CountSuit returns the number of cards of the given suit in the hand.
func (h Hand) CountSuit(suit int) int {
	n := 0
	for _, c := range h {
		if c.Suit() == suit {
			n++
		}
	}
	return n
}

// Empty reports whether the hand has no cards left.
func (h Hand) Empty() bool { return len(h) == 0 }
