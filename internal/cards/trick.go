package cards

import "errors"

// ErrTrickUnfinished is returned by Winner and Points before every seat has
// played.
var ErrTrickUnfinished = errors.New("cards: trick is not finished")

// Trick is one round of card play: a lead card plus one card per seat. Slots
// hold NoCard until played. Once all slots are filled the trick is finished
// and must not be mutated further.
type Trick struct {
	seats int
	lead  Card
	cards []Card
	plays int
}

// NewTrick returns an empty trick for the given number of seats.
func NewTrick(seats int) *Trick {
	t := &Trick{
		seats: seats,
		lead:  NoCard,
		cards: make([]Card, seats),
	}
	for i := range t.cards {
		t.cards[i] = NoCard
	}
	return t
}

// Lead returns the first card played, or NoCard if nothing has been played.
func (t *Trick) Lead() Card { return t.lead }

// LeadSuit returns the suit of the lead card. Only meaningful once a card has
// been played.
func (t *Trick) LeadSuit() int { return t.lead.Suit() }

// Card returns the card played by seat, or NoCard.
func (t *Trick) Card(seat int) Card { return t.cards[seat] }

// Play records seat's card. The first play becomes the lead. Playing twice
// from the same seat or into a finished trick is an error.
func (t *Trick) Play(seat int, c Card) error {
	if t.Finished() {
		return errors.New("cards: trick already finished")
	}
	if seat < 0 || seat >= t.seats {
		return errors.New("cards: seat out of range")
	}
	if t.cards[seat] != NoCard {
		return errors.New("cards: seat already played this trick")
	}
	if t.lead == NoCard {
		t.lead = c
	}
	t.cards[seat] = c
	t.plays++
	return nil
}

// Finished reports whether every seat has played.
func (t *Trick) Finished() bool { return t.plays == t.seats }

// ContainsSuit reports whether any played card has the given suit.
func (t *Trick) ContainsSuit(suit int) bool {
	for _, c := range t.cards {
		if c != NoCard && c.Suit() == suit {
			return true
		}
	}
	return false
}

// Winner resolves the finished trick. If trump is a valid suit and any trump
// card was played, the highest trump wins; otherwise the highest card of the
// lead suit wins. Pass trump < 0 for no trump.
func (t *Trick) Winner(trump int) (int, error) {
	if !t.Finished() {
		return 0, ErrTrickUnfinished
	}
	winSuit := t.lead.Suit()
	if trump >= 0 && t.ContainsSuit(trump) {
		winSuit = trump
	}
	winner, best := -1, -1
	for seat, c := range t.cards {
		if c.Suit() == winSuit && c.Rank() > best {
			winner, best = seat, c.Rank()
		}
	}
	return winner, nil
}

// Points returns the hearts point value of the finished trick: one per heart,
// thirteen for the queen of spades.
func (t *Trick) Points() (int, error) {
	if !t.Finished() {
		return 0, ErrTrickUnfinished
	}
	pts := 0
	for _, c := range t.cards {
		pts += PointValue(c)
	}
	return pts, nil
}

// PointValue returns the hearts point value of a single card.
func PointValue(c Card) int {
	switch {
	case c == QueenOfSpades:
		return 13
	case c.Suit() == SuitHearts:
		return 1
	default:
		return 0
	}
}

// IsPointCard reports whether c carries hearts points.
func IsPointCard(c Card) bool { return PointValue(c) > 0 }
