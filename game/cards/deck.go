package cards

import (
	"github.com/google/uuid"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/random"
)

// HandSize is the number of cards dealt to each player.
const HandSize = 7

const (
	standardDeckSize = 108
	uniqueCopies     = 2
)

// DeckSize is the total card count for a deck with or without unique cards.
func DeckSize(includeUnique bool) int {
	if includeUnique {
		return standardDeckSize + uniqueCopies*len(models.UniqueTypes)
	}
	return standardDeckSize
}

func newCard(t models.CardType, color models.Color) models.Card {
	return models.Card{ID: uuid.NewString(), Type: t, Color: color}
}

func numberCard(color models.Color, value int) models.Card {
	c := newCard(models.CardNumber, color)
	c.Value = &value
	return c
}

// NewDeck builds an unshuffled deck: per color one 0 and two each of 1-9,
// two of each action, then four of each wild and optionally two of each
// unique card.
func NewDeck(includeUnique bool) []models.Card {
	deck := make([]models.Card, 0, DeckSize(includeUnique))
	for _, color := range models.Colors {
		deck = append(deck, numberCard(color, 0))
		for v := 1; v <= 9; v++ {
			deck = append(deck, numberCard(color, v), numberCard(color, v))
		}
	}
	for _, color := range models.Colors {
		for _, t := range []models.CardType{models.CardSkip, models.CardReverse, models.CardDrawTwo} {
			deck = append(deck, newCard(t, color), newCard(t, color))
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, newCard(models.CardWild, ""), newCard(models.CardWildDrawFour, ""))
	}
	if includeUnique {
		for _, u := range models.UniqueTypes {
			for i := 0; i < uniqueCopies; i++ {
				c := newCard(models.CardUnique, "")
				c.UniqueType = u
				deck = append(deck, c)
			}
		}
	}
	return deck
}

// Deal shuffles deck and deals HandSize cards to each of players hands in
// turn. The start card is the first number card left after the deal, or
// the first remaining card when there is none. The returned draw pile has
// its top at the end.
func Deal(rnd random.Random, deck []models.Card, players int) (hands [][]models.Card, draw []models.Card, start models.Card) {
	rnd.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	hands = make([][]models.Card, players)
	next := 0
	for n := 0; n < HandSize; n++ {
		for p := 0; p < players; p++ {
			hands[p] = append(hands[p], deck[next])
			next++
		}
	}

	startAt := next
	for i := next; i < len(deck); i++ {
		if deck[i].Type == models.CardNumber {
			startAt = i
			break
		}
	}
	start = deck[startAt]

	rest := make([]models.Card, 0, len(deck)-next-1)
	rest = append(rest, deck[next:startAt]...)
	rest = append(rest, deck[startAt+1:]...)
	// the pile is drawn from the end; keep the shuffled order top-first
	for i, j := 0, len(rest)-1; i < j; i, j = i+1, j-1 {
		rest[i], rest[j] = rest[j], rest[i]
	}
	return hands, rest, start
}

// CanPlay reports whether card may go on top. Wild and unique cards always
// can; unique legality is checked when the effect is applied.
func CanPlay(card, top models.Card, color models.Color) bool {
	switch card.Type {
	case models.CardWild, models.CardWildDrawFour, models.CardUnique:
		return true
	}
	if card.Color != "" && (card.Color == color || card.Color == top.Color) {
		return true
	}
	if card.Type == models.CardNumber {
		a, _ := card.Number()
		b, ok := top.Number()
		return ok && a == b
	}
	return card.Type == top.Type
}
