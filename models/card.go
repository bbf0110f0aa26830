package models

type CardType string

const (
	CardNumber       CardType = "number"
	CardSkip         CardType = "skip"
	CardReverse      CardType = "reverse"
	CardDrawTwo      CardType = "draw-two"
	CardWild         CardType = "wild"
	CardWildDrawFour CardType = "wild-draw-four"
	CardUnique       CardType = "unique"
)

type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
)

var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

func (c Color) Valid() bool {
	for _, k := range Colors {
		if c == k {
			return true
		}
	}
	return false
}

type UniqueType string

const (
	UniqueDuel       UniqueType = "duel"
	UniqueMirror     UniqueType = "mirror"
	UniqueSwapHands  UniqueType = "swap-hands"
	UniquePeekPick   UniqueType = "peek-pick"
	UniqueDoubleDown UniqueType = "double-down"
	UniqueRevenge    UniqueType = "revenge"
	UniqueShield     UniqueType = "shield"
	UniqueTimeBomb   UniqueType = "time-bomb"
	UniqueLuckyDraw  UniqueType = "lucky-draw"
	UniqueFinalStand UniqueType = "final-stand"
)

var UniqueTypes = []UniqueType{
	UniqueDuel, UniqueMirror, UniqueSwapHands, UniquePeekPick, UniqueDoubleDown,
	UniqueRevenge, UniqueShield, UniqueTimeBomb, UniqueLuckyDraw, UniqueFinalStand,
}

// Card is one physical card. Color is empty for wild and unique cards;
// Value is nil for anything but number cards.
type Card struct {
	ID         string     `json:"id"`
	Type       CardType   `json:"type"`
	Color      Color      `json:"color,omitempty"`
	Value      *int       `json:"value,omitempty"`
	UniqueType UniqueType `json:"uniqueType,omitempty"`
}

// Number reports the face value of a number card.
func (c Card) Number() (int, bool) {
	if c.Type != CardNumber || c.Value == nil {
		return 0, false
	}
	return *c.Value, true
}

// IsAction reports whether the card is a standard action or wild card, the
// cards revenge can replay.
func (c Card) IsAction() bool {
	switch c.Type {
	case CardSkip, CardReverse, CardDrawTwo, CardWild, CardWildDrawFour:
		return true
	}
	return false
}

// Points is the card's value when left in a losing hand.
func (c Card) Points() int {
	switch c.Type {
	case CardNumber:
		v, _ := c.Number()
		return v
	case CardSkip, CardReverse, CardDrawTwo:
		return 20
	case CardWild, CardWildDrawFour:
		return 50
	case CardUnique:
		return 30
	}
	return 0
}
