package cards

import "github.com/wfunc/partyserver/models"

// View is the client-safe card room state. Hand is always the viewer's
// own; everyone else is reduced to a count.
type View struct {
	RoomID          string              `json:"roomId"`
	Variant         models.Variant      `json:"variant"`
	Phase           models.Phase        `json:"phase"`
	Players         []models.Player     `json:"players"`
	Settings        models.CardSettings `json:"settings"`
	Round           int                 `json:"roundNumber"`
	Hand            []models.Card       `json:"hand"`
	HandCounts      map[string]int      `json:"handCounts"`
	TopCard         *models.Card        `json:"topCard,omitempty"`
	CurrentColor    models.Color        `json:"currentColor,omitempty"`
	CurrentPlayerID string              `json:"currentPlayerId,omitempty"`
	Direction       int                 `json:"direction"`
	DrawPileCount   int                 `json:"drawPileCount"`
	PendingDraws    int                 `json:"pendingDraws"`
	TimeRemaining   int                 `json:"timeRemaining"`
	Shields         []string            `json:"shields,omitempty"`
	CalledUno       []string            `json:"calledUno,omitempty"`
	LastPlay        *LastPlay           `json:"lastPlay,omitempty"`
	Effect          *Effect             `json:"pendingEffect,omitempty"`
	Choices         []models.Card       `json:"choices,omitempty"`
	OpponentHand    []models.Card       `json:"opponentHand,omitempty"`
	RoundWinner     string              `json:"roundWinner,omitempty"`
	History         []RoundRecord       `json:"history,omitempty"`
	Winners         []string            `json:"winners,omitempty"`
}

func (e *Engine) Snapshot(viewerID string) any {
	v := View{
		RoomID:        e.RoomID,
		Variant:       models.VariantCards,
		Phase:         e.Phase(),
		Players:       e.Players.Snapshot(),
		Settings:      e.settings,
		Round:         e.roundNumber,
		Hand:          append([]models.Card{}, e.hands[viewerID]...),
		HandCounts:    make(map[string]int, len(e.order)),
		CurrentColor:  e.color,
		Direction:     e.direction,
		DrawPileCount: len(e.drawPile),
		PendingDraws:  e.drawCount,
		TimeRemaining: e.timeRemaining,
		RoundWinner:   e.roundWinner,
		History:       append([]RoundRecord(nil), e.history...),
	}
	for _, id := range e.order {
		v.HandCounts[id] = len(e.hands[id])
		if e.shields[id] {
			v.Shields = append(v.Shields, id)
		}
		if e.calledUno[id] {
			v.CalledUno = append(v.CalledUno, id)
		}
	}
	if len(e.discard) > 0 {
		top := e.top()
		v.TopCard = &top
	}
	if e.Machine.Is(models.PhasePlaying, models.PhaseRoundEnded) {
		v.CurrentPlayerID = e.currentPlayer()
	}
	if e.lastPlay != nil {
		lp := *e.lastPlay
		v.LastPlay = &lp
	}
	if f := e.pending; f != nil {
		cp := *f
		cp.Choices = nil
		v.Effect = &cp
		if f.PlayerID == viewerID {
			switch f.Type {
			case models.UniqueLuckyDraw:
				v.Choices = append([]models.Card(nil), f.Choices...)
			case models.UniquePeekPick:
				v.OpponentHand = append([]models.Card(nil), e.hands[e.opponent(viewerID)]...)
			}
		}
	}
	if e.result != nil {
		v.Winners = e.result.Winners
	}
	return v
}
