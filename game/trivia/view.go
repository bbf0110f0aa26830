package trivia

import "github.com/wfunc/partyserver/models"

type View struct {
	RoomID     string                `json:"roomId"`
	Variant    models.Variant        `json:"variant"`
	Phase      models.Phase          `json:"phase"`
	Players    []models.Player       `json:"players"`
	Teams      []models.Team         `json:"teams"`
	Settings   models.TriviaSettings `json:"settings"`
	HeadToHead *HeadToHead           `json:"headToHead,omitempty"`
	Selection  *SelectionView        `json:"selection,omitempty"`
	Round      *RoundView            `json:"round,omitempty"`
	History    []RoundRecord         `json:"history,omitempty"`
	Winners    []string              `json:"winners,omitempty"`
}

type SelectionView struct {
	WinnerID  string          `json:"winnerId"`
	LoserID   string          `json:"loserId"`
	Available []models.Movie  `json:"available,omitempty"`
	Submitted map[string]bool `json:"submitted"`
	// Mine is the viewer's own assignment.
	Mine map[models.Field]models.Movie `json:"mine,omitempty"`
}

type CardView struct {
	MovieID    string       `json:"movieId"`
	Field      models.Field `json:"field"`
	OwnerID    string       `json:"ownerId"`
	Title      string       `json:"title,omitempty"`
	Genre      string       `json:"genre,omitempty"`
	Revealed   bool         `json:"revealed"`
	RevealedBy string       `json:"revealedBy,omitempty"`
	Attempted  bool         `json:"attempted"`
	Guessed    bool         `json:"guessed"`
}

type RoundView struct {
	Order              []string     `json:"playersOrder"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	CurrentRoundPlayer string       `json:"currentRoundPlayer,omitempty"`
	TimeRemaining      int          `json:"timeRemaining"`
	TurnScore          int          `json:"currentPlayerScore"`
	TimerStarted       bool         `json:"timerStarted"`
	Cards              []CardView   `json:"cards"`
	Turns              []TurnRecord `json:"turns,omitempty"`
}

// Snapshot shows a movie title only to its owner and to whoever revealed it,
// and to everyone once it has been guessed.
func (e *Engine) Snapshot(viewerID string) any {
	v := View{
		RoomID:   e.RoomID,
		Variant:  models.VariantTrivia,
		Phase:    e.Phase(),
		Players:  e.Players.Snapshot(),
		Teams:    make([]models.Team, 0, len(e.teams)),
		Settings: e.settings,
		History:  append([]RoundRecord(nil), e.history...),
	}
	for _, t := range e.teams {
		c := *t
		c.Members = append([]string(nil), t.Members...)
		c.Genres = append([]string(nil), t.Genres...)
		v.Teams = append(v.Teams, c)
	}
	if e.duel != nil {
		d := *e.duel
		d.Submissions = append([]Submission(nil), e.duel.Submissions...)
		v.HeadToHead = &d
	}
	if e.selection != nil {
		v.Selection = e.selectionView(viewerID)
	}
	if e.round != nil {
		v.Round = e.roundView(viewerID)
	}
	if e.result != nil {
		v.Winners = e.result.Winners
	}
	return v
}

func (e *Engine) selectionView(viewerID string) *SelectionView {
	s := e.selection
	sv := &SelectionView{
		WinnerID:  s.WinnerID,
		LoserID:   s.LoserID,
		Submitted: make(map[string]bool, 2),
	}
	for _, id := range []string{s.WinnerID, s.LoserID} {
		_, sv.Submitted[id] = s.Assignments[id]
	}
	if e.Machine.Is(models.PhaseMovieSelection) {
		sv.Available = s.Available(viewerID)
	}
	if a, ok := s.Assignments[viewerID]; ok {
		sv.Mine = make(map[models.Field]models.Movie, len(a))
		for f, m := range a {
			sv.Mine[f] = m
		}
	}
	return sv
}

func (e *Engine) roundView(viewerID string) *RoundView {
	r := e.round
	rv := &RoundView{
		Order:              append([]string(nil), r.Order...),
		CurrentPlayerIndex: r.Index,
		CurrentRoundPlayer: r.current(),
		TimeRemaining:      r.TimeRemaining,
		TurnScore:          r.TurnScore,
		TimerStarted:       r.TimerStarted,
		Turns:              append([]TurnRecord(nil), r.Turns...),
	}
	for _, owner := range r.Order {
		a := e.selection.Assignments[owner]
		for _, f := range models.Fields {
			m, ok := a[f]
			if !ok {
				continue
			}
			cv := CardView{MovieID: m.ID, Field: f, OwnerID: owner}
			rev, revealed := r.Reveals[m.ID]
			if revealed {
				cv.Revealed = true
				cv.RevealedBy = rev.RevealedBy
				cv.Attempted = rev.Attempted
				cv.Guessed = rev.Guessed
			}
			if viewerID == owner || (revealed && (rev.Guessed || rev.RevealedBy == viewerID)) {
				cv.Title = m.Title
				cv.Genre = m.Genre
			}
			rv.Cards = append(rv.Cards, cv)
		}
	}
	return rv
}
