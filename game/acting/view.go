package acting

import "github.com/wfunc/partyserver/models"

// View is the client-safe acting room state.
type View struct {
	RoomID           string                `json:"roomId"`
	Variant          models.Variant        `json:"variant"`
	Phase            models.Phase          `json:"phase"`
	Players          []models.Player       `json:"players"`
	Settings         models.ActingSettings `json:"settings"`
	CurrentRound     int                   `json:"currentRound"`
	CurrentActorID   string                `json:"currentActorId,omitempty"`
	CurrentGuesserID string                `json:"currentGuesserId,omitempty"`
	CurrentMovie     *models.Movie         `json:"currentMovie,omitempty"`
	TimeRemaining    int                   `json:"timeRemaining"`
	History          []RoundRecord         `json:"history,omitempty"`
	Winners          []string              `json:"winners,omitempty"`
}

// Snapshot hides the movie from everyone but the actor until the round is
// over.
func (e *Engine) Snapshot(viewerID string) any {
	v := View{
		RoomID:           e.RoomID,
		Variant:          models.VariantActing,
		Phase:            e.Phase(),
		Players:          e.Players.Snapshot(),
		Settings:         e.settings,
		CurrentRound:     e.round,
		CurrentActorID:   e.actorID,
		CurrentGuesserID: e.guesserID,
		TimeRemaining:    e.timeRemaining,
		History:          append([]RoundRecord(nil), e.history...),
	}
	if e.movie != nil && (viewerID == e.actorID || !e.Machine.Is(models.PhasePlaying)) {
		m := *e.movie
		v.CurrentMovie = &m
	}
	if e.result != nil {
		v.Winners = e.result.Winners
	}
	return v
}
