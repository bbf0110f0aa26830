package models

import "time"

type EventType string

const (
	EventPlayerJoined    EventType = "player-joined"
	EventPlayerLeft      EventType = "player-left"
	EventPlayerReady     EventType = "player-ready"
	EventSettingsUpdated EventType = "settings-updated"
	EventGameStarted     EventType = "game-started"
	EventRoundStarted    EventType = "round-started"
	EventRoundEnded      EventType = "round-ended"
	EventGameEnded       EventType = "game-ended"
	EventTimer           EventType = "timer"
	EventRoomClosed      EventType = "room-closed"

	EventMovieAssigned EventType = "movie-assigned"
	EventMovieChanged  EventType = "movie-changed"

	EventTeamCreated           EventType = "team-created"
	EventTeamJoined            EventType = "team-joined"
	EventTeamLeft              EventType = "team-left"
	EventHeadToHeadStarted     EventType = "head-to-head-started"
	EventHeadToHeadCountdown   EventType = "head-to-head-countdown"
	EventHeadToHeadSubmission  EventType = "head-to-head-submission"
	EventHeadToHeadEnded       EventType = "head-to-head-ended"
	EventMovieSelectionStarted EventType = "movie-selection-started"
	EventMoviesSelected        EventType = "movies-selected"
	EventMovieRoundStarted     EventType = "movie-round-started"
	EventMovieRevealed         EventType = "movie-revealed"
	EventMovieGuessed          EventType = "movie-guessed"
	EventMovieSkipped          EventType = "movie-skipped"
	EventMovieTurnEnded        EventType = "movie-turn-ended"

	EventCardPlayed     EventType = "card-played"
	EventCardsDrawn     EventType = "cards-drawn"
	EventUnoCalled      EventType = "uno-called"
	EventUnoPenalty     EventType = "uno-penalty"
	EventEffectStarted  EventType = "effect-started"
	EventEffectResolved EventType = "effect-resolved"
)

// Event is a discrete notification carrying only its incremental payload.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId"`
	PlayerID  string    `json:"playerId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Standing is one ranked entry of a finished game: a player, or a team in
// the trivia variant.
type Standing struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameResult summarises a finished game for history storage.
type GameResult struct {
	RoomID     string     `json:"roomId"`
	Variant    Variant    `json:"variant"`
	Standings  []Standing `json:"standings"`
	Winners    []string   `json:"winners"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// Rank orders standings by score descending. Equal scores keep their input
// order; policy decides whether ties share the win.
func Rank(standings []Standing, policy TieBreak) ([]Standing, []string) {
	ranked := make([]Standing, len(standings))
	copy(ranked, standings)
	// insertion sort keeps equal elements in input order
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) == 0 {
		return ranked, nil
	}
	winners := []string{ranked[0].ID}
	if policy == TieBreakShared {
		for _, s := range ranked[1:] {
			if s.Score != ranked[0].Score {
				break
			}
			winners = append(winners, s.ID)
		}
	}
	return ranked, winners
}

// Reasons recorded on a GameResult.
const (
	ReasonCompleted  = "completed"
	ReasonPlayerLeft = "player-left"
	ReasonNoContent  = "no-content"
)
