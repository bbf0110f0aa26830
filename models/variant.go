package models

import "fmt"

// Variant tags which engine owns a room.
type Variant string

const (
	VariantActing Variant = "acting"
	VariantTrivia Variant = "trivia"
	VariantCards  Variant = "cards"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantActing, VariantTrivia, VariantCards:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown game variant %q", ErrValidationFailed, s)
}

// Phase is a room's position in its variant's state machine.
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhasePlaying        Phase = "playing"
	PhaseRoundComplete  Phase = "round-complete"
	PhaseGameOver       Phase = "game-over"
	PhaseHeadToHead     Phase = "head-to-head"
	PhaseMovieSelection Phase = "movie-selection"
	PhaseMovieRound     Phase = "movie-round"
	PhaseRoundEnded     Phase = "round-ended"
)

// TieBreak decides how equal final standings are reported.
type TieBreak string

const (
	// TieBreakRosterOrder names the first tied entry in roster order as the
	// single winner.
	TieBreakRosterOrder TieBreak = "roster-order"
	// TieBreakShared reports every tied entry as a winner.
	TieBreakShared TieBreak = "shared"
)

func ParseTieBreak(s string) (TieBreak, error) {
	switch t := TieBreak(s); t {
	case TieBreakRosterOrder, TieBreakShared:
		return t, nil
	case "":
		return TieBreakRosterOrder, nil
	}
	return "", fmt.Errorf("%w: unknown tie-break policy %q", ErrValidationFailed, s)
}
