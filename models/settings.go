package models

import "fmt"

// ActingSettings configure the two-player acting game.
type ActingSettings struct {
	Rounds          int      `json:"rounds"`
	TimeLimit       int      `json:"timeLimit"` // seconds, 0 = unlimited
	MovieCategories []string `json:"movieCategories"`
}

func (s ActingSettings) Validate() error {
	if s.Rounds < 1 || s.Rounds > 20 {
		return fmt.Errorf("%w: rounds must be between 1 and 20", ErrValidationFailed)
	}
	if s.TimeLimit < 0 || s.TimeLimit > 3600 {
		return fmt.Errorf("%w: timeLimit must be between 0 and 3600", ErrValidationFailed)
	}
	if len(s.MovieCategories) == 0 {
		return fmt.Errorf("%w: at least one movie category is required", ErrValidationFailed)
	}
	return nil
}

// TriviaSettings configure the team trivia game. Times are seconds.
type TriviaSettings struct {
	MaxPlayersPerTeam int      `json:"maxPlayersPerTeam"`
	HeadToHeadTime    int      `json:"headToHeadTime"`
	MovieRoundTime    int      `json:"movieRoundTime"`
	MovieCategories   []string `json:"movieCategories"`
}

func (s TriviaSettings) Validate() error {
	if s.MaxPlayersPerTeam < 1 || s.MaxPlayersPerTeam > 20 {
		return fmt.Errorf("%w: maxPlayersPerTeam must be between 1 and 20", ErrValidationFailed)
	}
	if s.HeadToHeadTime < 5 || s.HeadToHeadTime > 600 {
		return fmt.Errorf("%w: headToHeadTime must be between 5 and 600", ErrValidationFailed)
	}
	if s.MovieRoundTime < 5 || s.MovieRoundTime > 600 {
		return fmt.Errorf("%w: movieRoundTime must be between 5 and 600", ErrValidationFailed)
	}
	if len(s.MovieCategories) == 0 {
		return fmt.Errorf("%w: at least one movie category is required", ErrValidationFailed)
	}
	return nil
}

// CardSettings configure the two-player card game.
type CardSettings struct {
	TimePerTurn        int  `json:"timePerTurn"` // seconds, 0 = unlimited
	IncludeUniqueCards bool `json:"includeUniqueCards"`
	TargetScore        int  `json:"targetScore"`
}

func (s CardSettings) Validate() error {
	if s.TimePerTurn < 0 || s.TimePerTurn > 300 {
		return fmt.Errorf("%w: timePerTurn must be between 0 and 300", ErrValidationFailed)
	}
	if s.TargetScore < 1 {
		return fmt.Errorf("%w: targetScore must be positive", ErrValidationFailed)
	}
	return nil
}

// DefaultSettings holds the per-variant settings new rooms start from.
type DefaultSettings struct {
	Acting ActingSettings
	Trivia TriviaSettings
	Cards  CardSettings
}

func NewDefaultSettings() DefaultSettings {
	return DefaultSettings{
		Acting: ActingSettings{Rounds: 5, TimeLimit: 300, MovieCategories: []string{"hollywood", "bollywood"}},
		Trivia: TriviaSettings{MaxPlayersPerTeam: 6, HeadToHeadTime: 45, MovieRoundTime: 60, MovieCategories: []string{"bollywood"}},
		Cards:  CardSettings{TimePerTurn: 30, IncludeUniqueCards: true, TargetScore: 500},
	}
}
