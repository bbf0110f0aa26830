package models

import (
	"time"

	"gorm.io/gorm"
)

// GormGameRecord is the game_records row written when a game finishes.
type GormGameRecord struct {
	gorm.Model
	RoomID     string     `gorm:"index;not null"`
	Variant    string     `gorm:"index;not null"`
	Standings  []Standing `gorm:"serializer:json;type:jsonb;not null"`
	Winners    []string   `gorm:"serializer:json;type:jsonb;not null"`
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
	Duration   int       // seconds
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

// GameRecord is a stored GameResult.
type GameRecord struct {
	ID uint `json:"id"`
	GameResult
	Duration int `json:"duration"`
}

// NewGormGameRecord converts a result into its row form.
func NewGormGameRecord(r GameResult) *GormGameRecord {
	return &GormGameRecord{
		RoomID:     r.RoomID,
		Variant:    string(r.Variant),
		Standings:  r.Standings,
		Winners:    r.Winners,
		Reason:     r.Reason,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   int(r.FinishedAt.Sub(r.StartedAt).Seconds()),
	}
}

func (g *GormGameRecord) Record() GameRecord {
	return GameRecord{
		ID: g.ID,
		GameResult: GameResult{
			RoomID:     g.RoomID,
			Variant:    Variant(g.Variant),
			Standings:  g.Standings,
			Winners:    g.Winners,
			Reason:     g.Reason,
			StartedAt:  g.StartedAt,
			FinishedAt: g.FinishedAt,
		},
		Duration: g.Duration,
	}
}

// PlayerStats aggregates the stored games of one player name.
type PlayerStats struct {
	Name        string         `json:"name"`
	Games       int            `json:"games"`
	Wins        int            `json:"wins"`
	TotalPoints int            `json:"totalPoints"`
	ByVariant   map[string]int `json:"byVariant"`
}

// PlayedBy reports the standing of name in the record, if present.
func (r GameRecord) PlayedBy(name string) (Standing, bool) {
	for _, s := range r.Standings {
		if s.Name == name {
			return s, true
		}
	}
	return Standing{}, false
}

// Won reports whether the player with the given id is among the winners.
func (r GameRecord) Won(playerID string) bool {
	for _, id := range r.Winners {
		if id == playerID {
			return true
		}
	}
	return false
}

// StatsFor folds records into the stats of one player name.
func StatsFor(name string, records []GameRecord) PlayerStats {
	stats := PlayerStats{Name: name, ByVariant: map[string]int{}}
	for _, r := range records {
		s, ok := r.PlayedBy(name)
		if !ok {
			continue
		}
		stats.Games++
		stats.TotalPoints += s.Score
		stats.ByVariant[string(r.Variant)]++
		if r.Won(s.ID) {
			stats.Wins++
		}
	}
	return stats
}
