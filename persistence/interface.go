// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/partyserver/models"
)

// Database 游戏记录存储接口
type Database interface {
	SaveGameRecord(ctx context.Context, result models.GameResult) (models.GameRecord, error)
	GetGameRecord(ctx context.Context, id uint) (models.GameRecord, error)
	// RecentGames lists the newest records first; an empty variant means all.
	RecentGames(ctx context.Context, variant models.Variant, limit int) ([]models.GameRecord, error)
	PlayerGames(ctx context.Context, name string, limit int) ([]models.GameRecord, error)
	GetPlayerStats(ctx context.Context, name string) (models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// ClampLimit keeps list sizes in [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
