// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/partyserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

var _ Database = (*GormPostgreSQL)(nil)

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}
	return NewGormWithDB(db)
}

// NewGormWithDB wraps an open gorm handle, tuning its pool and migrating the
// game_records table.
func NewGormWithDB(db *gorm.DB) (*GormPostgreSQL, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) SaveGameRecord(ctx context.Context, result models.GameResult) (models.GameRecord, error) {
	row := models.NewGormGameRecord(result)
	if err := g.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.GameRecord{}, err
	}
	return row.Record(), nil
}

func (g *GormPostgreSQL) GetGameRecord(ctx context.Context, id uint) (models.GameRecord, error) {
	var row models.GormGameRecord
	err := g.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GameRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.GameRecord{}, err
	}
	return row.Record(), nil
}

func (g *GormPostgreSQL) RecentGames(ctx context.Context, variant models.Variant, limit int) ([]models.GameRecord, error) {
	q := g.db.WithContext(ctx).Order("finished_at DESC, id DESC").Limit(ClampLimit(limit))
	if variant != "" {
		q = q.Where("variant = ?", string(variant))
	}
	return g.find(q)
}

func (g *GormPostgreSQL) PlayerGames(ctx context.Context, name string, limit int) ([]models.GameRecord, error) {
	filter, err := standingFilter(name)
	if err != nil {
		return nil, err
	}
	q := g.db.WithContext(ctx).
		Where("standings @> ?::jsonb", filter).
		Order("finished_at DESC, id DESC").
		Limit(ClampLimit(limit))
	return g.find(q)
}

// GetPlayerStats 获取玩家统计
func (g *GormPostgreSQL) GetPlayerStats(ctx context.Context, name string) (models.PlayerStats, error) {
	filter, err := standingFilter(name)
	if err != nil {
		return models.PlayerStats{}, err
	}
	records, err := g.find(g.db.WithContext(ctx).Where("standings @> ?::jsonb", filter))
	if err != nil {
		return models.PlayerStats{}, err
	}
	return models.StatsFor(name, records), nil
}

func (g *GormPostgreSQL) find(q *gorm.DB) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]models.GameRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].Record()
	}
	return records, nil
}

// Close 关闭数据库连接
func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// standingFilter builds the jsonb containment document matching a player name.
func standingFilter(name string) (string, error) {
	data, err := json.Marshal([]map[string]string{{"name": name}})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
