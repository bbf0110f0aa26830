// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/partyserver/models"
)

// PostgreSQL 数据库实现, database/sql over lib/pq.
type PostgreSQL struct {
	db *sql.DB
}

var _ Database = (*PostgreSQL)(nil)

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connector, err := pq.NewConnector(fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构, compatible with the gorm migration.
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id BIGSERIAL PRIMARY KEY,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMPTZ,
            room_id TEXT NOT NULL,
            variant TEXT NOT NULL,
            standings JSONB NOT NULL,
            winners JSONB NOT NULL,
            reason TEXT,
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ,
            duration BIGINT
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_game_records_variant ON game_records(variant);
        CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);
    `)
	return err
}

const recordColumns = `id, room_id, variant, standings, winners, COALESCE(reason, ''), started_at, finished_at, COALESCE(duration, 0)`

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, result models.GameResult) (models.GameRecord, error) {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return models.GameRecord{}, err
	}
	winners, err := json.Marshal(result.Winners)
	if err != nil {
		return models.GameRecord{}, err
	}
	row := models.NewGormGameRecord(result)

	var id uint
	err = p.db.QueryRowContext(ctx, `
        INSERT INTO game_records (room_id, variant, standings, winners, reason, started_at, finished_at, duration)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, row.RoomID, row.Variant, standings, winners, row.Reason, row.StartedAt, row.FinishedAt, row.Duration).Scan(&id)
	if err != nil {
		return models.GameRecord{}, err
	}
	row.ID = id
	return row.Record(), nil
}

func (p *PostgreSQL) GetGameRecord(ctx context.Context, id uint) (models.GameRecord, error) {
	records, err := p.query(ctx, `SELECT `+recordColumns+` FROM game_records WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return models.GameRecord{}, err
	}
	if len(records) == 0 {
		return models.GameRecord{}, ErrRecordNotFound
	}
	return records[0], nil
}

func (p *PostgreSQL) RecentGames(ctx context.Context, variant models.Variant, limit int) ([]models.GameRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + ` FROM game_records WHERE deleted_at IS NULL`)
	args := []any{ClampLimit(limit)}
	if variant != "" {
		sb.WriteString(` AND variant = $2`)
		args = append(args, string(variant))
	}
	sb.WriteString(` ORDER BY finished_at DESC, id DESC LIMIT $1`)
	return p.query(ctx, sb.String(), args...)
}

func (p *PostgreSQL) PlayerGames(ctx context.Context, name string, limit int) ([]models.GameRecord, error) {
	filter, err := standingFilter(name)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, `SELECT `+recordColumns+` FROM game_records
        WHERE deleted_at IS NULL AND standings @> $1::jsonb
        ORDER BY finished_at DESC, id DESC LIMIT $2`, filter, ClampLimit(limit))
}

func (p *PostgreSQL) GetPlayerStats(ctx context.Context, name string) (models.PlayerStats, error) {
	filter, err := standingFilter(name)
	if err != nil {
		return models.PlayerStats{}, err
	}
	records, err := p.query(ctx, `SELECT `+recordColumns+` FROM game_records
        WHERE deleted_at IS NULL AND standings @> $1::jsonb`, filter)
	if err != nil {
		return models.PlayerStats{}, err
	}
	return models.StatsFor(name, records), nil
}

func (p *PostgreSQL) query(ctx context.Context, query string, args ...any) ([]models.GameRecord, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (models.GameRecord, error) {
	var (
		r                  models.GameRecord
		variant            string
		standings, winners []byte
		started, finished  sql.NullTime
	)
	err := s.Scan(&r.ID, &r.RoomID, &variant, &standings, &winners, &r.Reason, &started, &finished, &r.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrRecordNotFound
	}
	if err != nil {
		return r, err
	}
	r.Variant = models.Variant(variant)
	r.StartedAt, r.FinishedAt = started.Time, finished.Time
	if err := json.Unmarshal(standings, &r.Standings); err != nil {
		return r, err
	}
	if err := json.Unmarshal(winners, &r.Winners); err != nil {
		return r, err
	}
	return r, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
