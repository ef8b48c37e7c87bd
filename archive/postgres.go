/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GameResult is the table row for one finished game.
type GameResult struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Room      string    `gorm:"index"`
	Winner    string
	Reason    string
	Points    int
	Forfeit   bool
	Moves     int
	History   string
	StartedAt time.Time
	EndedAt   time.Time `gorm:"index"`
	CreatedAt time.Time
}

// PostgresRecorder stores finished games with gorm.
type PostgresRecorder struct {
	db *gorm.DB
}

// NewPostgresRecorder opens dsn and migrates the results table.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&GameResult{}); err != nil {
		return nil, err
	}
	return &PostgresRecorder{db: db}, nil
}

func (s *PostgresRecorder) Record(ctx context.Context, res Result) error {
	if s == nil {
		return ErrClosed
	}
	row, err := toRow(res)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Result, error) {
	if s == nil {
		return nil, ErrClosed
	}
	var rows []GameResult
	err := s.db.WithContext(ctx).
		Order("ended_at desc").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (s *PostgresRecorder) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(res Result) (GameResult, error) {
	history, err := json.Marshal(res.History)
	if err != nil {
		return GameResult{}, err
	}
	return GameResult{
		ID:        uuid.New(),
		Room:      res.Room,
		Winner:    res.Winner,
		Reason:    res.Reason,
		Points:    res.Points,
		Forfeit:   res.Forfeit,
		Moves:     res.Moves,
		History:   string(history),
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}, nil
}

func fromRow(row GameResult) Result {
	res := Result{
		Room:      row.Room,
		Winner:    row.Winner,
		Reason:    row.Reason,
		Points:    row.Points,
		Forfeit:   row.Forfeit,
		Moves:     row.Moves,
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}
	if err := json.Unmarshal([]byte(row.History), &res.History); err != nil {
		res.History = nil
	}
	return res
}
