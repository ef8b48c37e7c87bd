/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package archive keeps a record of finished games.
package archive

import (
	"context"
	"errors"
	"time"
)

// DefaultLimit is used by Recent when the caller passes a non-positive limit.
const DefaultLimit = 20

var ErrClosed = errors.New("archive is closed")

// Result is one finished game.
type Result struct {
	Room      string    `json:"room"`
	Winner    string    `json:"winner"`
	Reason    string    `json:"reason"`
	Points    int       `json:"points"`
	Forfeit   bool      `json:"forfeit"`
	Moves     int       `json:"moves"`
	History   []string  `json:"history"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Recorder stores finished games and lists the most recent ones, newest first.
type Recorder interface {
	Record(ctx context.Context, res Result) error
	Recent(ctx context.Context, limit int) ([]Result, error)
	Close() error
}

// NopRecorder discards everything. It is used when no backend is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Result) error           { return nil }
func (NopRecorder) Recent(context.Context, int) ([]Result, error) { return []Result{}, nil }
func (NopRecorder) Close() error                                   { return nil }

// Open picks a backend: Redis when redisURL is set, Postgres when
// databaseURL is set, and NopRecorder otherwise.
func Open(ctx context.Context, redisURL, databaseURL string) (Recorder, error) {
	switch {
	case redisURL != "" && databaseURL != "":
		return nil, errors.New("only one of redis and database archives may be configured")
	case redisURL != "":
		return NewRedisRecorderFromURL(ctx, redisURL)
	case databaseURL != "":
		return NewPostgresRecorder(ctx, databaseURL)
	default:
		return NopRecorder{}, nil
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > maxResults {
		return maxResults
	}
	return limit
}
