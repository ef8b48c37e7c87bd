/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resultsKey = "checkers:results"
	maxResults = 1000
	resultsTTL = 7 * 24 * time.Hour
)

// RedisRecorder keeps finished games as a capped JSON list.
type RedisRecorder struct {
	rdb *redis.Client
}

func NewRedisRecorder(rdb *redis.Client) *RedisRecorder {
	return &RedisRecorder{rdb: rdb}
}

// NewRedisRecorderFromURL connects to url and checks the connection.
func NewRedisRecorderFromURL(ctx context.Context, url string) (*RedisRecorder, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisRecorder(rdb), nil
}

func (s *RedisRecorder) Record(ctx context.Context, res Result) error {
	if s == nil || s.rdb == nil {
		return ErrClosed
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, resultsKey, raw)
	pipe.LTrim(ctx, resultsKey, 0, maxResults-1)
	pipe.Expire(ctx, resultsKey, resultsTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRecorder) Recent(ctx context.Context, limit int) ([]Result, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrClosed
	}
	raws, err := s.rdb.LRange(ctx, resultsKey, 0, int64(clampLimit(limit)-1)).Result()
	if err == redis.Nil {
		return []Result{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(raws))
	for _, raw := range raws {
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *RedisRecorder) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
