/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRecorder(t *testing.T) (*RedisRecorder, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rec := NewRedisRecorder(rdb)
	t.Cleanup(func() { _ = rec.Close() })
	return rec, mr
}

func sampleResult(room string, points int) Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Result{
		Room:      room,
		Winner:    "black",
		Reason:    "no pieces",
		Points:    points,
		Moves:     31,
		History:   []string{"Black: (2,1) → (3,2)"},
		StartedAt: start,
		EndedAt:   start.Add(12 * time.Minute),
	}
}

func TestRedisRecordAndRecent(t *testing.T) {
	rec, mr := newTestRecorder(t)
	ctx := context.Background()

	for i := range 3 {
		if err := rec.Record(ctx, sampleResult(fmt.Sprintf("ROOM000%d", i), i)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := rec.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Room != "ROOM0002" || got[1].Room != "ROOM0001" {
		t.Fatalf("expected newest first, got %s then %s", got[0].Room, got[1].Room)
	}
	if len(got[0].History) != 1 || !got[0].EndedAt.Equal(sampleResult("", 0).EndedAt) {
		t.Fatalf("result did not survive the round trip: %+v", got[0])
	}

	if ttl := mr.TTL(resultsKey); ttl <= 0 || ttl > resultsTTL {
		t.Fatalf("expected a ttl up to %s, got %s", resultsTTL, ttl)
	}
}

func TestRedisRecentEmpty(t *testing.T) {
	rec, _ := newTestRecorder(t)

	got, err := rec.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty, non-nil slice, got %#v", got)
	}
}

func TestRedisListIsCapped(t *testing.T) {
	rec, mr := newTestRecorder(t)
	ctx := context.Background()

	for i := range maxResults + 5 {
		if err := rec.Record(ctx, sampleResult("ROOM0000", i)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	items, err := mr.List(resultsKey)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != maxResults {
		t.Fatalf("expected list capped at %d, got %d", maxResults, len(items))
	}
}

func TestRedisRecorderFromURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rec, err := NewRedisRecorderFromURL(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisRecorderFromURL: %v", err)
	}
	defer rec.Close()

	if _, err := NewRedisRecorderFromURL(context.Background(), "  "); err == nil {
		t.Fatalf("expected an error for an empty url")
	}
}

func TestNilRedisRecorder(t *testing.T) {
	var rec *RedisRecorder
	if err := rec.Record(context.Background(), Result{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close on nil recorder: %v", err)
	}
}

func TestOpen(t *testing.T) {
	rec, err := Open(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := rec.(NopRecorder); !ok {
		t.Fatalf("expected NopRecorder, got %T", rec)
	}

	if _, err := Open(context.Background(), "redis://localhost:6379/0", "postgres://localhost/db"); err == nil {
		t.Fatalf("expected an error when both backends are configured")
	}
}

func TestRowConversion(t *testing.T) {
	in := sampleResult("ABCD1234", 7)
	in.Forfeit = true

	row, err := toRow(in)
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}
	out := fromRow(row)

	if out.Room != in.Room || out.Points != in.Points || !out.Forfeit || out.Moves != in.Moves {
		t.Fatalf("unexpected result %+v", out)
	}
	if len(out.History) != 1 || out.History[0] != in.History[0] {
		t.Fatalf("history lost: %v", out.History)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{5, 5},
		{maxResults * 2, maxResults},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Fatalf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
