package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"edufund-backend/internal/domain/scoring"
	"edufund-backend/internal/testutil/scoremock"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return s, c
}

func TestScoreCache_HitAfterMiss(t *testing.T) {
	s, rdb := newRedis(t)
	p := &scoremock.Provider{Scores: map[string]*scoring.Score{
		"b1": {BorrowerID: "b1", Value: 720, Band: scoring.BandB},
	}}
	c := NewScoreCache(rdb, p, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.GetScore(ctx, "b1")
		if err != nil {
			t.Fatalf("GetScore: %v", err)
		}
		if got.Value != 720 || got.Band != scoring.BandB {
			t.Fatalf("got %+v", got)
		}
	}
	if p.Calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.Calls)
	}
	if ttl := s.TTL(scoreKeyPrefix + "b1"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	s.FastForward(2 * time.Minute)
	if _, err := c.GetScore(ctx, "b1"); err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if p.Calls != 2 {
		t.Fatalf("provider calls after expiry = %d, want 2", p.Calls)
	}
}

func TestScoreCache_MissingScoreNotCached(t *testing.T) {
	s, rdb := newRedis(t)
	p := &scoremock.Provider{Scores: map[string]*scoring.Score{}}
	c := NewScoreCache(rdb, p, time.Minute, nil)

	_, err := c.GetScore(context.Background(), "nobody")
	if !errors.Is(err, scoring.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Exists(scoreKeyPrefix + "nobody") {
		t.Fatal("missing score must not be cached")
	}
}

func TestScoreCache_RedisDownFallsThrough(t *testing.T) {
	s, rdb := newRedis(t)
	p := &scoremock.Provider{Scores: map[string]*scoring.Score{
		"b1": {BorrowerID: "b1", Value: 650, Band: scoring.BandC},
	}}
	c := NewScoreCache(rdb, p, time.Minute, nil)
	s.Close()

	got, err := c.GetScore(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if got.Value != 650 {
		t.Fatalf("got %+v", got)
	}
}

func TestScoreCache_Invalidate(t *testing.T) {
	s, rdb := newRedis(t)
	p := &scoremock.Provider{Scores: map[string]*scoring.Score{
		"b1": {BorrowerID: "b1", Value: 650, Band: scoring.BandC},
	}}
	c := NewScoreCache(rdb, p, time.Minute, nil)
	ctx := context.Background()

	if _, err := c.GetScore(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if s.Exists(scoreKeyPrefix + "b1") {
		t.Fatal("key still cached")
	}
}

func TestHaltSwitch(t *testing.T) {
	_, rdb := newRedis(t)
	h := NewHaltSwitch(rdb, "")
	ctx := context.Background()

	halted, _, err := h.Halted(ctx)
	if err != nil || halted {
		t.Fatalf("fresh switch: halted=%v err=%v", halted, err)
	}

	if err := h.Halt(ctx, "ledger unbalanced"); err != nil {
		t.Fatal(err)
	}
	if err := h.Halt(ctx, "second reason"); err != nil {
		t.Fatal(err)
	}
	halted, reason, err := h.Halted(ctx)
	if err != nil || !halted || reason != "ledger unbalanced" {
		t.Fatalf("halted=%v reason=%q err=%v", halted, reason, err)
	}

	if err := h.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if halted, _, _ := h.Halted(ctx); halted {
		t.Fatal("still halted after resume")
	}
}

func TestHaltSwitch_ReadError(t *testing.T) {
	s, rdb := newRedis(t)
	h := NewHaltSwitch(rdb, "")
	s.Close()

	if _, _, err := h.Halted(context.Background()); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
