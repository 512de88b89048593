package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultHaltKey = "settlement:halt"

type haltState struct {
	Reason   string    `json:"reason"`
	HaltedAt time.Time `json:"halted_at"`
}

// HaltSwitch is the process-wide settlement stop shared by the API and the auditor.
type HaltSwitch struct {
	rdb *redis.Client
	key string
}

func NewHaltSwitch(rdb *redis.Client, key string) *HaltSwitch {
	if key == "" {
		key = DefaultHaltKey
	}
	return &HaltSwitch{rdb: rdb, key: key}
}

// Halt sets the switch. The first reason wins until Resume.
func (h *HaltSwitch) Halt(ctx context.Context, reason string) error {
	payload, _ := json.Marshal(haltState{Reason: reason, HaltedAt: time.Now().UTC()})
	return h.rdb.SetNX(ctx, h.key, payload, 0).Err()
}

func (h *HaltSwitch) Halted(ctx context.Context) (bool, string, error) {
	raw, err := h.rdb.Get(ctx, h.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	var st haltState
	if err := json.Unmarshal(raw, &st); err != nil {
		return true, string(raw), nil
	}
	return true, st.Reason, nil
}

func (h *HaltSwitch) Resume(ctx context.Context) error {
	return h.rdb.Del(ctx, h.key).Err()
}
