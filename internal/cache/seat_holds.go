// Package cache keeps short-lived seat holds in Redis. Holds are a fast path
// in front of the reservation store, which stays authoritative.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var holdSeatsScript = redis.NewScript(`
    -- KEYS = seat hold keys (e.g., seat_hold:{12}:A1, seat_hold:{12}:A2)
    -- ARGV = [holdToken, ttlMillis]
    local taken = {}

    for i=1, #KEYS do
        local owner = redis.call("GET", KEYS[i])
        if owner and owner ~= ARGV[1] then
            table.insert(taken, i)
        end
    end

    if #taken > 0 then
        return taken
    end

    for i=1, #KEYS do
        redis.call("SET", KEYS[i], ARGV[1], "PX", ARGV[2])
    end

    return {}
`)

var releaseSeatsScript = redis.NewScript(`
    -- KEYS = seat hold keys, ARGV = [holdToken]
    local released = 0

    for i=1, #KEYS do
        if redis.call("GET", KEYS[i]) == ARGV[1] then
            redis.call("DEL", KEYS[i])
            released = released + 1
        end
    end

    return released
`)

type RedisSeatHolds struct {
	client redis.UniversalClient
}

func NewRedisSeatHolds(client redis.UniversalClient) *RedisSeatHolds {
	return &RedisSeatHolds{client: client}
}

// Hold takes every seat for token or none of them. It returns the seats
// already held under a different token.
func (h *RedisSeatHolds) Hold(ctx context.Context, scheduleID int, codes []string, token string, ttl time.Duration) ([]string, error) {
	if ttl <= 0 || len(codes) == 0 {
		return nil, nil
	}

	taken, err := holdSeatsScript.Run(ctx, h.client, seatHoldKeys(scheduleID, codes), token, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("hold seats for schedule %d: %w", scheduleID, err)
	}

	conflicts := make([]string, 0, len(taken))
	for _, i := range taken {
		conflicts = append(conflicts, codes[i-1])
	}

	return conflicts, nil
}

// Release drops only the holds still owned by token.
func (h *RedisSeatHolds) Release(ctx context.Context, scheduleID int, codes []string, token string) error {
	if len(codes) == 0 || token == "" {
		return nil
	}

	err := releaseSeatsScript.Run(ctx, h.client, seatHoldKeys(scheduleID, codes), token).Err()
	if err != nil {
		return fmt.Errorf("release seats for schedule %d: %w", scheduleID, err)
	}

	return nil
}

func seatHoldKeys(scheduleID int, codes []string) []string {
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = seatHoldKey(scheduleID, code)
	}
	return keys
}

// The schedule id is a hash tag so all keys of one claim share a cluster slot.
func seatHoldKey(scheduleID int, code string) string {
	return fmt.Sprintf("seat_hold:{%d}:%s", scheduleID, code)
}
