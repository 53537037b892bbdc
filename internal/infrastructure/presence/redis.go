// Package presence mirrors the latest resolved position of each user into
// Redis so sibling instances can answer "who is where" without a document
// store round trip. The mirror is best-effort; the document store stays the
// source of truth.
package presence

import (
	"context"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/herdsearch/herd-search/internal/domain/geo"
)

const defaultTTL = 30 * time.Second

type Position struct {
	Point geo.Point
	Area  string
}

type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &RedisMirror{client: client, ttl: ttl}
}

func (m *RedisMirror) SetPosition(ctx context.Context, userID string, p geo.Point, areaName string) error {
	key := presenceKey(userID)
	err := m.client.HSet(ctx, key,
		"x", p.X,
		"y", p.Y,
		"area", areaName,
		"updatedAt", time.Now().UnixMilli(),
	).Err()
	if err != nil {
		return crerr.Wrapf(err, "presence hset %s", key)
	}
	if err := m.client.Expire(ctx, key, m.ttl).Err(); err != nil {
		return crerr.Wrapf(err, "presence expire %s", key)
	}

	return nil
}

// GetPosition reads the mirrored position. A missing or expired entry
// returns ok=false, not an error.
func (m *RedisMirror) GetPosition(ctx context.Context, userID string) (Position, bool, error) {
	vals, err := m.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return Position{}, false, crerr.Wrapf(err, "presence hgetall %s", userID)
	}
	if len(vals) == 0 {
		return Position{}, false, nil
	}

	var pos Position
	if _, err := fmt.Sscanf(vals["x"], "%f", &pos.Point.X); err != nil {
		return Position{}, false, crerr.Wrap(err, "presence parse x")
	}
	if _, err := fmt.Sscanf(vals["y"], "%f", &pos.Point.Y); err != nil {
		return Position{}, false, crerr.Wrap(err, "presence parse y")
	}
	pos.Area = vals["area"]

	return pos, true, nil
}

func presenceKey(userID string) string {
	return "presence:" + userID
}
