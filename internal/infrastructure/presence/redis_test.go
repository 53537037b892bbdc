package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/herdsearch/herd-search/internal/domain/geo"
)

func newMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisMirror(client, time.Minute), srv
}

func TestRedisMirrorRoundTrip(t *testing.T) {
	mirror, _ := newMirror(t)
	ctx := context.Background()

	if err := mirror.SetPosition(ctx, "alice", geo.Point{X: 0.25, Y: 0.75}, "Main Stage"); err != nil {
		t.Fatalf("set position: %v", err)
	}

	pos, ok, err := mirror.GetPosition(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("get position: ok=%v err=%v", ok, err)
	}
	if pos.Point.X != 0.25 || pos.Point.Y != 0.75 || pos.Area != "Main Stage" {
		t.Fatalf("round trip mismatch: %+v", pos)
	}
}

func TestRedisMirrorMissingUser(t *testing.T) {
	mirror, _ := newMirror(t)

	_, ok, err := mirror.GetPosition(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if ok {
		t.Fatalf("expected no presence entry")
	}
}

func TestRedisMirrorEntriesExpire(t *testing.T) {
	mirror, srv := newMirror(t)
	ctx := context.Background()

	if err := mirror.SetPosition(ctx, "alice", geo.Point{X: 0.5, Y: 0.5}, "unknown"); err != nil {
		t.Fatalf("set position: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	_, ok, err := mirror.GetPosition(ctx, "alice")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if ok {
		t.Fatalf("entry should have expired")
	}
}
