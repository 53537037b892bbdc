package memory

import (
	"context"
	"testing"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/user"
)

func testUser(id, email string) user.User {
	now := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)
	return user.New(user.Principal{
		ID:          id,
		DisplayName: "User " + id,
		Email:       email,
	}, now)
}

func TestUserRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	u := testUser("u1", "one@festival.example")
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, ok, err := repo.GetByID(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("get by id: ok=%v err=%v", ok, err)
	}
	if got.CurrentArea != user.AreaUnknown {
		t.Fatalf("expected current area %q, got %q", user.AreaUnknown, got.CurrentArea)
	}
	if !got.UseGPS {
		t.Fatalf("new users should default to gps enabled")
	}

	byEmail, ok, err := repo.GetByEmail(ctx, "one@festival.example")
	if err != nil || !ok {
		t.Fatalf("get by email: ok=%v err=%v", ok, err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("email lookup returned wrong user %s", byEmail.ID)
	}
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	if err := repo.Create(ctx, testUser("u1", "one@festival.example")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.Create(ctx, testUser("u1", "other@festival.example")); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestUserRepositoryUpdateProfileReindexesEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	if err := repo.Create(ctx, testUser("u1", "old@festival.example")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.UpdateProfile(ctx, "u1", "Renamed", "https://img/1", "new@festival.example"); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	if _, ok, _ := repo.GetByEmail(ctx, "old@festival.example"); ok {
		t.Fatalf("old email should no longer resolve")
	}
	got, ok, err := repo.GetByEmail(ctx, "new@festival.example")
	if err != nil || !ok {
		t.Fatalf("new email lookup: ok=%v err=%v", ok, err)
	}
	if got.DisplayName != "Renamed" {
		t.Fatalf("display name not updated: %q", got.DisplayName)
	}
}

func TestUserRepositorySetPosition(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	if err := repo.Create(ctx, testUser("u1", "one@festival.example")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.SetPosition(ctx, "u1", geo.Point{X: 0.3, Y: 0.7}, "Main Stage", "Main Stage"); err != nil {
		t.Fatalf("set position: %v", err)
	}

	got, _, _ := repo.GetByID(ctx, "u1")
	if got.Location == nil || got.Location.X != 0.3 || got.Location.Y != 0.7 {
		t.Fatalf("location not recorded: %+v", got.Location)
	}
	if got.CurrentArea != "Main Stage" || got.LastKnownArea != "Main Stage" {
		t.Fatalf("area names not recorded: current=%q last=%q", got.CurrentArea, got.LastKnownArea)
	}
}

func TestUserRepositorySnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	if err := repo.Create(ctx, testUser("u1", "one@festival.example")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.SetPosition(ctx, "u1", geo.Point{X: 0.5, Y: 0.5}, user.AreaUnknown, ""); err != nil {
		t.Fatalf("set position: %v", err)
	}

	first, _, _ := repo.GetByID(ctx, "u1")
	first.Location.X = 99 // must not leak into the store

	second, _, _ := repo.GetByID(ctx, "u1")
	if second.Location.X != 0.5 {
		t.Fatalf("stored location mutated through a returned snapshot")
	}
}

func TestUserRepositoryWatchDeliversUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewStore().Users()
	if err := repo.Create(ctx, testUser("u1", "one@festival.example")); err != nil {
		t.Fatalf("create user: %v", err)
	}

	ch, err := repo.Watch(ctx, "u1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	initial := <-ch
	if !initial.Exists || initial.Value.ID != "u1" {
		t.Fatalf("initial snapshot missing: %+v", initial)
	}

	if err := repo.SetUseGPS(ctx, "u1", false); err != nil {
		t.Fatalf("set use gps: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Exists && !snap.Value.UseGPS {
				return
			}
		case <-deadline:
			t.Fatalf("never observed gps toggle through watch")
		}
	}
}
