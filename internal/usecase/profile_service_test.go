package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/infrastructure/repository/memory"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

func newProfileFixture(t *testing.T) (*ProfileService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	membership := NewMembershipService(store.Users(), store.Squads(), &seqIDGenerator{prefix: "id"}, logging.NewNop())
	service := NewProfileService(store.Users(), membership, logging.NewNop())
	service.now = func() time.Time { return time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC) }

	return service, store
}

func TestEnsureUserCreatesOnFirstSighting(t *testing.T) {
	service, store := newProfileFixture(t)
	ctx := context.Background()

	created, err := service.EnsureUser(ctx, user.Principal{
		ID:          "alice",
		DisplayName: "Alice",
		AvatarURL:   "https://img/alice",
		Email:       "Alice@Festival.Example",
	})
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if created.Email != "alice@festival.example" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.CurrentArea != user.AreaUnknown || !created.UseGPS {
		t.Fatalf("defaults not seeded: %+v", created)
	}
	if created.SquadID != nil || created.Location != nil {
		t.Fatalf("new user must start unaffiliated and unlocated")
	}

	if _, ok, _ := store.Users().GetByID(ctx, "alice"); !ok {
		t.Fatalf("user not persisted")
	}
}

func TestEnsureUserRefreshesProviderFields(t *testing.T) {
	service, store := newProfileFixture(t)
	ctx := context.Background()

	if _, err := service.EnsureUser(ctx, user.Principal{ID: "alice", DisplayName: "Alice", Email: "alice@festival.example"}); err != nil {
		t.Fatalf("first sighting: %v", err)
	}
	refreshed, err := service.EnsureUser(ctx, user.Principal{
		ID:          "alice",
		DisplayName: "Alice Renamed",
		AvatarURL:   "https://img/new",
		Email:       "alice@festival.example",
	})
	if err != nil {
		t.Fatalf("second sighting: %v", err)
	}
	if refreshed.DisplayName != "Alice Renamed" || refreshed.AvatarURL != "https://img/new" {
		t.Fatalf("provider fields not refreshed: %+v", refreshed)
	}

	persisted, _, _ := store.Users().GetByID(ctx, "alice")
	if persisted.DisplayName != "Alice Renamed" {
		t.Fatalf("refresh not persisted")
	}
}

func TestEnsureUserRequiresIdentity(t *testing.T) {
	service, _ := newProfileFixture(t)
	ctx := context.Background()

	if _, err := service.EnsureUser(ctx, user.Principal{Email: "x@y.z"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing id, got %v", err)
	}
	if _, err := service.EnsureUser(ctx, user.Principal{ID: "alice"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing email, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	service, _ := newProfileFixture(t)
	ctx := context.Background()

	if _, err := service.GetProfile(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := service.EnsureUser(ctx, user.Principal{ID: "alice", DisplayName: "Alice", Email: "alice@festival.example"}); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	got, err := service.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.ID != "alice" {
		t.Fatalf("wrong profile: %+v", got)
	}
}
