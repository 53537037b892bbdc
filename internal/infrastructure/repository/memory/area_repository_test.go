package memory

import (
	"context"
	"testing"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
)

func testArea(id, name string) area.Area {
	now := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)
	return area.Area{
		ID:   id,
		Name: name,
		Polygon: geo.Polygon{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAreaRepositoryListPreservesCreationOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Areas()

	for _, id := range []string{"c", "a", "b"} {
		if err := repo.Create(ctx, testArea(id, "area "+id)); err != nil {
			t.Fatalf("create area %s: %v", id, err)
		}
	}

	areas, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list areas: %v", err)
	}
	if len(areas) != 3 || areas[0].ID != "c" || areas[1].ID != "a" || areas[2].ID != "b" {
		t.Fatalf("creation order not preserved: %+v", areas)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete area: %v", err)
	}
	areas, _ = repo.List(ctx)
	if len(areas) != 2 || areas[0].ID != "c" || areas[1].ID != "b" {
		t.Fatalf("order broken after delete: %+v", areas)
	}
}

func TestAreaRepositoryRename(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Areas()

	if err := repo.Create(ctx, testArea("a1", "Old Name")); err != nil {
		t.Fatalf("create area: %v", err)
	}
	if err := repo.Rename(ctx, "a1", "Main Stage"); err != nil {
		t.Fatalf("rename area: %v", err)
	}

	got, ok, _ := repo.GetByID(ctx, "a1")
	if !ok || got.Name != "Main Stage" {
		t.Fatalf("rename not applied: ok=%v %+v", ok, got)
	}

	if err := repo.Rename(ctx, "missing", "x"); err == nil {
		t.Fatalf("expected rename of missing area to fail")
	}
}

func TestAreaRepositoryWatchDeliversCollection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewStore().Areas()
	ch, err := repo.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	initial := <-ch
	if len(initial) != 0 {
		t.Fatalf("expected empty initial collection, got %+v", initial)
	}

	if err := repo.Create(ctx, testArea("a1", "Main Stage")); err != nil {
		t.Fatalf("create area: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case areas := <-ch:
			if len(areas) == 1 && areas[0].Name == "Main Stage" {
				return
			}
		case <-deadline:
			t.Fatalf("never observed creation through watch")
		}
	}
}
