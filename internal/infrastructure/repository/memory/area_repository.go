package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
)

type AreaRepository struct {
	store *Store
}

func (r *AreaRepository) Create(_ context.Context, a area.Area) error {
	return r.store.commit(func() ([]string, error) {
		if _, exists := r.store.areas[a.ID]; exists {
			return nil, fmt.Errorf("area %s already exists", a.ID)
		}

		r.store.areas[a.ID] = cloneArea(a)
		r.store.areaOrder = append(r.store.areaOrder, a.ID)

		return []string{topicAreas}, nil
	})
}

func (r *AreaRepository) GetByID(_ context.Context, id string) (area.Area, bool, error) {
	var (
		a  area.Area
		ok bool
	)
	r.store.read(func() {
		a, ok = r.store.areas[id]
	})
	if !ok {
		return area.Area{}, false, nil
	}

	return cloneArea(a), true, nil
}

func (r *AreaRepository) List(_ context.Context) ([]area.Area, error) {
	var out []area.Area
	r.store.read(func() {
		out = r.listLocked()
	})

	return out, nil
}

func (r *AreaRepository) Rename(_ context.Context, id, name string) error {
	return r.store.commit(func() ([]string, error) {
		a, ok := r.store.areas[id]
		if !ok {
			return nil, fmt.Errorf("area %s not found", id)
		}

		a.Name = name
		r.store.areas[id] = a

		return []string{topicAreas}, nil
	})
}

func (r *AreaRepository) Delete(_ context.Context, id string) error {
	return r.store.commit(func() ([]string, error) {
		if _, ok := r.store.areas[id]; !ok {
			return nil, fmt.Errorf("area %s not found", id)
		}

		delete(r.store.areas, id)
		r.store.areaOrder = slices.DeleteFunc(r.store.areaOrder, func(aid string) bool { return aid == id })

		return []string{topicAreas}, nil
	})
}

func (r *AreaRepository) Watch(ctx context.Context) (<-chan []area.Area, error) {
	out := make(chan []area.Area, 1)
	subID, ping := r.store.hub.subscribe(topicAreas)

	push := func() {
		var areas []area.Area
		r.store.read(func() {
			areas = r.listLocked()
		})
		sendLatest(out, areas)
	}

	go func() {
		defer close(out)
		defer r.store.hub.unsubscribe(topicAreas, subID)

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping:
				push()
			}
		}
	}()

	return out, nil
}

func (r *AreaRepository) listLocked() []area.Area {
	out := make([]area.Area, 0, len(r.store.areaOrder))
	for _, id := range r.store.areaOrder {
		if a, ok := r.store.areas[id]; ok {
			out = append(out, cloneArea(a))
		}
	}
	return out
}

func cloneArea(a area.Area) area.Area {
	copied := a
	copied.Polygon = append(geo.Polygon(nil), a.Polygon...)
	return copied
}
