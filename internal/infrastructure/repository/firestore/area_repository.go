package firestore

import (
	"context"
	"time"

	fs "cloud.google.com/go/firestore"
	crerr "github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
)

type areaDoc struct {
	ID        string     `firestore:"id"`
	Name      string     `firestore:"name"`
	Polygon   []pointDoc `firestore:"polygon"`
	CreatedAt time.Time  `firestore:"createdAt"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
}

func toAreaDoc(a area.Area) areaDoc {
	doc := areaDoc{
		ID:        a.ID,
		Name:      a.Name,
		Polygon:   make([]pointDoc, len(a.Polygon)),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	for i, p := range a.Polygon {
		doc.Polygon[i] = pointDoc{X: p.X, Y: p.Y}
	}
	return doc
}

func fromAreaDoc(doc areaDoc) area.Area {
	a := area.Area{
		ID:        doc.ID,
		Name:      doc.Name,
		Polygon:   make(geo.Polygon, len(doc.Polygon)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for i, p := range doc.Polygon {
		a.Polygon[i] = geo.Point{X: p.X, Y: p.Y}
	}
	return a
}

type AreaRepository struct {
	store *Store
}

func (r *AreaRepository) Create(ctx context.Context, a area.Area) error {
	_, err := r.store.areas().Doc(a.ID).Create(ctx, toAreaDoc(a))
	return wrapErr(err, "create area")
}

func (r *AreaRepository) GetByID(ctx context.Context, id string) (area.Area, bool, error) {
	snap, err := r.store.areas().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return area.Area{}, false, nil
		}
		return area.Area{}, false, wrapErr(err, "get area")
	}

	var doc areaDoc
	if err := snap.DataTo(&doc); err != nil {
		return area.Area{}, false, crerr.Wrap(err, "decode area")
	}

	return fromAreaDoc(doc), true, nil
}

// List orders by creation time; geofence resolution depends on a stable
// first-match order.
func (r *AreaRepository) List(ctx context.Context) ([]area.Area, error) {
	iter := r.orderedAreas().Documents(ctx)
	defer iter.Stop()

	out := make([]area.Area, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapErr(err, "list areas")
		}
		var doc areaDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, crerr.Wrap(err, "decode area")
		}
		out = append(out, fromAreaDoc(doc))
	}

	return out, nil
}

func (r *AreaRepository) Rename(ctx context.Context, id, name string) error {
	_, err := r.store.areas().Doc(id).Update(ctx, []fs.Update{
		{Path: "name", Value: name},
		{Path: "updatedAt", Value: time.Now()},
	})
	return wrapErr(err, "rename area")
}

func (r *AreaRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.areas().Doc(id).Delete(ctx)
	return wrapErr(err, "delete area")
}

func (r *AreaRepository) Watch(ctx context.Context) (<-chan []area.Area, error) {
	out := make(chan []area.Area, 1)
	iter := r.orderedAreas().Snapshots(ctx)

	go func() {
		defer close(out)
		defer iter.Stop()

		for {
			qs, err := iter.Next()
			if err != nil {
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				continue
			}
			areas := make([]area.Area, 0, len(docs))
			for _, snap := range docs {
				var doc areaDoc
				if err := snap.DataTo(&doc); err != nil {
					continue
				}
				areas = append(areas, fromAreaDoc(doc))
			}
			sendLatest(out, areas)
		}
	}()

	return out, nil
}

func (r *AreaRepository) orderedAreas() fs.Query {
	return r.store.areas().OrderBy("createdAt", fs.Asc)
}
