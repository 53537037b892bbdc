package area

import "context"

// Repository describes area persistence. List order is creation order and
// must be stable: geofence resolution returns the first containing area, so
// reordering would silently change check-in results.
type Repository interface {
	Create(ctx context.Context, a Area) error
	GetByID(ctx context.Context, id string) (Area, bool, error)
	List(ctx context.Context) ([]Area, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	// Watch delivers the full area collection on every change.
	Watch(ctx context.Context) (<-chan []Area, error)
}
