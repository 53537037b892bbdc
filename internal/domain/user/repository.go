package user

import (
	"context"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/store"
)

// Repository describes user persistence needs from use cases.
type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, bool, error)
	// GetByEmail expects a NormalizeEmail'd address.
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	ListByIDs(ctx context.Context, ids []string) ([]User, error)
	// UpdateProfile refreshes the identity-provider fields on later sightings.
	UpdateProfile(ctx context.Context, id, displayName, avatarURL, email string) error
	// SetPosition records a location fix together with the resolved area
	// names. Pass the previous LastKnownArea unchanged when the fix did not
	// land in a named area.
	SetPosition(ctx context.Context, id string, p geo.Point, currentArea, lastKnownArea string) error
	SetUseGPS(ctx context.Context, id string, enabled bool) error
	// ClearSquad drops a dangling squad reference during reconciliation.
	// Membership transitions clear references through squad.Repository's
	// composite operations instead.
	ClearSquad(ctx context.Context, id string) error
	// Watch delivers full snapshots of the user document until ctx is done.
	Watch(ctx context.Context, id string) (<-chan store.Snapshot[User], error)
}
