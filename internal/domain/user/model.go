package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/geo"
)

// AreaUnknown is the current-area name recorded while the user is outside
// every drawn area (or has never reported a position).
const AreaUnknown = "unknown"

// Principal is what the identity provider yields for a verified session.
type Principal struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Email       string
}

// User is the per-identity profile document. A user is created on first
// sign-in and never hard-deleted; sign-out only clears client state.
type User struct {
	ID            string
	DisplayName   string
	AvatarURL     string
	Email         string // stored lower-cased for lookup
	Location      *geo.Point
	CurrentArea   string
	LastKnownArea string
	UseGPS        bool
	SquadID       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New seeds a profile for a first-sighted principal.
func New(p Principal, now time.Time) User {
	return User{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Email:       NormalizeEmail(p.Email),
		CurrentArea: AreaUnknown,
		UseGPS:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u User) ValidateBasic() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.Email == "" {
		return fmt.Errorf("user email is required")
	}
	if u.CurrentArea == "" {
		return fmt.Errorf("current area must default to %q", AreaUnknown)
	}

	return nil
}

// InSquad reports whether the user holds a squad reference. The reference
// may still be dangling; reconciliation clears it when the squad document
// turns out to be gone.
func (u User) InSquad() bool {
	return u.SquadID != nil && *u.SquadID != ""
}
