package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// PresenceMirror pushes the latest resolved position to a shared cache so
// other instances can read it without hitting the document store. Failures
// are logged and swallowed; the store remains the source of truth.
type PresenceMirror interface {
	SetPosition(ctx context.Context, userID string, p geo.Point, areaName string) error
}

// LocationService resolves position fixes against the drawn areas and
// records the result on the user document.
type LocationService struct {
	userRepo user.Repository
	areaRepo area.Repository
	presence PresenceMirror
	logger   *logging.Logger
}

func NewLocationService(
	userRepo user.Repository,
	areaRepo area.Repository,
	presence PresenceMirror,
	logger *logging.Logger,
) *LocationService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &LocationService{
		userRepo: userRepo,
		areaRepo: areaRepo,
		presence: presence,
		logger:   logger,
	}
}

// UpdatePosition records a fix. The containing area (first match in
// creation order) becomes CurrentArea; LastKnownArea only advances when the
// fix landed inside a named area.
func (s *LocationService) UpdatePosition(ctx context.Context, userID string, p geo.Point) (user.User, error) {
	ctx, span := startSpan(ctx, "LocationService.UpdatePosition")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	u, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return user.User{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	areas, err := s.areaRepo.List(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("list areas: %w", err)
	}

	currentArea := user.AreaUnknown
	lastKnown := u.LastKnownArea
	if idx := geo.Locate(p, polygons(areas)); idx >= 0 {
		currentArea = areas[idx].Name
		lastKnown = areas[idx].Name
	}

	if err := s.userRepo.SetPosition(ctx, userID, p, currentArea, lastKnown); err != nil {
		return user.User{}, fmt.Errorf("set position: %w", err)
	}

	s.mirror(ctx, userID, p, currentArea)

	u.Location = &geo.Point{X: p.X, Y: p.Y}
	u.CurrentArea = currentArea
	u.LastKnownArea = lastKnown

	return u, nil
}

// CheckIn places the user at the centroid of a named area, regardless of
// whether simulated GPS is on.
func (s *LocationService) CheckIn(ctx context.Context, userID, areaID string) (user.User, error) {
	ctx, span := startSpan(ctx, "LocationService.CheckIn")
	defer span.End()

	userID = strings.TrimSpace(userID)
	areaID = strings.TrimSpace(areaID)
	if userID == "" || areaID == "" {
		return user.User{}, fmt.Errorf("%w: user id and area id are required", ErrInvalidInput)
	}

	u, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return user.User{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	target, exists, err := s.areaRepo.GetByID(ctx, areaID)
	if err != nil {
		return user.User{}, fmt.Errorf("get area: %w", err)
	}
	if !exists {
		return user.User{}, fmt.Errorf("%w: area=%s", ErrNotFound, areaID)
	}

	center := target.Polygon.Centroid()
	if err := s.userRepo.SetPosition(ctx, userID, center, target.Name, target.Name); err != nil {
		return user.User{}, fmt.Errorf("set position: %w", err)
	}

	s.mirror(ctx, userID, center, target.Name)

	u.Location = &geo.Point{X: center.X, Y: center.Y}
	u.CurrentArea = target.Name
	u.LastKnownArea = target.Name

	return u, nil
}

// SetUseGPS toggles the simulated GPS feed. Turning it off leaves the last
// recorded position in place.
func (s *LocationService) SetUseGPS(ctx context.Context, userID string, enabled bool) error {
	ctx, span := startSpan(ctx, "LocationService.SetUseGPS")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	_, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	if err := s.userRepo.SetUseGPS(ctx, userID, enabled); err != nil {
		return fmt.Errorf("set use gps: %w", err)
	}

	return nil
}

func (s *LocationService) mirror(ctx context.Context, userID string, p geo.Point, areaName string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetPosition(ctx, userID, p, areaName); err != nil {
		s.logger.WarnContext(ctx, "presence mirror write failed", "userId", userID, "error", err)
	}
}

func polygons(areas []area.Area) []geo.Polygon {
	out := make([]geo.Polygon, len(areas))
	for i, a := range areas {
		out[i] = a.Polygon
	}
	return out
}
