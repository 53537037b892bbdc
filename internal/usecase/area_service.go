package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/platform/id"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// AreaService manages the drawn festival areas. Mutations sit behind the
// developer passcode gate at the transport layer; the service itself does
// not know about the gate.
type AreaService struct {
	areaRepo area.Repository
	idGen    id.Generator
	logger   *logging.Logger
	now      func() time.Time
}

func NewAreaService(areaRepo area.Repository, idGen id.Generator, logger *logging.Logger) *AreaService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &AreaService{
		areaRepo: areaRepo,
		idGen:    idGen,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AreaService) CreateArea(ctx context.Context, name string, polygon geo.Polygon) (area.Area, error) {
	ctx, span := startSpan(ctx, "AreaService.CreateArea")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return area.Area{}, fmt.Errorf("%w: area name is required", ErrInvalidInput)
	}
	if len(polygon) < area.MinVertices {
		return area.Area{}, fmt.Errorf("%w: polygon needs at least %d points", ErrInvalidInput, area.MinVertices)
	}

	areaID, err := s.idGen.NewID()
	if err != nil {
		return area.Area{}, fmt.Errorf("new area id: %w", err)
	}

	now := s.now()
	a := area.Area{
		ID:        areaID,
		Name:      name,
		Polygon:   append(geo.Polygon(nil), polygon...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.ValidateBasic(); err != nil {
		return area.Area{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.areaRepo.Create(ctx, a); err != nil {
		return area.Area{}, fmt.Errorf("create area: %w", err)
	}

	s.logger.InfoContext(ctx, "area created", "areaId", areaID, "name", name)

	return a, nil
}

func (s *AreaService) RenameArea(ctx context.Context, areaID, name string) (area.Area, error) {
	ctx, span := startSpan(ctx, "AreaService.RenameArea")
	defer span.End()

	areaID = strings.TrimSpace(areaID)
	name = strings.TrimSpace(name)
	if areaID == "" {
		return area.Area{}, fmt.Errorf("%w: area id is required", ErrInvalidInput)
	}
	if name == "" {
		return area.Area{}, fmt.Errorf("%w: area name is required", ErrInvalidInput)
	}

	_, exists, err := s.areaRepo.GetByID(ctx, areaID)
	if err != nil {
		return area.Area{}, fmt.Errorf("get area: %w", err)
	}
	if !exists {
		return area.Area{}, fmt.Errorf("%w: area=%s", ErrNotFound, areaID)
	}

	if err := s.areaRepo.Rename(ctx, areaID, name); err != nil {
		return area.Area{}, fmt.Errorf("rename area: %w", err)
	}

	renamed, _, err := s.areaRepo.GetByID(ctx, areaID)
	if err != nil {
		return area.Area{}, fmt.Errorf("get area: %w", err)
	}

	return renamed, nil
}

func (s *AreaService) DeleteArea(ctx context.Context, areaID string) error {
	ctx, span := startSpan(ctx, "AreaService.DeleteArea")
	defer span.End()

	areaID = strings.TrimSpace(areaID)
	if areaID == "" {
		return fmt.Errorf("%w: area id is required", ErrInvalidInput)
	}

	_, exists, err := s.areaRepo.GetByID(ctx, areaID)
	if err != nil {
		return fmt.Errorf("get area: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: area=%s", ErrNotFound, areaID)
	}

	if err := s.areaRepo.Delete(ctx, areaID); err != nil {
		return fmt.Errorf("delete area: %w", err)
	}

	s.logger.InfoContext(ctx, "area deleted", "areaId", areaID)

	return nil
}

// ListAreas returns areas in creation order. Geofence resolution picks the
// first containing area, so the order is part of the contract.
func (s *AreaService) ListAreas(ctx context.Context) ([]area.Area, error) {
	ctx, span := startSpan(ctx, "AreaService.ListAreas")
	defer span.End()

	areas, err := s.areaRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}

	return areas, nil
}
