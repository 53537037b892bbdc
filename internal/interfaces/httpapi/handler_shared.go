package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/logging"
	"github.com/herdsearch/herd-search/internal/usecase"
)

type Handler struct {
	profileService    *usecase.ProfileService
	membershipService *usecase.MembershipService
	locationService   *usecase.LocationService
	areaService       *usecase.AreaService
	watchService      *usecase.WatchService
	simulator         *usecase.Simulator
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	profileService *usecase.ProfileService,
	membershipService *usecase.MembershipService,
	locationService *usecase.LocationService,
	areaService *usecase.AreaService,
	watchService *usecase.WatchService,
	simulator *usecase.Simulator,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		profileService:    profileService,
		membershipService: membershipService,
		locationService:   locationService,
		areaService:       areaService,
		watchService:      watchService,
		simulator:         simulator,
		logger:            logger,
		validator:         validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type updateSettingsRequest struct {
	UseGPS *bool `json:"useGps" validate:"required"`
}

type reportPositionRequest struct {
	X *float64 `json:"x" validate:"required,gte=0,lte=1"`
	Y *float64 `json:"y" validate:"required,gte=0,lte=1"`
}

type checkInRequest struct {
	AreaID string `json:"areaId" validate:"required"`
}

type sendInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type upsertAreaRequest struct {
	Name    string     `json:"name" validate:"required,max=100"`
	Polygon []pointDTO `json:"polygon" validate:"required,min=3,dive"`
}

type pointDTO struct {
	X float64 `json:"x" validate:"gte=0,lte=1"`
	Y float64 `json:"y" validate:"gte=0,lte=1"`
}

type userDTO struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Email         string    `json:"email"`
	Location      *pointDTO `json:"location,omitempty"`
	CurrentArea   string    `json:"currentArea"`
	LastKnownArea string    `json:"lastKnownArea,omitempty"`
	UseGPS        bool      `json:"useGps"`
	SquadID       *string   `json:"squadId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type squadDTO struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type squadViewDTO struct {
	Squad   squadDTO  `json:"squad"`
	Members []userDTO `json:"members"`
}

type inviteDTO struct {
	ID              string    `json:"id"`
	SquadID         string    `json:"squadId"`
	SenderID        string    `json:"senderId"`
	RecipientID     string    `json:"recipientId"`
	SenderName      string    `json:"senderName"`
	SenderAvatarURL string    `json:"senderAvatarUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type areaDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Polygon   []pointDTO `json:"polygon"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type sessionViewDTO struct {
	Me      userDTO     `json:"me"`
	Squad   *squadDTO   `json:"squad,omitempty"`
	Members []userDTO   `json:"members,omitempty"`
	Invites []inviteDTO `json:"invites"`
	Areas   []areaDTO   `json:"areas"`
}

type simulatorStatusDTO struct {
	Running bool `json:"running"`
}

func pointToDTO(p geo.Point) pointDTO {
	return pointDTO{X: p.X, Y: p.Y}
}

func polygonFromDTO(points []pointDTO) geo.Polygon {
	poly := make(geo.Polygon, 0, len(points))
	for _, p := range points {
		poly = append(poly, geo.Point{X: p.X, Y: p.Y})
	}
	return poly
}

func userToDTO(ctx context.Context, v user.User) userDTO {
	ctx, span := startSpan(ctx, "httpapi.userToDTO")
	defer span.End()

	dto := userDTO{
		ID:            v.ID,
		DisplayName:   v.DisplayName,
		AvatarURL:     v.AvatarURL,
		Email:         v.Email,
		CurrentArea:   v.CurrentArea,
		LastKnownArea: v.LastKnownArea,
		UseGPS:        v.UseGPS,
		SquadID:       v.SquadID,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if v.Location != nil {
		p := pointToDTO(*v.Location)
		dto.Location = &p
	}

	return dto
}

func squadToDTO(ctx context.Context, v squad.Squad) squadDTO {
	ctx, span := startSpan(ctx, "httpapi.squadToDTO")
	defer span.End()

	return squadDTO{
		ID:        v.ID,
		OwnerID:   v.OwnerID,
		MemberIDs: v.MemberIDs,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func squadViewToDTO(ctx context.Context, v usecase.SquadView) squadViewDTO {
	ctx, span := startSpan(ctx, "httpapi.squadViewToDTO")
	defer span.End()

	members := make([]userDTO, 0, len(v.Members))
	for _, m := range v.Members {
		members = append(members, userToDTO(ctx, m))
	}

	return squadViewDTO{
		Squad:   squadToDTO(ctx, v.Squad),
		Members: members,
	}
}

func inviteToDTO(ctx context.Context, v squad.Invite) inviteDTO {
	ctx, span := startSpan(ctx, "httpapi.inviteToDTO")
	defer span.End()

	return inviteDTO{
		ID:              v.ID,
		SquadID:         v.SquadID,
		SenderID:        v.SenderID,
		RecipientID:     v.RecipientID,
		SenderName:      v.SenderName,
		SenderAvatarURL: v.SenderAvatarURL,
		CreatedAt:       v.CreatedAt,
	}
}

func areaToDTO(ctx context.Context, v area.Area) areaDTO {
	ctx, span := startSpan(ctx, "httpapi.areaToDTO")
	defer span.End()

	polygon := make([]pointDTO, 0, len(v.Polygon))
	for _, p := range v.Polygon {
		polygon = append(polygon, pointToDTO(p))
	}

	return areaDTO{
		ID:        v.ID,
		Name:      v.Name,
		Polygon:   polygon,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func sessionViewToDTO(ctx context.Context, v usecase.SessionView) sessionViewDTO {
	ctx, span := startSpan(ctx, "httpapi.sessionViewToDTO")
	defer span.End()

	dto := sessionViewDTO{
		Me:      userToDTO(ctx, v.Me),
		Invites: make([]inviteDTO, 0, len(v.Invites)),
		Areas:   make([]areaDTO, 0, len(v.Areas)),
	}
	if v.Squad != nil {
		s := squadToDTO(ctx, *v.Squad)
		dto.Squad = &s
		dto.Members = make([]userDTO, 0, len(v.Members))
		for _, m := range v.Members {
			dto.Members = append(dto.Members, userToDTO(ctx, m))
		}
	}
	for _, inv := range v.Invites {
		dto.Invites = append(dto.Invites, inviteToDTO(ctx, inv))
	}
	for _, a := range v.Areas {
		dto.Areas = append(dto.Areas, areaToDTO(ctx, a))
	}

	return dto
}
