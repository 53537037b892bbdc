package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// ProfileService owns the user document lifecycle: creation on first
// sign-in, refresh of identity-provider fields on later sightings, and
// squad-reference reconciliation on reads.
type ProfileService struct {
	userRepo   user.Repository
	membership *MembershipService
	logger     *logging.Logger
	now        func() time.Time
}

func NewProfileService(userRepo user.Repository, membership *MembershipService, logger *logging.Logger) *ProfileService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ProfileService{
		userRepo:   userRepo,
		membership: membership,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureUser makes the user document match the verified principal. First
// sighting creates it; later sightings refresh the provider-owned fields
// and repair any dangling squad reference.
func (s *ProfileService) EnsureUser(ctx context.Context, p user.Principal) (user.User, error) {
	ctx, span := startSpan(ctx, "ProfileService.EnsureUser")
	defer span.End()

	p.ID = strings.TrimSpace(p.ID)
	p.Email = user.NormalizeEmail(p.Email)
	if p.ID == "" {
		return user.User{}, fmt.Errorf("%w: principal id is required", ErrInvalidInput)
	}
	if p.Email == "" {
		return user.User{}, fmt.Errorf("%w: principal email is required", ErrInvalidInput)
	}

	existing, exists, err := s.userRepo.GetByID(ctx, p.ID)
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}

	if !exists {
		created := user.New(p, s.now())
		if err := created.ValidateBasic(); err != nil {
			return user.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err := s.userRepo.Create(ctx, created); err != nil {
			return user.User{}, fmt.Errorf("create user: %w", err)
		}
		s.logger.InfoContext(ctx, "user created on first sign-in", "userId", p.ID)

		return created, nil
	}

	if existing.DisplayName != p.DisplayName || existing.AvatarURL != p.AvatarURL || existing.Email != p.Email {
		if err := s.userRepo.UpdateProfile(ctx, p.ID, p.DisplayName, p.AvatarURL, p.Email); err != nil {
			return user.User{}, fmt.Errorf("update profile: %w", err)
		}
		existing.DisplayName = p.DisplayName
		existing.AvatarURL = p.AvatarURL
		existing.Email = p.Email
	}

	return s.membership.reconcile(ctx, existing)
}

// GetProfile reads the user document, repairing a dangling squad reference
// on the way out.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (user.User, error) {
	ctx, span := startSpan(ctx, "ProfileService.GetProfile")
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

	return s.membership.reconcile(ctx, u)
}
