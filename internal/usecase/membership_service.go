package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/id"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// SquadView is a squad with its member documents hydrated for rendering.
type SquadView struct {
	Squad   squad.Squad
	Members []user.User
}

// MembershipService drives the squad membership state machine. Every
// transition that touches more than one document goes through a composite
// repository method so the store applies it in a single commit.
type MembershipService struct {
	userRepo  user.Repository
	squadRepo squad.Repository
	idGen     id.Generator
	logger    *logging.Logger
	now       func() time.Time
}

func NewMembershipService(
	userRepo user.Repository,
	squadRepo squad.Repository,
	idGen id.Generator,
	logger *logging.Logger,
) *MembershipService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &MembershipService{
		userRepo:  userRepo,
		squadRepo: squadRepo,
		idGen:     idGen,
		logger:    logger,
		now:       time.Now,
	}
}

// SendInvite invites the user behind recipientEmail into the sender's squad.
// A squadless sender gets a fresh singleton squad in the same commit that
// records the invite.
func (s *MembershipService) SendInvite(ctx context.Context, senderID, recipientEmail string) (squad.Invite, error) {
	ctx, span := startSpan(ctx, "MembershipService.SendInvite")
	defer span.End()

	senderID = strings.TrimSpace(senderID)
	recipientEmail = user.NormalizeEmail(recipientEmail)
	if senderID == "" {
		return squad.Invite{}, fmt.Errorf("%w: sender id is required", ErrInvalidInput)
	}
	if recipientEmail == "" {
		return squad.Invite{}, fmt.Errorf("%w: recipient email is required", ErrInvalidInput)
	}

	sender, exists, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return squad.Invite{}, fmt.Errorf("get sender: %w", err)
	}
	if !exists {
		return squad.Invite{}, fmt.Errorf("%w: sender=%s", ErrNotFound, senderID)
	}

	recipient, exists, err := s.userRepo.GetByEmail(ctx, recipientEmail)
	if err != nil {
		return squad.Invite{}, fmt.Errorf("get recipient by email: %w", err)
	}
	if !exists {
		return squad.Invite{}, fmt.Errorf("%w: no user with that email", ErrNotFound)
	}
	if recipient.ID == sender.ID {
		return squad.Invite{}, fmt.Errorf("%w: cannot invite yourself", ErrSelfReference)
	}

	sender, err = s.reconcile(ctx, sender)
	if err != nil {
		return squad.Invite{}, err
	}

	now := s.now()

	if !sender.InSquad() {
		squadID, err := s.idGen.NewID()
		if err != nil {
			return squad.Invite{}, fmt.Errorf("new squad id: %w", err)
		}
		inv, err := s.buildInvite(sender, recipient.ID, squadID, now)
		if err != nil {
			return squad.Invite{}, err
		}

		founded := squad.NewSingleton(squadID, sender.ID, now)
		if err := s.squadRepo.CreateSquadAndInvite(ctx, founded, inv); err != nil {
			if errors.Is(err, squad.ErrInviteExists) {
				return squad.Invite{}, fmt.Errorf("%w: recipient=%s", ErrDuplicateInvite, recipient.ID)
			}
			return squad.Invite{}, fmt.Errorf("create squad and invite: %w", err)
		}

		s.logger.InfoContext(ctx, "squad founded by invite", "squadId", squadID, "senderId", sender.ID)

		return inv, nil
	}

	squadID := *sender.SquadID
	current, exists, err := s.squadRepo.GetByID(ctx, squadID)
	if err != nil {
		return squad.Invite{}, fmt.Errorf("get squad: %w", err)
	}
	if exists && current.HasMember(recipient.ID) {
		return squad.Invite{}, fmt.Errorf("%w: recipient=%s", ErrAlreadyMember, recipient.ID)
	}

	if _, pending, err := s.squadRepo.FindPendingInvite(ctx, sender.ID, recipient.ID, squadID); err != nil {
		return squad.Invite{}, fmt.Errorf("find pending invite: %w", err)
	} else if pending {
		return squad.Invite{}, fmt.Errorf("%w: recipient=%s", ErrDuplicateInvite, recipient.ID)
	}

	inv, err := s.buildInvite(sender, recipient.ID, squadID, now)
	if err != nil {
		return squad.Invite{}, err
	}
	if err := s.squadRepo.CreateInvite(ctx, inv); err != nil {
		switch {
		case errors.Is(err, squad.ErrInviteExists):
			return squad.Invite{}, fmt.Errorf("%w: recipient=%s", ErrDuplicateInvite, recipient.ID)
		case errors.Is(err, squad.ErrSquadMissing):
			// The squad vanished between reconcile and commit. Treat the
			// sender as squadless again rather than half-fixing here.
			return squad.Invite{}, fmt.Errorf("%w: squad=%s", ErrNotFound, squadID)
		default:
			return squad.Invite{}, fmt.Errorf("create invite: %w", err)
		}
	}

	return inv, nil
}

// AcceptInvite joins the recipient to the inviting squad, consuming the
// invite. Stale invites self-heal: they are consumed even when acceptance
// cannot proceed.
func (s *MembershipService) AcceptInvite(ctx context.Context, recipientID, inviteID string) (squad.Squad, error) {
	ctx, span := startSpan(ctx, "MembershipService.AcceptInvite")
	defer span.End()

	recipientID = strings.TrimSpace(recipientID)
	inviteID = strings.TrimSpace(inviteID)
	if recipientID == "" || inviteID == "" {
		return squad.Squad{}, fmt.Errorf("%w: recipient id and invite id are required", ErrInvalidInput)
	}

	inv, exists, err := s.squadRepo.GetInvite(ctx, inviteID)
	if err != nil {
		return squad.Squad{}, fmt.Errorf("get invite: %w", err)
	}
	if !exists {
		return squad.Squad{}, fmt.Errorf("%w: invite=%s", ErrNotFound, inviteID)
	}
	if inv.RecipientID != recipientID {
		return squad.Squad{}, fmt.Errorf("%w: invite belongs to another user", ErrForbidden)
	}

	recipient, exists, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return squad.Squad{}, fmt.Errorf("get recipient: %w", err)
	}
	if !exists {
		return squad.Squad{}, fmt.Errorf("%w: user=%s", ErrNotFound, recipientID)
	}

	recipient, err = s.reconcile(ctx, recipient)
	if err != nil {
		return squad.Squad{}, err
	}
	if recipient.InSquad() {
		if *recipient.SquadID == inv.SquadID {
			// Already joined (e.g. through another invite). Consume quietly.
			if err := s.squadRepo.DeleteInvite(ctx, inv.ID); err != nil {
				return squad.Squad{}, fmt.Errorf("delete redundant invite: %w", err)
			}
			current, _, err := s.squadRepo.GetByID(ctx, inv.SquadID)
			if err != nil {
				return squad.Squad{}, fmt.Errorf("get squad: %w", err)
			}
			return current, nil
		}

		if err := s.squadRepo.DeleteInvite(ctx, inv.ID); err != nil {
			return squad.Squad{}, fmt.Errorf("delete stale invite: %w", err)
		}
		return squad.Squad{}, fmt.Errorf("%w: leave your current squad first", ErrAlreadyInSquad)
	}

	if err := s.squadRepo.JoinFromInvite(ctx, inv); err != nil {
		if errors.Is(err, squad.ErrSquadMissing) {
			// Squad deleted while the invite sat in the inbox; the commit
			// already consumed the invite.
			return squad.Squad{}, fmt.Errorf("%w: squad no longer exists", ErrNotFound)
		}
		return squad.Squad{}, fmt.Errorf("join from invite: %w", err)
	}

	joined, exists, err := s.squadRepo.GetByID(ctx, inv.SquadID)
	if err != nil {
		return squad.Squad{}, fmt.Errorf("get squad: %w", err)
	}
	if !exists {
		return squad.Squad{}, fmt.Errorf("%w: squad=%s", ErrNotFound, inv.SquadID)
	}

	s.logger.InfoContext(ctx, "invite accepted", "squadId", inv.SquadID, "userId", recipientID)

	return joined, nil
}

// DeclineInvite deletes the invite. Declining leaves no trace; the sender
// may invite again.
func (s *MembershipService) DeclineInvite(ctx context.Context, recipientID, inviteID string) error {
	ctx, span := startSpan(ctx, "MembershipService.DeclineInvite")
	defer span.End()

	recipientID = strings.TrimSpace(recipientID)
	inviteID = strings.TrimSpace(inviteID)
	if recipientID == "" || inviteID == "" {
		return fmt.Errorf("%w: recipient id and invite id are required", ErrInvalidInput)
	}

	inv, exists, err := s.squadRepo.GetInvite(ctx, inviteID)
	if err != nil {
		return fmt.Errorf("get invite: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: invite=%s", ErrNotFound, inviteID)
	}
	if inv.RecipientID != recipientID {
		return fmt.Errorf("%w: invite belongs to another user", ErrForbidden)
	}

	if err := s.squadRepo.DeleteInvite(ctx, inviteID); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}

	return nil
}

// RemoveMember is the owner kicking someone out. Owners cannot remove
// themselves; that path is LeaveSquad.
func (s *MembershipService) RemoveMember(ctx context.Context, actorID, targetID string) error {
	ctx, span := startSpan(ctx, "MembershipService.RemoveMember")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	targetID = strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return fmt.Errorf("%w: actor id and target id are required", ErrInvalidInput)
	}
	if actorID == targetID {
		return fmt.Errorf("%w: use leave to exit your own squad", ErrSelfReference)
	}

	current, err := s.requireOwnedSquad(ctx, actorID)
	if err != nil {
		return err
	}
	if !current.HasMember(targetID) {
		return fmt.Errorf("%w: user is not a member", ErrNotFound)
	}

	if err := s.squadRepo.RemoveMember(ctx, current.ID, targetID); err != nil {
		if errors.Is(err, squad.ErrMemberMissing) {
			return fmt.Errorf("%w: user is not a member", ErrNotFound)
		}
		return fmt.Errorf("remove member: %w", err)
	}

	s.logger.InfoContext(ctx, "member removed", "squadId", current.ID, "targetId", targetID, "actorId", actorID)

	return nil
}

// PromoteToOwner transfers ownership to another member.
func (s *MembershipService) PromoteToOwner(ctx context.Context, actorID, targetID string) error {
	ctx, span := startSpan(ctx, "MembershipService.PromoteToOwner")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	targetID = strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return fmt.Errorf("%w: actor id and target id are required", ErrInvalidInput)
	}
	if actorID == targetID {
		return fmt.Errorf("%w: you already own this squad", ErrSelfReference)
	}

	current, err := s.requireOwnedSquad(ctx, actorID)
	if err != nil {
		return err
	}
	if !current.HasMember(targetID) {
		return fmt.Errorf("%w: user is not a member", ErrNotFound)
	}

	if err := s.squadRepo.SetOwner(ctx, current.ID, targetID); err != nil {
		if errors.Is(err, squad.ErrMemberMissing) {
			return fmt.Errorf("%w: user is not a member", ErrNotFound)
		}
		return fmt.Errorf("set owner: %w", err)
	}

	s.logger.InfoContext(ctx, "ownership transferred", "squadId", current.ID, "newOwnerId", targetID)

	return nil
}

// LeaveSquad removes the actor from their squad. An owner with remaining
// members must promote someone first; a sole owner's squad is deleted.
func (s *MembershipService) LeaveSquad(ctx context.Context, actorID string) error {
	ctx, span := startSpan(ctx, "MembershipService.LeaveSquad")
	defer span.End()

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}

	actor, exists, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: user=%s", ErrNotFound, actorID)
	}

	actor, err = s.reconcile(ctx, actor)
	if err != nil {
		return err
	}
	if !actor.InSquad() {
		return fmt.Errorf("%w: not in a squad", ErrNotFound)
	}

	current, exists, err := s.squadRepo.GetByID(ctx, *actor.SquadID)
	if err != nil {
		return fmt.Errorf("get squad: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: not in a squad", ErrNotFound)
	}

	if current.OwnerID == actorID {
		if len(current.MemberIDs) > 1 {
			return fmt.Errorf("%w: promote another member first", ErrOwnerMustTransferFirst)
		}
		if err := s.squadRepo.DeleteAndDetach(ctx, current.ID); err != nil {
			return fmt.Errorf("delete squad: %w", err)
		}
		s.logger.InfoContext(ctx, "squad dissolved", "squadId", current.ID, "ownerId", actorID)

		return nil
	}

	if err := s.squadRepo.RemoveMember(ctx, current.ID, actorID); err != nil {
		return fmt.Errorf("leave squad: %w", err)
	}

	return nil
}

// GetSquad returns the user's squad with member documents hydrated. Users
// without a squad get ErrNotFound.
func (s *MembershipService) GetSquad(ctx context.Context, userID string) (SquadView, error) {
	ctx, span := startSpan(ctx, "MembershipService.GetSquad")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return SquadView{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	u, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return SquadView{}, fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return SquadView{}, fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	u, err = s.reconcile(ctx, u)
	if err != nil {
		return SquadView{}, err
	}
	if !u.InSquad() {
		return SquadView{}, fmt.Errorf("%w: not in a squad", ErrNotFound)
	}

	current, exists, err := s.squadRepo.GetByID(ctx, *u.SquadID)
	if err != nil {
		return SquadView{}, fmt.Errorf("get squad: %w", err)
	}
	if !exists {
		return SquadView{}, fmt.Errorf("%w: not in a squad", ErrNotFound)
	}

	members, err := s.userRepo.ListByIDs(ctx, current.MemberIDs)
	if err != nil {
		return SquadView{}, fmt.Errorf("list members: %w", err)
	}

	return SquadView{Squad: current, Members: members}, nil
}

// ListInvites returns the recipient's pending invites, oldest first.
func (s *MembershipService) ListInvites(ctx context.Context, recipientID string) ([]squad.Invite, error) {
	ctx, span := startSpan(ctx, "MembershipService.ListInvites")
	defer span.End()

	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient id is required", ErrInvalidInput)
	}

	invites, err := s.squadRepo.ListInvitesByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	return invites, nil
}

// Reconcile clears a dangling squad reference on the user document and
// returns the repaired user.
func (s *MembershipService) Reconcile(ctx context.Context, userID string) (user.User, error) {
	ctx, span := startSpan(ctx, "MembershipService.Reconcile")
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

	return s.reconcile(ctx, u)
}

func (s *MembershipService) reconcile(ctx context.Context, u user.User) (user.User, error) {
	if !u.InSquad() {
		return u, nil
	}

	_, exists, err := s.squadRepo.GetByID(ctx, *u.SquadID)
	if err != nil {
		return user.User{}, fmt.Errorf("get squad: %w", err)
	}
	if exists {
		return u, nil
	}

	s.logger.WarnContext(ctx, "clearing dangling squad reference", "userId", u.ID, "squadId", *u.SquadID)
	if err := s.userRepo.ClearSquad(ctx, u.ID); err != nil {
		return user.User{}, fmt.Errorf("clear squad reference: %w", err)
	}
	u.SquadID = nil

	return u, nil
}

func (s *MembershipService) requireOwnedSquad(ctx context.Context, actorID string) (squad.Squad, error) {
	actor, exists, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return squad.Squad{}, fmt.Errorf("get actor: %w", err)
	}
	if !exists {
		return squad.Squad{}, fmt.Errorf("%w: user=%s", ErrNotFound, actorID)
	}

	actor, err = s.reconcile(ctx, actor)
	if err != nil {
		return squad.Squad{}, err
	}
	if !actor.InSquad() {
		return squad.Squad{}, fmt.Errorf("%w: not in a squad", ErrNotFound)
	}

	current, exists, err := s.squadRepo.GetByID(ctx, *actor.SquadID)
	if err != nil {
		return squad.Squad{}, fmt.Errorf("get squad: %w", err)
	}
	if !exists {
		return squad.Squad{}, fmt.Errorf("%w: not in a squad", ErrNotFound)
	}
	if current.OwnerID != actorID {
		return squad.Squad{}, fmt.Errorf("%w: only the owner can do that", ErrForbidden)
	}

	return current, nil
}

func (s *MembershipService) buildInvite(sender user.User, recipientID, squadID string, now time.Time) (squad.Invite, error) {
	inviteID, err := s.idGen.NewID()
	if err != nil {
		return squad.Invite{}, fmt.Errorf("new invite id: %w", err)
	}

	inv := squad.Invite{
		ID:              inviteID,
		SquadID:         squadID,
		SenderID:        sender.ID,
		RecipientID:     recipientID,
		SenderName:      sender.DisplayName,
		SenderAvatarURL: sender.AvatarURL,
		CreatedAt:       now,
	}
	if err := inv.ValidateBasic(); err != nil {
		return squad.Invite{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return inv, nil
}
