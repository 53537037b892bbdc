package squad

import (
	"context"
	"errors"

	"github.com/herdsearch/herd-search/internal/domain/store"
)

// Precondition failures surfaced by the composite operations. They are
// detected inside the store's atomic commit, so a losing race reports the
// same way as a losing read-then-write.
var (
	// ErrInviteExists: a pending invite for the same sender, recipient and
	// squad already exists.
	ErrInviteExists = errors.New("invite already pending")
	// ErrSquadMissing: the referenced squad document no longer exists. For
	// JoinFromInvite the stale invite has already been deleted in the same
	// commit by the time this is returned.
	ErrSquadMissing = errors.New("squad no longer exists")
	// ErrMemberMissing: the target user is not in the squad's member set.
	ErrMemberMissing = errors.New("user is not a squad member")
)

// Repository describes squad and invite persistence. The multi-document
// transitions are composite methods so each one maps to a single
// all-or-nothing commit in the backing store; partial application is never
// visible to readers.
type Repository interface {
	GetByID(ctx context.Context, id string) (Squad, bool, error)

	GetInvite(ctx context.Context, id string) (Invite, bool, error)
	FindPendingInvite(ctx context.Context, senderID, recipientID, squadID string) (Invite, bool, error)
	ListInvitesByRecipient(ctx context.Context, recipientID string) ([]Invite, error)

	// CreateSquadAndInvite handles the squadless-sender invite path: it
	// creates the squad, points the sender's user document at it, and
	// records the invite in one commit. Fails with ErrInviteExists when an
	// equivalent invite raced in first.
	CreateSquadAndInvite(ctx context.Context, s Squad, inv Invite) error
	// CreateInvite records an invite against an existing squad, re-checking
	// the duplicate guard inside the commit (ErrInviteExists) and that the
	// squad still exists (ErrSquadMissing).
	CreateInvite(ctx context.Context, inv Invite) error
	DeleteInvite(ctx context.Context, id string) error

	// JoinFromInvite applies an acceptance: recipient added to the member
	// set, recipient's squad reference set, invite deleted, all in one commit.
	// When the squad vanished first, the invite is still consumed and
	// ErrSquadMissing is returned.
	JoinFromInvite(ctx context.Context, inv Invite) error
	// RemoveMember pulls a user from the member set and clears that user's
	// squad reference in one commit. Also the leave path for non-owners.
	RemoveMember(ctx context.Context, squadID, userID string) error
	// SetOwner transfers ownership; the new owner must already be a member
	// (ErrMemberMissing).
	SetOwner(ctx context.Context, squadID, ownerID string) error
	// DeleteAndDetach removes the squad document and clears the squad
	// reference of every remaining member in one commit. Used when the sole
	// member (the owner) leaves.
	DeleteAndDetach(ctx context.Context, squadID string) error

	Watch(ctx context.Context, id string) (<-chan store.Snapshot[Squad], error)
	// WatchInvitesByRecipient delivers the recipient's full pending-invite
	// set on every change.
	WatchInvitesByRecipient(ctx context.Context, recipientID string) (<-chan []Invite, error)
}
