package usecase

import "errors"

// User-facing failure taxonomy. Every operation either completes fully or
// surfaces exactly one of these (wrapped with detail); no partial mutation
// persists on failure and nothing is retried automatically.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: actor lacks the required role, e.g. a non-owner
	// attempting an owner-only squad action.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfReference: inviting or removing yourself.
	ErrSelfReference = errors.New("cannot target yourself")
	// ErrAlreadyMember: the invite recipient is already in the sender's squad.
	ErrAlreadyMember = errors.New("recipient is already in your squad")
	// ErrAlreadyInSquad: the recipient belongs to a different squad.
	ErrAlreadyInSquad = errors.New("already in another squad")
	ErrDuplicateInvite = errors.New("an invite to this user is already pending")
	// ErrOwnerMustTransferFirst: an owner with remaining members must promote
	// someone (or remove everyone) before leaving.
	ErrOwnerMustTransferFirst = errors.New("owner must transfer ownership before leaving")
)
