package squad

import (
	"fmt"
	"slices"
	"time"
)

// Squad is a group of users sharing location visibility. Exactly one member
// owns it; the owner id must always appear in the member set.
type Squad struct {
	ID        string
	OwnerID   string
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invite is a pending proposal from a squad member to another user. Its
// lifecycle is modeled by document existence: accept and decline both end in
// deletion, there is no status field. Sender name and avatar are denormalized
// so the recipient's inbox renders without a join.
type Invite struct {
	ID              string
	SquadID         string
	SenderID        string
	RecipientID     string
	SenderName      string
	SenderAvatarURL string
	CreatedAt       time.Time
}

// NewSingleton builds a squad whose founder is sole member and owner.
func NewSingleton(id, founderID string, now time.Time) Squad {
	return Squad{
		ID:        id,
		OwnerID:   founderID,
		MemberIDs: []string{founderID},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s Squad) ValidateBasic() error {
	if s.ID == "" {
		return fmt.Errorf("squad id is required")
	}
	if s.OwnerID == "" {
		return fmt.Errorf("squad owner id is required")
	}
	if !s.HasMember(s.OwnerID) {
		return fmt.Errorf("squad owner must be a member")
	}

	return nil
}

func (s Squad) HasMember(userID string) bool {
	return slices.Contains(s.MemberIDs, userID)
}

func (i Invite) ValidateBasic() error {
	if i.ID == "" {
		return fmt.Errorf("invite id is required")
	}
	if i.SquadID == "" {
		return fmt.Errorf("invite squad id is required")
	}
	if i.SenderID == "" || i.RecipientID == "" {
		return fmt.Errorf("invite sender and recipient are required")
	}
	if i.SenderID == i.RecipientID {
		return fmt.Errorf("invite sender and recipient must differ")
	}

	return nil
}
