package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/store"
)

type SquadRepository struct {
	store *Store
}

func (r *SquadRepository) GetByID(_ context.Context, id string) (squad.Squad, bool, error) {
	var (
		s  squad.Squad
		ok bool
	)
	r.store.read(func() {
		s, ok = r.store.squads[id]
	})
	if !ok {
		return squad.Squad{}, false, nil
	}

	return cloneSquad(s), true, nil
}

func (r *SquadRepository) GetInvite(_ context.Context, id string) (squad.Invite, bool, error) {
	var (
		inv squad.Invite
		ok  bool
	)
	r.store.read(func() {
		inv, ok = r.store.invites[id]
	})
	if !ok {
		return squad.Invite{}, false, nil
	}

	return inv, true, nil
}

func (r *SquadRepository) FindPendingInvite(_ context.Context, senderID, recipientID, squadID string) (squad.Invite, bool, error) {
	var (
		found squad.Invite
		ok    bool
	)
	r.store.read(func() {
		found, ok = r.findPendingLocked(senderID, recipientID, squadID)
	})
	if !ok {
		return squad.Invite{}, false, nil
	}

	return found, true, nil
}

func (r *SquadRepository) ListInvitesByRecipient(_ context.Context, recipientID string) ([]squad.Invite, error) {
	var out []squad.Invite
	r.store.read(func() {
		out = r.invitesForLocked(recipientID)
	})

	return out, nil
}

func (r *SquadRepository) CreateSquadAndInvite(_ context.Context, s squad.Squad, inv squad.Invite) error {
	return r.store.commit(func() ([]string, error) {
		if _, exists := r.store.squads[s.ID]; exists {
			return nil, fmt.Errorf("squad %s already exists", s.ID)
		}
		sender, ok := r.store.users[inv.SenderID]
		if !ok {
			return nil, fmt.Errorf("sender %s not found", inv.SenderID)
		}
		if _, dup := r.findPendingLocked(inv.SenderID, inv.RecipientID, inv.SquadID); dup {
			return nil, squad.ErrInviteExists
		}

		r.store.squads[s.ID] = cloneSquad(s)
		squadID := s.ID
		sender.SquadID = &squadID
		r.store.users[inv.SenderID] = sender
		r.store.invites[inv.ID] = inv

		return []string{
			topicSquad(s.ID),
			topicUser(inv.SenderID),
			topicInvitesTo(inv.RecipientID),
		}, nil
	})
}

func (r *SquadRepository) CreateInvite(_ context.Context, inv squad.Invite) error {
	return r.store.commit(func() ([]string, error) {
		if _, ok := r.store.squads[inv.SquadID]; !ok {
			return nil, squad.ErrSquadMissing
		}
		if _, dup := r.findPendingLocked(inv.SenderID, inv.RecipientID, inv.SquadID); dup {
			return nil, squad.ErrInviteExists
		}

		r.store.invites[inv.ID] = inv

		return []string{topicInvitesTo(inv.RecipientID)}, nil
	})
}

func (r *SquadRepository) DeleteInvite(_ context.Context, id string) error {
	return r.store.commit(func() ([]string, error) {
		inv, ok := r.store.invites[id]
		if !ok {
			return nil, nil
		}

		delete(r.store.invites, id)

		return []string{topicInvitesTo(inv.RecipientID)}, nil
	})
}

func (r *SquadRepository) JoinFromInvite(_ context.Context, inv squad.Invite) error {
	return r.store.commit(func() ([]string, error) {
		stored, ok := r.store.invites[inv.ID]
		if !ok {
			return nil, squad.ErrSquadMissing
		}

		s, squadOK := r.store.squads[stored.SquadID]
		if !squadOK {
			// Squad vanished under the invite: consume the invite so the
			// recipient is not re-prompted, report the squad as gone.
			delete(r.store.invites, inv.ID)

			return []string{topicInvitesTo(stored.RecipientID)}, squad.ErrSquadMissing
		}

		recipient, userOK := r.store.users[stored.RecipientID]
		if !userOK {
			return nil, fmt.Errorf("recipient %s not found", stored.RecipientID)
		}

		if !s.HasMember(stored.RecipientID) {
			s.MemberIDs = append(cloneMembers(s.MemberIDs), stored.RecipientID)
		}
		r.store.squads[s.ID] = s

		squadID := s.ID
		recipient.SquadID = &squadID
		r.store.users[recipient.ID] = recipient

		delete(r.store.invites, inv.ID)

		return []string{
			topicSquad(s.ID),
			topicUser(recipient.ID),
			topicInvitesTo(recipient.ID),
		}, nil
	})
}

func (r *SquadRepository) RemoveMember(_ context.Context, squadID, userID string) error {
	return r.store.commit(func() ([]string, error) {
		s, ok := r.store.squads[squadID]
		if !ok {
			return nil, squad.ErrSquadMissing
		}
		if !s.HasMember(userID) {
			return nil, squad.ErrMemberMissing
		}

		members := cloneMembers(s.MemberIDs)
		members = slices.DeleteFunc(members, func(id string) bool { return id == userID })
		s.MemberIDs = members
		r.store.squads[squadID] = s

		if u, userOK := r.store.users[userID]; userOK {
			u.SquadID = nil
			r.store.users[userID] = u
		}

		return []string{topicSquad(squadID), topicUser(userID)}, nil
	})
}

func (r *SquadRepository) SetOwner(_ context.Context, squadID, ownerID string) error {
	return r.store.commit(func() ([]string, error) {
		s, ok := r.store.squads[squadID]
		if !ok {
			return nil, squad.ErrSquadMissing
		}
		if !s.HasMember(ownerID) {
			return nil, squad.ErrMemberMissing
		}

		s.OwnerID = ownerID
		r.store.squads[squadID] = s

		return []string{topicSquad(squadID)}, nil
	})
}

func (r *SquadRepository) DeleteAndDetach(_ context.Context, squadID string) error {
	return r.store.commit(func() ([]string, error) {
		s, ok := r.store.squads[squadID]
		if !ok {
			return nil, squad.ErrSquadMissing
		}

		topics := []string{topicSquad(squadID)}
		for _, memberID := range s.MemberIDs {
			if u, userOK := r.store.users[memberID]; userOK {
				u.SquadID = nil
				r.store.users[memberID] = u
				topics = append(topics, topicUser(memberID))
			}
		}
		delete(r.store.squads, squadID)

		return topics, nil
	})
}

func (r *SquadRepository) Watch(ctx context.Context, id string) (<-chan store.Snapshot[squad.Squad], error) {
	out := make(chan store.Snapshot[squad.Squad], 1)
	subID, ping := r.store.hub.subscribe(topicSquad(id))

	push := func() {
		var snap store.Snapshot[squad.Squad]
		r.store.read(func() {
			if s, ok := r.store.squads[id]; ok {
				snap = store.Snapshot[squad.Squad]{Value: cloneSquad(s), Exists: true}
			}
		})
		sendLatest(out, snap)
	}

	go func() {
		defer close(out)
		defer r.store.hub.unsubscribe(topicSquad(id), subID)

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping:
				push()
			}
		}
	}()

	return out, nil
}

func (r *SquadRepository) WatchInvitesByRecipient(ctx context.Context, recipientID string) (<-chan []squad.Invite, error) {
	out := make(chan []squad.Invite, 1)
	subID, ping := r.store.hub.subscribe(topicInvitesTo(recipientID))

	push := func() {
		var invites []squad.Invite
		r.store.read(func() {
			invites = r.invitesForLocked(recipientID)
		})
		sendLatest(out, invites)
	}

	go func() {
		defer close(out)
		defer r.store.hub.unsubscribe(topicInvitesTo(recipientID), subID)

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping:
				push()
			}
		}
	}()

	return out, nil
}

func (r *SquadRepository) findPendingLocked(senderID, recipientID, squadID string) (squad.Invite, bool) {
	for _, inv := range r.store.invites {
		if inv.SenderID == senderID && inv.RecipientID == recipientID && inv.SquadID == squadID {
			return inv, true
		}
	}
	return squad.Invite{}, false
}

func (r *SquadRepository) invitesForLocked(recipientID string) []squad.Invite {
	out := make([]squad.Invite, 0)
	for _, inv := range r.store.invites {
		if inv.RecipientID == recipientID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneSquad(s squad.Squad) squad.Squad {
	copied := s
	copied.MemberIDs = cloneMembers(s.MemberIDs)
	return copied
}

func cloneMembers(ids []string) []string {
	return append([]string(nil), ids...)
}
