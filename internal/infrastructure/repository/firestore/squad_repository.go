package firestore

import (
	"context"
	"sort"
	"time"

	fs "cloud.google.com/go/firestore"
	crerr "github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/store"
)

type squadDoc struct {
	ID        string    `firestore:"id"`
	OwnerID   string    `firestore:"ownerId"`
	MemberIDs []string  `firestore:"memberIds"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type inviteDoc struct {
	ID              string    `firestore:"id"`
	SquadID         string    `firestore:"squadId"`
	SenderID        string    `firestore:"senderId"`
	RecipientID     string    `firestore:"recipientId"`
	SenderName      string    `firestore:"senderName"`
	SenderAvatarURL string    `firestore:"senderAvatarUrl"`
	CreatedAt       time.Time `firestore:"createdAt"`
}

func toSquadDoc(s squad.Squad) squadDoc {
	return squadDoc{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		MemberIDs: append([]string(nil), s.MemberIDs...),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSquadDoc(doc squadDoc) squad.Squad {
	return squad.Squad{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		MemberIDs: doc.MemberIDs,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func toInviteDoc(inv squad.Invite) inviteDoc {
	return inviteDoc(inv)
}

func fromInviteDoc(doc inviteDoc) squad.Invite {
	return squad.Invite(doc)
}

type SquadRepository struct {
	store *Store
}

func (r *SquadRepository) GetByID(ctx context.Context, id string) (squad.Squad, bool, error) {
	snap, err := r.store.squads().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return squad.Squad{}, false, nil
		}
		return squad.Squad{}, false, wrapErr(err, "get squad")
	}

	var doc squadDoc
	if err := snap.DataTo(&doc); err != nil {
		return squad.Squad{}, false, crerr.Wrap(err, "decode squad")
	}

	return fromSquadDoc(doc), true, nil
}

func (r *SquadRepository) GetInvite(ctx context.Context, id string) (squad.Invite, bool, error) {
	snap, err := r.store.invites().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return squad.Invite{}, false, nil
		}
		return squad.Invite{}, false, wrapErr(err, "get invite")
	}

	var doc inviteDoc
	if err := snap.DataTo(&doc); err != nil {
		return squad.Invite{}, false, crerr.Wrap(err, "decode invite")
	}

	return fromInviteDoc(doc), true, nil
}

func (r *SquadRepository) FindPendingInvite(ctx context.Context, senderID, recipientID, squadID string) (squad.Invite, bool, error) {
	iter := r.pendingInviteQuery(senderID, recipientID, squadID).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return squad.Invite{}, false, nil
	}
	if err != nil {
		return squad.Invite{}, false, wrapErr(err, "query pending invite")
	}

	var doc inviteDoc
	if err := snap.DataTo(&doc); err != nil {
		return squad.Invite{}, false, crerr.Wrap(err, "decode invite")
	}

	return fromInviteDoc(doc), true, nil
}

func (r *SquadRepository) ListInvitesByRecipient(ctx context.Context, recipientID string) ([]squad.Invite, error) {
	iter := r.store.invites().Where("recipientId", "==", recipientID).Documents(ctx)
	defer iter.Stop()

	out := make([]squad.Invite, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapErr(err, "list invites")
		}
		var doc inviteDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, crerr.Wrap(err, "decode invite")
		}
		out = append(out, fromInviteDoc(doc))
	}
	sortInvites(out)

	return out, nil
}

func (r *SquadRepository) CreateSquadAndInvite(ctx context.Context, s squad.Squad, inv squad.Invite) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		// All reads happen before the first write.
		userSnap, err := tx.Get(r.store.users().Doc(inv.SenderID))
		if err != nil {
			return crerr.Wrap(err, "read sender")
		}
		dupIter := tx.Documents(r.pendingInviteQuery(inv.SenderID, inv.RecipientID, inv.SquadID))
		if _, err := dupIter.Next(); err != iterator.Done {
			if err == nil {
				return squad.ErrInviteExists
			}
			return crerr.Wrap(err, "check duplicate invite")
		}

		if err := tx.Create(r.store.squads().Doc(s.ID), toSquadDoc(s)); err != nil {
			return crerr.Wrap(err, "create squad")
		}
		if err := tx.Update(userSnap.Ref, []fs.Update{
			{Path: "squadId", Value: s.ID},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return crerr.Wrap(err, "point sender at squad")
		}
		if err := tx.Create(r.store.invites().Doc(inv.ID), toInviteDoc(inv)); err != nil {
			return crerr.Wrap(err, "create invite")
		}
		return nil
	})
	if crerr.Is(err, squad.ErrInviteExists) {
		return squad.ErrInviteExists
	}
	return wrapErr(err, "create squad and invite")
}

func (r *SquadRepository) CreateInvite(ctx context.Context, inv squad.Invite) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		if _, err := tx.Get(r.store.squads().Doc(inv.SquadID)); err != nil {
			if isNotFound(err) {
				return squad.ErrSquadMissing
			}
			return crerr.Wrap(err, "read squad")
		}
		dupIter := tx.Documents(r.pendingInviteQuery(inv.SenderID, inv.RecipientID, inv.SquadID))
		if _, err := dupIter.Next(); err != iterator.Done {
			if err == nil {
				return squad.ErrInviteExists
			}
			return crerr.Wrap(err, "check duplicate invite")
		}

		return tx.Create(r.store.invites().Doc(inv.ID), toInviteDoc(inv))
	})
	switch {
	case crerr.Is(err, squad.ErrInviteExists):
		return squad.ErrInviteExists
	case crerr.Is(err, squad.ErrSquadMissing):
		return squad.ErrSquadMissing
	}
	return wrapErr(err, "create invite")
}

func (r *SquadRepository) DeleteInvite(ctx context.Context, id string) error {
	_, err := r.store.invites().Doc(id).Delete(ctx)
	return wrapErr(err, "delete invite")
}

func (r *SquadRepository) JoinFromInvite(ctx context.Context, inv squad.Invite) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		inviteRef := r.store.invites().Doc(inv.ID)
		inviteSnap, err := tx.Get(inviteRef)
		if err != nil {
			if isNotFound(err) {
				return squad.ErrSquadMissing
			}
			return crerr.Wrap(err, "read invite")
		}
		var storedInvite inviteDoc
		if err := inviteSnap.DataTo(&storedInvite); err != nil {
			return crerr.Wrap(err, "decode invite")
		}

		squadRef := r.store.squads().Doc(storedInvite.SquadID)
		squadSnap, err := tx.Get(squadRef)
		if err != nil && !isNotFound(err) {
			return crerr.Wrap(err, "read squad")
		}
		squadGone := err != nil || !squadSnap.Exists()

		userRef := r.store.users().Doc(storedInvite.RecipientID)
		if _, err := tx.Get(userRef); err != nil {
			return crerr.Wrap(err, "read recipient")
		}

		if squadGone {
			// Consume the stale invite in the same commit.
			if err := tx.Delete(inviteRef); err != nil {
				return crerr.Wrap(err, "delete stale invite")
			}
			return squad.ErrSquadMissing
		}

		var doc squadDoc
		if err := squadSnap.DataTo(&doc); err != nil {
			return crerr.Wrap(err, "decode squad")
		}

		if err := tx.Update(squadRef, []fs.Update{
			{Path: "memberIds", Value: fs.ArrayUnion(storedInvite.RecipientID)},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return crerr.Wrap(err, "add member")
		}
		if err := tx.Update(userRef, []fs.Update{
			{Path: "squadId", Value: doc.ID},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return crerr.Wrap(err, "point recipient at squad")
		}
		return tx.Delete(inviteRef)
	})
	if crerr.Is(err, squad.ErrSquadMissing) {
		return squad.ErrSquadMissing
	}
	return wrapErr(err, "join from invite")
}

func (r *SquadRepository) RemoveMember(ctx context.Context, squadID, userID string) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		squadRef := r.store.squads().Doc(squadID)
		squadSnap, err := tx.Get(squadRef)
		if err != nil {
			if isNotFound(err) {
				return squad.ErrSquadMissing
			}
			return crerr.Wrap(err, "read squad")
		}
		var doc squadDoc
		if err := squadSnap.DataTo(&doc); err != nil {
			return crerr.Wrap(err, "decode squad")
		}
		if !fromSquadDoc(doc).HasMember(userID) {
			return squad.ErrMemberMissing
		}

		if err := tx.Update(squadRef, []fs.Update{
			{Path: "memberIds", Value: fs.ArrayRemove(userID)},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return crerr.Wrap(err, "pull member")
		}
		return tx.Update(r.store.users().Doc(userID), []fs.Update{
			{Path: "squadId", Value: ""},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	switch {
	case crerr.Is(err, squad.ErrSquadMissing):
		return squad.ErrSquadMissing
	case crerr.Is(err, squad.ErrMemberMissing):
		return squad.ErrMemberMissing
	}
	return wrapErr(err, "remove member")
}

func (r *SquadRepository) SetOwner(ctx context.Context, squadID, ownerID string) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		squadRef := r.store.squads().Doc(squadID)
		squadSnap, err := tx.Get(squadRef)
		if err != nil {
			if isNotFound(err) {
				return squad.ErrSquadMissing
			}
			return crerr.Wrap(err, "read squad")
		}
		var doc squadDoc
		if err := squadSnap.DataTo(&doc); err != nil {
			return crerr.Wrap(err, "decode squad")
		}
		if !fromSquadDoc(doc).HasMember(ownerID) {
			return squad.ErrMemberMissing
		}

		return tx.Update(squadRef, []fs.Update{
			{Path: "ownerId", Value: ownerID},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	switch {
	case crerr.Is(err, squad.ErrSquadMissing):
		return squad.ErrSquadMissing
	case crerr.Is(err, squad.ErrMemberMissing):
		return squad.ErrMemberMissing
	}
	return wrapErr(err, "set owner")
}

func (r *SquadRepository) DeleteAndDetach(ctx context.Context, squadID string) error {
	err := r.store.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		squadRef := r.store.squads().Doc(squadID)
		squadSnap, err := tx.Get(squadRef)
		if err != nil {
			if isNotFound(err) {
				return squad.ErrSquadMissing
			}
			return crerr.Wrap(err, "read squad")
		}
		var doc squadDoc
		if err := squadSnap.DataTo(&doc); err != nil {
			return crerr.Wrap(err, "decode squad")
		}

		for _, memberID := range doc.MemberIDs {
			if err := tx.Update(r.store.users().Doc(memberID), []fs.Update{
				{Path: "squadId", Value: ""},
				{Path: "updatedAt", Value: time.Now()},
			}); err != nil {
				return crerr.Wrapf(err, "detach member %s", memberID)
			}
		}
		return tx.Delete(squadRef)
	})
	if crerr.Is(err, squad.ErrSquadMissing) {
		return squad.ErrSquadMissing
	}
	return wrapErr(err, "delete and detach squad")
}

func (r *SquadRepository) Watch(ctx context.Context, id string) (<-chan store.Snapshot[squad.Squad], error) {
	out := make(chan store.Snapshot[squad.Squad], 1)
	iter := r.store.squads().Doc(id).Snapshots(ctx)

	go func() {
		defer close(out)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				return
			}
			if !snap.Exists() {
				sendLatest(out, store.Snapshot[squad.Squad]{})
				continue
			}
			var doc squadDoc
			if err := snap.DataTo(&doc); err != nil {
				continue
			}
			sendLatest(out, store.Snapshot[squad.Squad]{Value: fromSquadDoc(doc), Exists: true})
		}
	}()

	return out, nil
}

func (r *SquadRepository) WatchInvitesByRecipient(ctx context.Context, recipientID string) (<-chan []squad.Invite, error) {
	out := make(chan []squad.Invite, 1)
	iter := r.store.invites().Where("recipientId", "==", recipientID).Snapshots(ctx)

	go func() {
		defer close(out)
		defer iter.Stop()

		for {
			qs, err := iter.Next()
			if err != nil {
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				continue
			}
			invites := make([]squad.Invite, 0, len(docs))
			for _, snap := range docs {
				var doc inviteDoc
				if err := snap.DataTo(&doc); err != nil {
					continue
				}
				invites = append(invites, fromInviteDoc(doc))
			}
			sortInvites(invites)
			sendLatest(out, invites)
		}
	}()

	return out, nil
}

func (r *SquadRepository) pendingInviteQuery(senderID, recipientID, squadID string) fs.Query {
	return r.store.invites().
		Where("senderId", "==", senderID).
		Where("recipientId", "==", recipientID).
		Where("squadId", "==", squadID).
		Limit(1)
}

func sortInvites(invites []squad.Invite) {
	sort.Slice(invites, func(i, j int) bool {
		if invites[i].CreatedAt.Equal(invites[j].CreatedAt) {
			return invites[i].ID < invites[j].ID
		}
		return invites[i].CreatedAt.Before(invites[j].CreatedAt)
	})
}
