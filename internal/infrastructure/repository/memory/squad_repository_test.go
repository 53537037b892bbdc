package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/squad"
)

func testInvite(id, squadID, senderID, recipientID string) squad.Invite {
	return squad.Invite{
		ID:          id,
		SquadID:     squadID,
		SenderID:    senderID,
		RecipientID: recipientID,
		SenderName:  "User " + senderID,
		CreatedAt:   time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC),
	}
}

func seedUsers(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := s.Users().Create(context.Background(), testUser(id, id+"@festival.example")); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

func TestSquadRepositoryCreateSquadAndInvite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}

	got, ok, _ := s.Squads().GetByID(ctx, "sq1")
	if !ok || got.OwnerID != "sender" || len(got.MemberIDs) != 1 {
		t.Fatalf("squad not created as singleton: ok=%v %+v", ok, got)
	}

	sender, _, _ := s.Users().GetByID(ctx, "sender")
	if !sender.InSquad() || *sender.SquadID != "sq1" {
		t.Fatalf("sender squad reference not set: %+v", sender.SquadID)
	}

	invites, _ := s.Squads().ListInvitesByRecipient(ctx, "recipient")
	if len(invites) != 1 || invites[0].ID != "inv1" {
		t.Fatalf("expected one pending invite, got %+v", invites)
	}
}

func TestSquadRepositoryCreateInviteDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, testInvite("inv1", "sq1", "sender", "recipient")); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}

	err := s.Squads().CreateInvite(ctx, testInvite("inv2", "sq1", "sender", "recipient"))
	if !errors.Is(err, squad.ErrInviteExists) {
		t.Fatalf("expected ErrInviteExists, got %v", err)
	}
}

func TestSquadRepositoryJoinFromInvite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}

	if err := s.Squads().JoinFromInvite(ctx, inv); err != nil {
		t.Fatalf("join from invite: %v", err)
	}

	got, _, _ := s.Squads().GetByID(ctx, "sq1")
	if !got.HasMember("recipient") {
		t.Fatalf("recipient not added to member set: %+v", got.MemberIDs)
	}

	recipient, _, _ := s.Users().GetByID(ctx, "recipient")
	if !recipient.InSquad() || *recipient.SquadID != "sq1" {
		t.Fatalf("recipient squad reference not set")
	}

	if _, ok, _ := s.Squads().GetInvite(ctx, "inv1"); ok {
		t.Fatalf("invite should be consumed by join")
	}
}

func TestSquadRepositoryJoinFromInviteSquadGone(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}
	if err := s.Squads().DeleteAndDetach(ctx, "sq1"); err != nil {
		t.Fatalf("delete squad: %v", err)
	}

	err := s.Squads().JoinFromInvite(ctx, inv)
	if !errors.Is(err, squad.ErrSquadMissing) {
		t.Fatalf("expected ErrSquadMissing, got %v", err)
	}
	if _, ok, _ := s.Squads().GetInvite(ctx, "inv1"); ok {
		t.Fatalf("stale invite should be consumed even when the squad is gone")
	}
}

func TestSquadRepositoryRemoveMember(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}
	if err := s.Squads().JoinFromInvite(ctx, inv); err != nil {
		t.Fatalf("join from invite: %v", err)
	}

	if err := s.Squads().RemoveMember(ctx, "sq1", "recipient"); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	got, _, _ := s.Squads().GetByID(ctx, "sq1")
	if got.HasMember("recipient") {
		t.Fatalf("recipient still in member set")
	}
	recipient, _, _ := s.Users().GetByID(ctx, "recipient")
	if recipient.InSquad() {
		t.Fatalf("recipient squad reference not cleared")
	}

	err := s.Squads().RemoveMember(ctx, "sq1", "recipient")
	if !errors.Is(err, squad.ErrMemberMissing) {
		t.Fatalf("expected ErrMemberMissing on second removal, got %v", err)
	}
}

func TestSquadRepositorySetOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}
	if err := s.Squads().JoinFromInvite(ctx, inv); err != nil {
		t.Fatalf("join from invite: %v", err)
	}

	if err := s.Squads().SetOwner(ctx, "sq1", "recipient"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	got, _, _ := s.Squads().GetByID(ctx, "sq1")
	if got.OwnerID != "recipient" {
		t.Fatalf("owner not transferred: %s", got.OwnerID)
	}

	err := s.Squads().SetOwner(ctx, "sq1", "stranger")
	if !errors.Is(err, squad.ErrMemberMissing) {
		t.Fatalf("expected ErrMemberMissing for non-member owner, got %v", err)
	}
}

func TestSquadRepositoryDeleteAndDetach(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}
	if err := s.Squads().JoinFromInvite(ctx, inv); err != nil {
		t.Fatalf("join from invite: %v", err)
	}

	if err := s.Squads().DeleteAndDetach(ctx, "sq1"); err != nil {
		t.Fatalf("delete and detach: %v", err)
	}

	if _, ok, _ := s.Squads().GetByID(ctx, "sq1"); ok {
		t.Fatalf("squad document still present")
	}
	for _, id := range []string{"sender", "recipient"} {
		u, _, _ := s.Users().GetByID(ctx, id)
		if u.InSquad() {
			t.Fatalf("user %s still references deleted squad", id)
		}
	}
}

func TestSquadRepositoryInviteOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUsers(t, s, "a", "b", "recipient")

	base := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)
	sqA := squad.NewSingleton("sqA", "a", base)
	sqB := squad.NewSingleton("sqB", "b", base)

	first := testInvite("inv-late", "sqA", "a", "recipient")
	first.CreatedAt = base.Add(time.Minute)
	second := testInvite("inv-early", "sqB", "b", "recipient")
	second.CreatedAt = base

	if err := s.Squads().CreateSquadAndInvite(ctx, sqA, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := s.Squads().CreateSquadAndInvite(ctx, sqB, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	invites, _ := s.Squads().ListInvitesByRecipient(ctx, "recipient")
	if len(invites) != 2 || invites[0].ID != "inv-early" || invites[1].ID != "inv-late" {
		t.Fatalf("expected creation-time ordering, got %+v", invites)
	}
}

func TestSquadRepositoryWatchSeesMembershipChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStore()
	seedUsers(t, s, "sender", "recipient")

	founded := squad.NewSingleton("sq1", "sender", time.Now())
	inv := testInvite("inv1", "sq1", "sender", "recipient")
	if err := s.Squads().CreateSquadAndInvite(ctx, founded, inv); err != nil {
		t.Fatalf("create squad and invite: %v", err)
	}

	ch, err := s.Squads().Watch(ctx, "sq1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	initial := <-ch
	if !initial.Exists || len(initial.Value.MemberIDs) != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}

	if err := s.Squads().JoinFromInvite(ctx, inv); err != nil {
		t.Fatalf("join from invite: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Exists && snap.Value.HasMember("recipient") {
				return
			}
		case <-deadline:
			t.Fatalf("never observed join through watch")
		}
	}
}
