package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/store"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// SessionView is everything one signed-in client renders: their own
// document, their squad and its roster, the invite inbox, and the drawn
// areas. Every delivery is a full replacement.
type SessionView struct {
	Me      user.User
	Squad   *squad.Squad
	Members []user.User
	Invites []squad.Invite
	Areas   []area.Area
}

// WatchService composes per-document watches into one session stream. The
// squad and roster subscriptions follow the user's squad reference: when
// the user joins, leaves, or the member set changes, the inner watches are
// torn down and rebuilt.
type WatchService struct {
	userRepo  user.Repository
	squadRepo squad.Repository
	areaRepo  area.Repository
	logger    *logging.Logger
}

func NewWatchService(
	userRepo user.Repository,
	squadRepo squad.Repository,
	areaRepo area.Repository,
	logger *logging.Logger,
) *WatchService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &WatchService{
		userRepo:  userRepo,
		squadRepo: squadRepo,
		areaRepo:  areaRepo,
		logger:    logger,
	}
}

type memberUpdate struct {
	id   string
	snap store.Snapshot[user.User]
}

// WatchSession streams full session views until ctx is done. The channel
// holds at most one pending view; a slow consumer always wakes to the
// newest state, never a backlog.
func (s *WatchService) WatchSession(ctx context.Context, userID string) (<-chan SessionView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	userCh, err := s.userRepo.Watch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("watch user: %w", err)
	}
	inviteCh, err := s.squadRepo.WatchInvitesByRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("watch invites: %w", err)
	}
	areaCh, err := s.areaRepo.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch areas: %w", err)
	}

	out := make(chan SessionView, 1)
	go s.pump(ctx, userID, userCh, inviteCh, areaCh, out)

	return out, nil
}

// pump fans the base and dynamic watches into one view stream. Ordering is
// eventually consistent, not transactional: a stale inner delivery (say, a
// squad deletion racing a newer squad-create ping) may surface for one frame
// before the rebuilt watch pushes the corrected state. Consumers render full
// snapshots, so a transient frame self-heals on the next delivery; do not
// add cross-channel ordering here to suppress it.
func (s *WatchService) pump(
	ctx context.Context,
	userID string,
	userCh <-chan store.Snapshot[user.User],
	inviteCh <-chan []squad.Invite,
	areaCh <-chan []area.Area,
	out chan SessionView,
) {
	defer close(out)

	squadUpdates := make(chan store.Snapshot[squad.Squad], 1)
	memberUpdates := make(chan memberUpdate, 8)

	var (
		me           user.User
		currentSquad *squad.Squad
		members      = map[string]user.User{}
		invites      []squad.Invite
		areas        []area.Area

		watchedSquadID string
		squadCancel    context.CancelFunc
		watchedMembers []string
		memberCancel   context.CancelFunc
	)
	defer func() {
		if squadCancel != nil {
			squadCancel()
		}
		if memberCancel != nil {
			memberCancel()
		}
	}()

	emit := func() {
		view := SessionView{
			Me:      me,
			Invites: invites,
			Areas:   areas,
		}
		if currentSquad != nil {
			sq := *currentSquad
			view.Squad = &sq
			view.Members = make([]user.User, 0, len(sq.MemberIDs))
			for _, id := range sq.MemberIDs {
				if m, ok := members[id]; ok {
					view.Members = append(view.Members, m)
				}
			}
		}
		replaceSend(out, view)
	}

	// followSquad retargets the squad watch when the user's reference
	// changes; an empty id tears it down.
	followSquad := func(squadID string) {
		if squadID == watchedSquadID {
			return
		}
		if squadCancel != nil {
			squadCancel()
			squadCancel = nil
		}
		watchedSquadID = squadID
		currentSquad = nil
		if squadID == "" {
			return
		}

		squadCtx, cancel := context.WithCancel(ctx)
		squadCancel = cancel
		ch, err := s.squadRepo.Watch(squadCtx, squadID)
		if err != nil {
			s.logger.WarnContext(ctx, "squad watch failed", "squadId", squadID, "error", err)
			return
		}
		go forward(squadCtx, ch, squadUpdates)
	}

	// followMembers rebuilds the per-member watches when the roster
	// changes. Squads are small, so tearing down the whole set is cheaper
	// than diffing it.
	followMembers := func(ids []string) {
		if equalIDs(ids, watchedMembers) {
			return
		}
		if memberCancel != nil {
			memberCancel()
			memberCancel = nil
		}
		watchedMembers = append([]string(nil), ids...)
		members = map[string]user.User{}
		if len(ids) == 0 {
			return
		}

		memberCtx, cancel := context.WithCancel(ctx)
		memberCancel = cancel
		for _, id := range ids {
			ch, err := s.userRepo.Watch(memberCtx, id)
			if err != nil {
				s.logger.WarnContext(ctx, "member watch failed", "userId", id, "error", err)
				continue
			}
			go forwardMember(memberCtx, id, ch, memberUpdates)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-userCh:
			if !ok {
				return
			}
			if !snap.Exists {
				continue
			}
			me = snap.Value
			if me.InSquad() {
				followSquad(*me.SquadID)
			} else {
				followSquad("")
				followMembers(nil)
			}
			emit()

		case snap := <-squadUpdates:
			if !snap.Exists {
				// Squad deleted under us; the user watch will deliver the
				// cleared reference, drop the view side now.
				currentSquad = nil
				followMembers(nil)
				emit()
				continue
			}
			sq := snap.Value
			if sq.ID != watchedSquadID {
				continue // late delivery from a torn-down watch
			}
			currentSquad = &sq
			followMembers(sq.MemberIDs)
			emit()

		case upd := <-memberUpdates:
			if !upd.snap.Exists {
				delete(members, upd.id)
			} else {
				members[upd.id] = upd.snap.Value
			}
			emit()

		case inv, ok := <-inviteCh:
			if !ok {
				return
			}
			invites = inv
			emit()

		case a, ok := <-areaCh:
			if !ok {
				return
			}
			areas = a
			emit()
		}
	}
}

func forward[T any](ctx context.Context, in <-chan T, out chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}
}

func forwardMember(ctx context.Context, id string, in <-chan store.Snapshot[user.User], out chan memberUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- memberUpdate{id: id, snap: snap}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// replaceSend drops the undelivered view, if any, so the buffered slot
// always holds the newest one.
func replaceSend(out chan SessionView, view SessionView) {
	for {
		select {
		case out <- view:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
