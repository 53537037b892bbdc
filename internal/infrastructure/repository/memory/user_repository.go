package memory

import (
	"context"
	"fmt"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/store"
	"github.com/herdsearch/herd-search/internal/domain/user"
)

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(_ context.Context, u user.User) error {
	return r.store.commit(func() ([]string, error) {
		if _, exists := r.store.users[u.ID]; exists {
			return nil, fmt.Errorf("user %s already exists", u.ID)
		}

		r.store.users[u.ID] = cloneUser(u)
		if u.Email != "" {
			r.store.emailIndex[u.Email] = u.ID
		}

		return []string{topicUser(u.ID)}, nil
	})
}

func (r *UserRepository) GetByID(_ context.Context, id string) (user.User, bool, error) {
	var (
		u  user.User
		ok bool
	)
	r.store.read(func() {
		u, ok = r.store.users[id]
	})
	if !ok {
		return user.User{}, false, nil
	}

	return cloneUser(u), true, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (user.User, bool, error) {
	var (
		u  user.User
		ok bool
	)
	r.store.read(func() {
		id, indexed := r.store.emailIndex[email]
		if !indexed {
			return
		}
		u, ok = r.store.users[id]
	})
	if !ok {
		return user.User{}, false, nil
	}

	return cloneUser(u), true, nil
}

func (r *UserRepository) ListByIDs(_ context.Context, ids []string) ([]user.User, error) {
	out := make([]user.User, 0, len(ids))
	r.store.read(func() {
		for _, id := range ids {
			if u, ok := r.store.users[id]; ok {
				out = append(out, cloneUser(u))
			}
		}
	})

	return out, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id, displayName, avatarURL, email string) error {
	return r.store.commit(func() ([]string, error) {
		u, ok := r.store.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s not found", id)
		}

		if u.Email != email {
			delete(r.store.emailIndex, u.Email)
			if email != "" {
				r.store.emailIndex[email] = id
			}
		}
		u.DisplayName = displayName
		u.AvatarURL = avatarURL
		u.Email = email
		r.store.users[id] = u

		return []string{topicUser(id)}, nil
	})
}

func (r *UserRepository) SetPosition(_ context.Context, id string, p geo.Point, currentArea, lastKnownArea string) error {
	return r.store.commit(func() ([]string, error) {
		u, ok := r.store.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s not found", id)
		}

		loc := p
		u.Location = &loc
		u.CurrentArea = currentArea
		u.LastKnownArea = lastKnownArea
		r.store.users[id] = u

		return []string{topicUser(id)}, nil
	})
}

func (r *UserRepository) SetUseGPS(_ context.Context, id string, enabled bool) error {
	return r.store.commit(func() ([]string, error) {
		u, ok := r.store.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s not found", id)
		}

		u.UseGPS = enabled
		r.store.users[id] = u

		return []string{topicUser(id)}, nil
	})
}

func (r *UserRepository) ClearSquad(_ context.Context, id string) error {
	return r.store.commit(func() ([]string, error) {
		u, ok := r.store.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s not found", id)
		}

		u.SquadID = nil
		r.store.users[id] = u

		return []string{topicUser(id)}, nil
	})
}

func (r *UserRepository) Watch(ctx context.Context, id string) (<-chan store.Snapshot[user.User], error) {
	out := make(chan store.Snapshot[user.User], 1)
	subID, ping := r.store.hub.subscribe(topicUser(id))

	push := func() {
		var snap store.Snapshot[user.User]
		r.store.read(func() {
			if u, ok := r.store.users[id]; ok {
				snap = store.Snapshot[user.User]{Value: cloneUser(u), Exists: true}
			}
		})
		sendLatest(out, snap)
	}

	go func() {
		defer close(out)
		defer r.store.hub.unsubscribe(topicUser(id), subID)

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

func cloneUser(u user.User) user.User {
	copied := u
	if u.Location != nil {
		loc := *u.Location
		copied.Location = &loc
	}
	if u.SquadID != nil {
		id := *u.SquadID
		copied.SquadID = &id
	}
	return copied
}
