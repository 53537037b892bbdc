package firestore

import (
	"context"
	"time"

	fs "cloud.google.com/go/firestore"
	crerr "github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/store"
	"github.com/herdsearch/herd-search/internal/domain/user"
)

type userDoc struct {
	ID            string    `firestore:"id"`
	DisplayName   string    `firestore:"displayName"`
	AvatarURL     string    `firestore:"avatarUrl"`
	Email         string    `firestore:"email"`
	Location      *pointDoc `firestore:"location"`
	CurrentArea   string    `firestore:"currentArea"`
	LastKnownArea string    `firestore:"lastKnownArea"`
	UseGPS        bool      `firestore:"useGps"`
	SquadID       string    `firestore:"squadId"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func toUserDoc(u user.User) userDoc {
	doc := userDoc{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		Email:         u.Email,
		Location:      toPointDoc(u.Location),
		CurrentArea:   u.CurrentArea,
		LastKnownArea: u.LastKnownArea,
		UseGPS:        u.UseGPS,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.SquadID != nil {
		doc.SquadID = *u.SquadID
	}
	return doc
}

func fromUserDoc(doc userDoc) user.User {
	u := user.User{
		ID:            doc.ID,
		DisplayName:   doc.DisplayName,
		AvatarURL:     doc.AvatarURL,
		Email:         doc.Email,
		Location:      fromPointDoc(doc.Location),
		CurrentArea:   doc.CurrentArea,
		LastKnownArea: doc.LastKnownArea,
		UseGPS:        doc.UseGPS,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if doc.SquadID != "" {
		squadID := doc.SquadID
		u.SquadID = &squadID
	}
	return u
}

type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(ctx context.Context, u user.User) error {
	_, err := r.store.users().Doc(u.ID).Create(ctx, toUserDoc(u))
	return wrapErr(err, "create user")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (user.User, bool, error) {
	snap, err := r.store.users().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return user.User{}, false, nil
		}
		return user.User{}, false, wrapErr(err, "get user")
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return user.User{}, false, crerr.Wrap(err, "decode user")
	}

	return fromUserDoc(doc), true, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user.User, bool, error) {
	iter := r.store.users().Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, wrapErr(err, "query user by email")
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return user.User{}, false, crerr.Wrap(err, "decode user")
	}

	return fromUserDoc(doc), true, nil
}

func (r *UserRepository) ListByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		u, ok, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, displayName, avatarURL, email string) error {
	_, err := r.store.users().Doc(id).Update(ctx, []fs.Update{
		{Path: "displayName", Value: displayName},
		{Path: "avatarUrl", Value: avatarURL},
		{Path: "email", Value: email},
		{Path: "updatedAt", Value: time.Now()},
	})
	return wrapErr(err, "update user profile")
}

func (r *UserRepository) SetPosition(ctx context.Context, id string, p geo.Point, currentArea, lastKnownArea string) error {
	_, err := r.store.users().Doc(id).Update(ctx, []fs.Update{
		{Path: "location", Value: &pointDoc{X: p.X, Y: p.Y}},
		{Path: "currentArea", Value: currentArea},
		{Path: "lastKnownArea", Value: lastKnownArea},
		{Path: "updatedAt", Value: time.Now()},
	})
	return wrapErr(err, "set user position")
}

func (r *UserRepository) SetUseGPS(ctx context.Context, id string, enabled bool) error {
	_, err := r.store.users().Doc(id).Update(ctx, []fs.Update{
		{Path: "useGps", Value: enabled},
		{Path: "updatedAt", Value: time.Now()},
	})
	return wrapErr(err, "set use gps")
}

func (r *UserRepository) ClearSquad(ctx context.Context, id string) error {
	_, err := r.store.users().Doc(id).Update(ctx, []fs.Update{
		{Path: "squadId", Value: ""},
		{Path: "updatedAt", Value: time.Now()},
	})
	return wrapErr(err, "clear user squad")
}

func (r *UserRepository) Watch(ctx context.Context, id string) (<-chan store.Snapshot[user.User], error) {
	out := make(chan store.Snapshot[user.User], 1)
	iter := r.store.users().Doc(id).Snapshots(ctx)

	go func() {
		defer close(out)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if err != nil {
				return // ctx cancelled or stream broken; subscriber re-attaches
			}
			if !snap.Exists() {
				sendLatest(out, store.Snapshot[user.User]{})
				continue
			}
			var doc userDoc
			if err := snap.DataTo(&doc); err != nil {
				continue
			}
			sendLatest(out, store.Snapshot[user.User]{Value: fromUserDoc(doc), Exists: true})
		}
	}()

	return out, nil
}

// sendLatest keeps only the newest snapshot in the buffered slot so a slow
// consumer never reads stale state.
func sendLatest[T any](out chan T, v T) {
	for {
		select {
		case out <- v:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
