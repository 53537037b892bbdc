// Package firestore backs the entity repositories with Cloud Firestore.
// Multi-document membership transitions run in RunTransaction with every
// read issued before the first write, which is how Firestore makes the
// commit all-or-nothing.
package firestore

import (
	"context"

	fs "cloud.google.com/go/firestore"
	crerr "github.com/cockroachdb/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/store"
)

const (
	usersCollection   = "users"
	squadsCollection  = "squads"
	invitesCollection = "invites"
	areasCollection   = "areas"
)

type Store struct {
	client *fs.Client
}

func NewStore(ctx context.Context, projectID, credentialsPath string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := fs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, crerr.Wrap(err, "new firestore client")
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Users() *UserRepository   { return &UserRepository{store: s} }
func (s *Store) Squads() *SquadRepository { return &SquadRepository{store: s} }
func (s *Store) Areas() *AreaRepository   { return &AreaRepository{store: s} }

func (s *Store) users() *fs.CollectionRef   { return s.client.Collection(usersCollection) }
func (s *Store) squads() *fs.CollectionRef  { return s.client.Collection(squadsCollection) }
func (s *Store) invites() *fs.CollectionRef { return s.client.Collection(invitesCollection) }
func (s *Store) areas() *fs.CollectionRef   { return s.client.Collection(areasCollection) }

// wrapErr maps transport failures onto store.ErrUnavailable so callers can
// translate them uniformly; everything else passes through with context.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return crerr.Wrapf(store.ErrUnavailable, "%s: %v", msg, err)
	}
	return crerr.Wrap(err, msg)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

type pointDoc struct {
	X float64 `firestore:"x"`
	Y float64 `firestore:"y"`
}

func toPointDoc(p *geo.Point) *pointDoc {
	if p == nil {
		return nil
	}
	return &pointDoc{X: p.X, Y: p.Y}
}

func fromPointDoc(d *pointDoc) *geo.Point {
	if d == nil {
		return nil
	}
	return &geo.Point{X: d.X, Y: d.Y}
}
