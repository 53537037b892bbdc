// Package google verifies Firebase ID tokens and maps their claims onto a
// principal the rest of the service understands.
package google

import (
	"context"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	crerr "github.com/cockroachdb/errors"
	"google.golang.org/api/option"

	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/cache"
)

// ErrInvalidToken covers every verification failure: malformed, expired,
// revoked, or signed for another project.
var ErrInvalidToken = crerr.New("invalid identity token")

// tokenVerifier is the slice of the Firebase auth client the verifier
// needs; tests substitute it.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Client turns bearer tokens into principals, caching successful
// verifications so a chatty client does not cost one provider round trip
// per request.
type Client struct {
	verifier tokenVerifier
	cache    *cache.Store[user.Principal]
}

// NewClient builds a verifier backed by the Firebase Admin SDK.
// credentialsPath may be empty, in which case application default
// credentials apply.
func NewClient(ctx context.Context, projectID, credentialsPath string, cacheTTL time.Duration) (*Client, error) {
	cfg := &firebase.Config{ProjectID: projectID}
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, crerr.Wrap(err, "initialize firebase app")
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, crerr.Wrap(err, "get firebase auth client")
	}

	return newClient(authClient, cacheTTL), nil
}

func newClient(verifier tokenVerifier, cacheTTL time.Duration) *Client {
	return &Client{
		verifier: verifier,
		cache:    cache.NewStore[user.Principal](cacheTTL),
	}
}

// Verify checks the bearer token and returns the principal behind it.
func (c *Client) Verify(ctx context.Context, idToken string) (user.Principal, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return user.Principal{}, crerr.Wrap(ErrInvalidToken, "empty token")
	}

	return c.cache.GetOrLoad(ctx, idToken, func(ctx context.Context) (user.Principal, error) {
		decoded, err := c.verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			return user.Principal{}, crerr.WithSecondaryError(ErrInvalidToken, err)
		}

		return principalFromToken(decoded), nil
	})
}

func principalFromToken(t *fbauth.Token) user.Principal {
	p := user.Principal{ID: t.UID}
	if email, ok := t.Claims["email"].(string); ok {
		p.Email = user.NormalizeEmail(email)
	}
	if name, ok := t.Claims["name"].(string); ok {
		p.DisplayName = name
	}
	if picture, ok := t.Claims["picture"].(string); ok {
		p.AvatarURL = picture
	}

	return p
}
