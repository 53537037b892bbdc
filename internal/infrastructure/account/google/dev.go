package google

import (
	"context"
	"strings"

	crerr "github.com/cockroachdb/errors"

	"github.com/herdsearch/herd-search/internal/domain/user"
)

// DevVerifier accepts unsigned "uid:email" or "uid:email:display name"
// bearer tokens. It backs local runs where no Firebase project is
// configured; the app only wires it in the dev environment.
type DevVerifier struct{}

func NewDevVerifier() *DevVerifier {
	return &DevVerifier{}
}

func (v *DevVerifier) Verify(_ context.Context, idToken string) (user.Principal, error) {
	parts := strings.SplitN(strings.TrimSpace(idToken), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return user.Principal{}, crerr.Wrap(ErrInvalidToken, "dev token must be uid:email[:name]")
	}

	p := user.Principal{
		ID:    parts[0],
		Email: user.NormalizeEmail(parts[1]),
	}
	if len(parts) == 3 && parts[2] != "" {
		p.DisplayName = parts[2]
	}

	return p, nil
}
