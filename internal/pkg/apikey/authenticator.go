// Package apikey validates API keys presented by reporting clients and issues
// new ones.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
)

var (
	ErrUnavailable    = errors.New("apikey: storage unavailable")
	ErrNotFound       = errors.New("apikey: key not found")
	ErrInvalidRequest = errors.New("apikey: invalid request")
)

// maxKeyLength bounds what is hashed and looked up; real keys are far shorter.
const maxKeyLength = 256

// Result is the outcome of Authenticate. KeyID and DailyLimit are only set
// when Authorized.
type Result struct {
	Authorized bool
	KeyID      string
	DailyLimit int
}

type Authenticator struct {
	repo    repository.APIKeyRepository
	timeout time.Duration
	now     func() time.Time
}

func NewAuthenticator(repo repository.APIKeyRepository, timeout time.Duration) *Authenticator {
	return &Authenticator{repo: repo, timeout: timeout, now: time.Now}
}

// Authenticate hashes the presented key and looks the hash up. Missing,
// malformed, unknown and revoked keys all yield the same unauthorized Result.
// The only error is ErrUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, presented string) (Result, error) {
	presented = strings.TrimSpace(presented)
	if !wellFormed(presented) {
		return Result{}, nil
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	key, err := a.repo.GetBySecretHash(ctx, models.HashAPIKey(presented))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !key.IsActive() {
		return Result{}, nil
	}

	if err := a.repo.TouchLastUsed(ctx, key.KeyID, a.now().UTC()); err != nil {
		log.Warnf("[APIKey] failed to update last use of %s: %v", key.KeyID, err)
	}
	return Result{Authorized: true, KeyID: key.KeyID, DailyLimit: key.DailyLimit}, nil
}

func wellFormed(key string) bool {
	if key == "" || len(key) > maxKeyLength {
		return false
	}
	for _, r := range key {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
