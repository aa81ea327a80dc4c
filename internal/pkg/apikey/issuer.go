package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
)

// Mailer delivers a freshly issued raw key to its owner.
type Mailer interface {
	SendAPIKey(to, keyID, rawKey string) error
}

// Issued carries the raw key. It is never stored and cannot be recovered.
type Issued struct {
	Key     *models.APIKey
	RawKey  string
	Emailed bool
}

// DefaultFreeDailyLimit is the daily allowance of a free key unless
// configured otherwise.
const DefaultFreeDailyLimit = 100

// Issuer provisions and revokes keys. Mailer may be nil. FreeDailyLimit
// applies to free keys issued without an explicit limit.
type Issuer struct {
	FreeDailyLimit int

	repo   repository.APIKeyRepository
	mailer Mailer
	now    func() time.Time
}

func NewIssuer(repo repository.APIKeyRepository, mailer Mailer) *Issuer {
	return &Issuer{FreeDailyLimit: DefaultFreeDailyLimit, repo: repo, mailer: mailer, now: time.Now}
}

type issueOptions struct {
	tier       string
	dailyLimit *int
}

// IssueOption adjusts the plan of a key being issued.
type IssueOption func(*issueOptions)

// WithTier issues the key on the given tier (free or paid).
func WithTier(tier string) IssueOption {
	return func(o *issueOptions) { o.tier = tier }
}

// WithDailyLimit overrides the tier's default daily allowance. Zero means
// unlimited.
func WithDailyLimit(n int) IssueOption {
	return func(o *issueOptions) { o.dailyLimit = &n }
}

func (i *Issuer) Issue(ctx context.Context, label, email string, opts ...IssueOption) (*Issued, error) {
	o := issueOptions{tier: models.APIKeyTierFree}
	for _, opt := range opts {
		opt(&o)
	}
	tier := strings.ToLower(strings.TrimSpace(o.tier))
	if tier == "" {
		tier = models.APIKeyTierFree
	}
	if tier != models.APIKeyTierFree && tier != models.APIKeyTierPaid {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidRequest, o.tier)
	}
	limit := 0
	switch {
	case o.dailyLimit != nil:
		limit = *o.dailyLimit
	case tier == models.APIKeyTierFree:
		limit = i.FreeDailyLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: daily limit must not be negative", ErrInvalidRequest)
	}

	label = strings.TrimSpace(label)
	email = strings.TrimSpace(email)
	if len(label) > 100 {
		return nil, fmt.Errorf("%w: label is too long", ErrInvalidRequest)
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil || len(email) > 200 {
			return nil, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
		}
	}

	key, raw, err := models.NewAPIKey(label, email)
	if err != nil {
		return nil, err
	}
	key.Tier = tier
	key.DailyLimit = limit
	if err := i.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	log.Infof("[APIKey] issued %s (prefix %s, tier %s, daily limit %d)", key.KeyID, key.Prefix, key.Tier, key.DailyLimit)

	out := &Issued{Key: key, RawKey: raw}
	if email != "" && i.mailer != nil {
		if err := i.mailer.SendAPIKey(email, key.KeyID, raw); err != nil {
			log.Warnf("[APIKey] could not email %s: %v", key.KeyID, err)
		} else {
			out.Emailed = true
		}
	}
	return out, nil
}

// Revoke is idempotent; revoking an already revoked key succeeds.
func (i *Issuer) Revoke(ctx context.Context, keyID string) error {
	revoked, err := i.repo.Revoke(ctx, strings.TrimSpace(keyID), i.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if revoked {
		log.Infof("[APIKey] revoked %s", keyID)
	}
	return nil
}

func (i *Issuer) List(ctx context.Context, offset, limit int) ([]models.APIKey, error) {
	keys, err := i.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return keys, nil
}
