package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	APIKeyStatusActive  = "active"
	APIKeyStatusRevoked = "revoked"
)

// Tiers. Free keys get a daily request allowance, paid keys are unlimited
// unless an explicit limit is set.
const (
	APIKeyTierFree = "free"
	APIKeyTierPaid = "paid"
)

// APIKey is one authorized API client. Only the hash of the raw key is stored.
type APIKey struct {
	KeyID      string     `gorm:"primaryKey;type:varchar(40)" json:"key_id"`
	SecretHash string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	Prefix     string     `gorm:"type:varchar(20);not null;default:''" json:"prefix"`
	Label      string     `gorm:"type:varchar(100);not null;default:''" json:"label"`
	Email      string     `gorm:"type:varchar(200);not null;default:''" json:"email"`
	Status     string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	Tier       string     `gorm:"type:varchar(16);not null;default:'free'" json:"tier"`
	DailyLimit int        `gorm:"not null;default:0" json:"daily_limit"` // 0 means unlimited
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "rk_"

// IsActive reports whether the key may authenticate.
func (k *APIKey) IsActive() bool {
	return k != nil && k.Status == APIKeyStatusActive && k.RevokedAt == nil
}

// NewAPIKey generates fresh key material and returns the record to persist
// together with the raw key. The raw key is not recoverable afterwards.
func NewAPIKey(label, email string) (*APIKey, string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return nil, "", err
	}
	key := &APIKey{
		KeyID:      "key_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		SecretHash: hash,
		Prefix:     prefix,
		Label:      strings.TrimSpace(label),
		Email:      strings.TrimSpace(email),
		Status:     APIKeyStatusActive,
		Tier:       APIKeyTierFree,
	}
	return key, rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// MaskAPIKey shortens a raw key to something safe to show in logs.
func MaskAPIKey(raw string) string {
	if len(raw) > 12 {
		return raw[:7] + "..." + raw[len(raw)-4:]
	}
	return "***"
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 12)]
	return rawKey, prefix, HashAPIKey(rawKey), nil
}
