package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIKey(t *testing.T) {
	key, raw, err := NewAPIKey("  reporting  ", "ops@example.com")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, apiKeyPrefix))
	assert.True(t, strings.HasPrefix(key.KeyID, "key_"))
	assert.Equal(t, HashAPIKey(raw), key.SecretHash)
	assert.NotContains(t, key.SecretHash, raw)
	assert.True(t, strings.HasPrefix(raw, key.Prefix))
	assert.Equal(t, "reporting", key.Label)
	assert.True(t, key.IsActive())

	_, other, err := NewAPIKey("", "")
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestHashAPIKeyTrimsWhitespace(t *testing.T) {
	assert.Equal(t, HashAPIKey("rk_abc"), HashAPIKey("  rk_abc\n"))
	assert.Len(t, HashAPIKey("rk_abc"), 64)
}

func TestAPIKeyIsActive(t *testing.T) {
	var nilKey *APIKey
	assert.False(t, nilKey.IsActive())
	assert.False(t, (&APIKey{Status: APIKeyStatusRevoked}).IsActive())
	assert.True(t, (&APIKey{Status: APIKeyStatusActive}).IsActive())
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "***", MaskAPIKey("short"))
	masked := MaskAPIKey("rk_abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, "rk_abcd...wxyz", masked)
}

func TestSignedAmount(t *testing.T) {
	tests := []struct {
		eventType string
		want      int64
	}{
		{EventTypePaymentSucceeded, 100},
		{EventTypeRefundIssued, -100},
		{EventTypePaymentFailed, 0},
		{EventTypeTestPing, 0},
		{EventTypeInformational, 0},
	}
	for _, tt := range tests {
		ev := &PaymentEvent{EventType: tt.eventType, AmountMinorUnits: 100}
		assert.Equal(t, tt.want, ev.SignedAmount(), tt.eventType)
		assert.Equal(t, tt.want != 0, IsRevenueAffecting(tt.eventType), tt.eventType)
	}
}
