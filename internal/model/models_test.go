package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOtpRecordUsable(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	consumed := now.Add(-time.Minute)

	tests := []struct {
		name   string
		record *OtpRecord
		want   bool
	}{
		{
			name:   "nil record",
			record: nil,
			want:   false,
		},
		{
			name: "unconsumed before expiry",
			record: &OtpRecord{
				ExpiresAt: now.Add(10 * time.Minute),
			},
			want: true,
		},
		{
			name: "consumed before expiry",
			record: &OtpRecord{
				ExpiresAt:  now.Add(10 * time.Minute),
				ConsumedAt: &consumed,
			},
			want: false,
		},
		{
			name: "unconsumed after expiry",
			record: &OtpRecord{
				ExpiresAt: now.Add(-time.Second),
			},
			want: false,
		},
		{
			name: "exactly at expiry instant",
			record: &OtpRecord{
				ExpiresAt: now,
			},
			want: false,
		},
		{
			name: "consumed and expired",
			record: &OtpRecord{
				ExpiresAt:  now.Add(-time.Minute),
				ConsumedAt: &consumed,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Usable(now))
		})
	}
}

func TestAccountHasExternalLinkage(t *testing.T) {
	var nilAccount *Account
	assert.False(t, nilAccount.HasExternalLinkage())
	assert.False(t, (&Account{ExternalID: "ext-1"}).HasExternalLinkage())
	assert.False(t, (&Account{ExternalUsername: "user-1"}).HasExternalLinkage())
	assert.True(t, (&Account{ExternalID: "ext-1", ExternalUsername: "user-1"}).HasExternalLinkage())
}
