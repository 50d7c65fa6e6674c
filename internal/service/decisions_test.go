package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"identity-service/internal/idp"
)

func TestResolveSignupDuplicate(t *testing.T) {
	cases := []struct {
		name  string
		check *idp.CheckResult
		want  signupAction
	}{
		{"nil probe", nil, signupProvision},
		{"no identity", &idp.CheckResult{Exists: false}, signupProvision},
		{"unconfirmed identity", &idp.CheckResult{Exists: true, Confirmed: false}, signupResume},
		{"confirmed identity", &idp.CheckResult{Exists: true, Confirmed: true}, signupConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveSignupDuplicate(tc.check))
		})
	}
}

func TestResolveLinkage(t *testing.T) {
	assert.Equal(t, linkProvision, resolveLinkage(nil))
	assert.Equal(t, linkProvision, resolveLinkage(&idp.CheckResult{Exists: false}))
	assert.Equal(t, linkExisting, resolveLinkage(&idp.CheckResult{Exists: true}))
	assert.Equal(t, linkExisting, resolveLinkage(&idp.CheckResult{Exists: true, Confirmed: true}))
}

func TestProvisionFallbackEligible(t *testing.T) {
	cases := []struct {
		kind idp.ErrorKind
		want bool
	}{
		{idp.KindMisconfigured, true},
		{idp.KindUnknown, true},
		{idp.KindDuplicate, false},
		{idp.KindRateLimited, false},
		{idp.KindNotAuthorized, false},
		{idp.KindInvalidCode, false},
	}

	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			err := idp.NewProviderError(tc.kind, "ProvisionSelfService", errors.New("x"))
			assert.Equal(t, tc.want, provisionFallbackEligible(err))
		})
	}
}
