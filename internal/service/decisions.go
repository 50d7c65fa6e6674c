package service

import (
	"identity-service/internal/idp"
)

// signupAction is the branch taken after probing the provider for an
// identity that matches a freshly created local account.
type signupAction int

const (
	// signupProvision: no identity exists, create one.
	signupProvision signupAction = iota
	// signupResume: an unconfirmed identity exists. Link it and let the
	// user finish verification. Ownership is proven by possession of the
	// inbox, so adopting the half-created identity is safe.
	signupResume
	// signupConflict: a confirmed identity exists. The email is taken and
	// the local record must be compensated away.
	signupConflict
)

// resolveSignupDuplicate decides the signup branch from a provider probe.
// Pure function over the probe result so the branching is testable without
// any provider in the loop.
func resolveSignupDuplicate(check *idp.CheckResult) signupAction {
	if check == nil || !check.Exists {
		return signupProvision
	}
	if check.Confirmed {
		return signupConflict
	}
	return signupResume
}

// linkageAction is the branch for lazily attaching a provider identity to
// an account that was verified before the provider had one.
type linkageAction int

const (
	// linkExisting: the provider already holds an identity for the email,
	// adopt it.
	linkExisting linkageAction = iota
	// linkProvision: no identity exists, create one administratively with
	// no challenge, since the account is already verified locally.
	linkProvision
)

func resolveLinkage(check *idp.CheckResult) linkageAction {
	if check != nil && check.Exists {
		return linkExisting
	}
	return linkProvision
}

// provisionFallbackEligible reports whether a failed self-service
// provisioning attempt should be retried through the administrative path.
// Only unsupported-configuration and unclassified failures qualify;
// duplicates, throttling, and authorization refusals surface as-is.
func provisionFallbackEligible(err error) bool {
	switch idp.KindOf(err) {
	case idp.KindMisconfigured, idp.KindUnknown:
		return true
	default:
		return false
	}
}
