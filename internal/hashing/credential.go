package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// credentialSuffix guarantees the derived value satisfies provider password
// policies requiring upper, lower, digit and symbol classes.
const credentialSuffix = "Aa1!"

// DeriveCredential computes the durable provider-side credential for an
// email. It is a pure function of the process-wide secret and the normalized
// address: never stored, always recomputed, so OTP login and password reset
// can re-install it at any time without persisting a second secret.
func DeriveCredential(serviceSecret, email string) string {
	mac := hmac.New(sha256.New, []byte(serviceSecret))
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	digest := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return digest[:24] + credentialSuffix
}
