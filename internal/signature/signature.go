// Package signature verifies inbound webhook signatures. Both schemes are
// pure functions over their inputs and never panic: malformed headers,
// timestamps or signatures all yield a false verdict.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scheme selects which verification construction applies to a payload.
type Scheme string

const (
	// SchemeTimestamped is the svix-style construction: HMAC-SHA256 over
	// "{id}.{timestamp}.{payload}" with a replay window on the timestamp.
	SchemeTimestamped Scheme = "timestamped"
	// SchemePlain is HMAC-SHA256 over the raw payload bytes, with an
	// optional "sha256=" prefix on the presented signature.
	SchemePlain Scheme = "plain"
)

// ReplayWindow bounds the allowed clock skew between the claimed timestamp
// and the receiver's clock for the timestamped scheme.
const ReplayWindow = 300 * time.Second

// VerifyTimestamped checks a timestamped-HMAC signature. The signature
// header may carry a comma-separated list, in which case the element after
// the first comma is the verification target. Comparison is constant-time.
func VerifyTimestamped(payload []byte, msgID, timestamp, sigHeader, secret string) bool {
	return verifyTimestampedAt(payload, msgID, timestamp, sigHeader, secret, time.Now())
}

func verifyTimestampedAt(payload []byte, msgID, timestamp, sigHeader, secret string, now time.Time) bool {
	if msgID == "" || timestamp == "" || sigHeader == "" || secret == "" {
		return false
	}

	claimed, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Unix() - claimed
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > ReplayWindow {
		return false
	}

	signedContent := fmt.Sprintf("%s.%s.%s", msgID, timestamp, payload)
	expected := hmacHex([]byte(signedContent), secret)

	actual := sigHeader
	if idx := strings.Index(sigHeader, ","); idx >= 0 {
		actual = sigHeader[idx+1:]
		if next := strings.Index(actual, ","); next >= 0 {
			actual = actual[:next]
		}
	}

	return hmac.Equal([]byte(expected), []byte(actual))
}

// VerifyPlain checks a plain HMAC-SHA256 signature over the raw payload.
// A "sha256=" scheme marker on the presented signature is stripped before
// the constant-time comparison.
func VerifyPlain(payload []byte, sig, secret string) bool {
	if sig == "" || secret == "" {
		return false
	}

	sig = strings.TrimPrefix(sig, "sha256=")
	expected := hmacHex(payload, secret)

	return hmac.Equal([]byte(expected), []byte(sig))
}

func hmacHex(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
