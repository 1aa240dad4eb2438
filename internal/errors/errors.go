// Package errors classifies failures observed on the remote
// account-management API. The harness never invents error shapes of its
// own: every non-2xx response is decoded into the remote's uniform
// {code, description} body and bucketed into a small taxonomy the test
// suites and the fixture coordinator branch on.
package errors

import (
	"net/http"

	"amtest/pkg/contracts/domain"
)

// Kind is the coarse classification of a remote API failure.
type Kind int

const (
	// KindNone means the response was a success.
	KindNone Kind = iota
	// KindValidation covers missing or malformed required fields.
	KindValidation
	// KindNotFound covers unknown license, team, or product references.
	KindNotFound
	// KindAuth covers invalid/missing credentials and scope mismatches.
	KindAuth
	// KindCooldown is the conflict returned when a recently-assigned
	// license is not yet eligible for revocation.
	KindCooldown
	// KindOther is anything the taxonomy does not name (5xx and friends).
	KindOther
)

// String returns the taxonomy bucket name for logging and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindCooldown:
		return "cooldown"
	default:
		return "other"
	}
}

// Classify buckets a remote response by status code and, where the status
// alone is ambiguous, by the error code in the decoded body. A nil body is
// fine; the status carries most of the signal.
func Classify(statusCode int, body *domain.APIErrorBody) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return KindNone
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusConflict:
		if body != nil && body.Code == domain.ErrCodeAssignmentCooldown {
			return KindCooldown
		}
		return KindOther
	case statusCode == http.StatusBadRequest:
		return KindValidation
	default:
		return KindOther
	}
}

// IsCooldown reports whether a response is the revoke-cooldown conflict.
// The fixture coordinator treats these licenses as unavailable and moves on
// to the next candidate.
func IsCooldown(statusCode int, body *domain.APIErrorBody) bool {
	return Classify(statusCode, body) == KindCooldown
}
