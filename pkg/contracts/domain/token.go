package domain

// Authentication headers required on every call. Absence or invalidity of
// either is the basis of the negative-auth scenarios.
const (
	HeaderAPIKey       = "X-Api-Key"
	HeaderCustomerCode = "X-Customer-Code"
)

// TokenType is the scope of an API credential.
type TokenType string

const (
	// TokenTypeCustomer has authority over the whole organization.
	TokenTypeCustomer TokenType = "CUSTOMER"
	// TokenTypeTeam is limited to the teams it lists.
	TokenTypeTeam TokenType = "TEAM"
)

// TokenInfo is the response of GET /token: the scope and reach of the
// credential used on the call.
type TokenInfo struct {
	Type  TokenType `json:"type"`
	Role  string    `json:"role,omitempty"`
	Teams []TeamRef `json:"teams,omitempty"`
}

// RotateTokenResponse is the response of POST /token/rotate. The credential
// used on the call is invalid from this point on; Token replaces it.
type RotateTokenResponse struct {
	Token string `json:"token"`
}

// APIErrorBody is the uniform error payload the remote API returns on
// non-2xx responses.
type APIErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Error codes observed on the remote API. The harness asserts on these, it
// never invents its own.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeLicenseNotFound     = "LICENSE_NOT_FOUND"
	ErrCodeTeamNotFound        = "TEAM_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeLicenseNotAvailable = "LICENSE_NOT_AVAILABLE"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeTokenScopeMismatch  = "TOKEN_SCOPE_MISMATCH"
	ErrCodeAssignmentCooldown  = "LICENSE_ASSIGNMENT_COOLDOWN"
)
