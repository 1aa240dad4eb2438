package domain

// Contact is the person a license is assigned to.
type Contact struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// LicenseSelector picks any available license by product within a team.
// Mutually exclusive with an explicit license ID; when both are sent the
// server resolves the explicit ID and ignores the selector.
type LicenseSelector struct {
	ProductCode string `json:"productCode" validate:"required"`
	Team        int    `json:"team" validate:"required"`
}

// AssignRequest is the body of POST /customer/licenses/assign. Build it with
// AssignByLicenseID or AssignFromPool so exactly one selector is present;
// absent optional fields are omitted from the payload, never sent as null.
type AssignRequest struct {
	Contact                      Contact          `json:"contact" validate:"required"`
	IncludeOfflineActivationCode bool             `json:"includeOfflineActivationCode"`
	SendEmail                    bool             `json:"sendEmail"`
	LicenseID                    string           `json:"licenseId,omitempty"`
	License                      *LicenseSelector `json:"license,omitempty"`
}

// AssignByLicenseID builds an assign request for one specific license.
func AssignByLicenseID(contact Contact, licenseID string) AssignRequest {
	return AssignRequest{Contact: contact, LicenseID: licenseID}
}

// AssignFromPool builds an assign request that lets the server pick any
// available license for the product within the team.
func AssignFromPool(contact Contact, productCode string, teamID int) AssignRequest {
	return AssignRequest{
		Contact: contact,
		License: &LicenseSelector{ProductCode: productCode, Team: teamID},
	}
}

// ChangeTeamRequest is the body of POST /customer/changeLicensesTeam.
// An empty LicenseIDs list is a valid no-op, so the slice is always
// serialized as an array, never as null.
type ChangeTeamRequest struct {
	LicenseIDs   []string `json:"licenseIds"`
	TargetTeamID int      `json:"targetTeamId"`
}

// NewChangeTeamRequest builds a change-team request with a non-nil ID list.
func NewChangeTeamRequest(targetTeamID int, licenseIDs ...string) ChangeTeamRequest {
	ids := make([]string, 0, len(licenseIDs))
	ids = append(ids, licenseIDs...)
	return ChangeTeamRequest{LicenseIDs: ids, TargetTeamID: targetTeamID}
}

// ChangeTeamResponse carries the IDs that actually moved. The documented
// API surface exposes only this single list; no richer transferred versus
// not-transferred split exists.
type ChangeTeamResponse struct {
	TransferredLicenseIDs []string `json:"transferredLicenseIds"`
}
