package domain

import (
	"encoding/json"
	"fmt"
)

// License represents a single license as returned by the remote API.
// Lifecycle (creation, destruction) is entirely server-side; the harness
// only observes and mutates assignment and team-ownership state.
type License struct {
	LicenseID                  string        `json:"licenseId"`
	Product                    Product       `json:"product"`
	Team                       TeamRef       `json:"team"`
	Assignee                   *Assignee     `json:"assignee,omitempty"`
	IsAvailableToAssign        bool          `json:"isAvailableToAssign"`
	IsTransferableBetweenTeams bool          `json:"isTransferableBetweenTeams"`
	IsSuspended                bool          `json:"isSuspended"`
	IsTrial                    bool          `json:"isTrial"`
	Subscription               *Subscription `json:"subscription,omitempty"`
}

// Product identifies the product a license is for.
type Product struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// TeamRef identifies a team. Teams are keyed by integer ID server-side.
type TeamRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// Subscription is the validity window of a license.
type Subscription struct {
	ValidFromDate  string `json:"validFromDate,omitempty"`
	ValidUntilDate string `json:"validUntilDate,omitempty"`
}

// Assignee discriminator values.
const (
	AssigneeTypeUser       = "USER"
	AssigneeTypeServer     = "SERVER"
	AssigneeTypeLicenseKey = "LICENSE_KEY"
)

// Assignee is the polymorphic holder of an assigned license. Exactly one of
// User, Server, or LicenseKey is non-nil, selected by Type. An unknown
// discriminator is preserved in Type with all arms nil so new server-side
// assignee kinds do not break decoding.
type Assignee struct {
	Type       string
	User       *AssigneeUser
	Server     *AssigneeServer
	LicenseKey *AssigneeLicenseKey
}

// AssigneeUser is a license assigned to a named user.
type AssigneeUser struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AssigneeServer is a license assigned to a floating license server.
type AssigneeServer struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// AssigneeLicenseKey is a license materialized as an offline activation key.
type AssigneeLicenseKey struct {
	Name string `json:"name,omitempty"`
}

// assigneeWire is the on-the-wire shape of Assignee.
type assigneeWire struct {
	Type       string              `json:"type"`
	User       *AssigneeUser       `json:"user,omitempty"`
	Server     *AssigneeServer     `json:"server,omitempty"`
	LicenseKey *AssigneeLicenseKey `json:"licenseKey,omitempty"`
}

// UnmarshalJSON decodes the tagged union, keeping only the arm named by the
// discriminator even if the server echoes more than one.
func (a *Assignee) UnmarshalJSON(data []byte) error {
	var w assigneeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode assignee: %w", err)
	}
	*a = Assignee{Type: w.Type}
	switch w.Type {
	case AssigneeTypeUser:
		a.User = w.User
	case AssigneeTypeServer:
		a.Server = w.Server
	case AssigneeTypeLicenseKey:
		a.LicenseKey = w.LicenseKey
	}
	return nil
}

// MarshalJSON encodes only the arm matching the discriminator.
func (a Assignee) MarshalJSON() ([]byte, error) {
	w := assigneeWire{Type: a.Type}
	switch a.Type {
	case AssigneeTypeUser:
		w.User = a.User
	case AssigneeTypeServer:
		w.Server = a.Server
	case AssigneeTypeLicenseKey:
		w.LicenseKey = a.LicenseKey
	}
	return json.Marshal(w)
}

// UserAssignee builds a USER assignee from contact details.
func UserAssignee(email, firstName, lastName string) *Assignee {
	return &Assignee{
		Type: AssigneeTypeUser,
		User: &AssigneeUser{Email: email, FirstName: firstName, LastName: lastName},
	}
}

// Email returns the assignee's user email, or "" when the license is not
// assigned to a user.
func (a *Assignee) Email() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.Email
}

// IsAssigned reports whether the license has any assignee.
func (l *License) IsAssigned() bool {
	return l.Assignee != nil && l.Assignee.Type != ""
}
