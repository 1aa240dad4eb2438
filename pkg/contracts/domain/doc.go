// Package domain contains the wire models for the account-management API.
// These types serve as the Single Source of Truth (SSOT) for every layer of
// the harness: the typed client, the fixture coordinator, the mock server,
// and the test suites all share them.
//
// All types mirror the remote API's JSON exactly. Request builders omit
// absent optional fields from the serialized payload instead of sending
// nulls; the polymorphic license assignee is a tagged union keyed on its
// "type" discriminator.
package domain
