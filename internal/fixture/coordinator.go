// Package fixture coordinates test preconditions and the reversal of test
// side effects against the remote account-management API.
//
// The remote state (license assignment, team membership) outlives a test
// process, and a server-enforced cooldown can make reversal transiently
// impossible. The coordinator isolates that non-determinism from the
// assertions: an unmet precondition skips the test, a failed reversal is
// logged and left for manual intervention, and neither ever surfaces as a
// false failure of the behavior under test.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"amtest/internal/client"
	"amtest/internal/config"
	"amtest/pkg/contracts/domain"
)

// testingT is the slice of *testing.T the coordinator needs. Narrowed so
// the coordinator's own tests can observe skips.
type testingT interface {
	Helper()
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
}

// Coordinator tracks the licenses a single test assigns or moves and
// guarantees a reconciliation pass on teardown. One instance per test; no
// cross-test shared state.
type Coordinator struct {
	t      testingT
	client *client.Client
	cfg    *config.Config
	logger *slog.Logger

	mu       sync.Mutex
	assigned []string
	moved    []string
}

// New builds a coordinator and registers its reconciliation with t.Cleanup,
// so reversal runs whether the test passes or fails.
func New(t testingT, c *client.Client, cfg *config.Config, logger *slog.Logger) *Coordinator {
	coord := &Coordinator{
		t:      t,
		client: c,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "fixture")),
	}
	t.Cleanup(func() {
		coord.Reconcile(context.Background())
	})
	return coord
}

// EnsureAssignable guarantees at least n assignable licenses exist in the
// configured source team, revoking currently-assigned candidates if the
// count is short. Candidates inside the revoke cooldown are skipped. When
// the pool cannot meet the threshold the calling test is skipped with a
// shortfall diagnostic; that is an environment problem, not a failure of
// the behavior under test.
func (c *Coordinator) EnsureAssignable(ctx context.Context, n int, transferable bool) []domain.License {
	c.t.Helper()

	res, err := c.client.TeamLicenses(ctx, c.cfg.SourceTeamID)
	if err != nil {
		c.t.Skipf("precondition: cannot list team %d licenses: %v", c.cfg.SourceTeamID, err)
		return nil
	}
	if !res.IsSuccess() {
		c.t.Skipf("precondition: listing team %d licenses returned %d: %s",
			c.cfg.SourceTeamID, res.StatusCode, res.RawBody)
		return nil
	}

	var licenses []domain.License
	if err := res.DecodeInto(&licenses); err != nil {
		c.t.Skipf("precondition: %v", err)
		return nil
	}

	eligible := func(lic domain.License) bool {
		if lic.IsSuspended {
			return false
		}
		return !transferable || lic.IsTransferableBetweenTeams
	}

	var available []domain.License
	var candidates []domain.License
	for _, lic := range licenses {
		switch {
		case !eligible(lic):
		case lic.IsAvailableToAssign:
			available = append(available, lic)
		case lic.IsAssigned():
			candidates = append(candidates, lic)
		}
	}

	for _, candidate := range candidates {
		if len(available) >= n {
			break
		}
		res, err := c.client.RevokeLicense(ctx, candidate.LicenseID)
		if err != nil {
			c.logger.WarnContext(ctx, "precondition revoke failed",
				slog.String("license_id", candidate.LicenseID),
				slog.String("error", err.Error()))
			continue
		}
		if !res.IsSuccess() {
			// Cooldown conflicts are expected here; either way the
			// candidate is unusable and the next one is tried.
			c.logger.WarnContext(ctx, "precondition revoke rejected",
				slog.String("license_id", candidate.LicenseID),
				slog.String("kind", res.Kind().String()),
				slog.Int("status", res.StatusCode),
				slog.String("body", res.RawBody))
			continue
		}
		freed := candidate
		freed.Assignee = nil
		freed.IsAvailableToAssign = true
		available = append(available, freed)
	}

	if len(available) < n {
		kind := "assignable"
		if transferable {
			kind = "assignable transferable"
		}
		c.t.Skipf("precondition: need %d %s licenses in team %d, found %d",
			n, kind, c.cfg.SourceTeamID, len(available))
		return nil
	}
	return available
}

// TrackAssigned registers a license assigned during the test for revocation
// on teardown.
func (c *Coordinator) TrackAssigned(licenseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = append(c.assigned, licenseID)
}

// TrackMoved registers a license moved to the target team during the test
// for transfer back to the source team on teardown.
func (c *Coordinator) TrackMoved(licenseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moved = append(c.moved, licenseID)
}

// Reconcile reverses every tracked side effect: revokes assigned licenses
// and moves transferred licenses back to the source team. The tracked sets
// are cleared atomically with the snapshot, so a second teardown pass is a
// no-op and no license is reconciled twice. Failures are logged with the
// response body and never escalate.
func (c *Coordinator) Reconcile(ctx context.Context) {
	c.mu.Lock()
	assigned, moved := c.assigned, c.moved
	c.assigned, c.moved = nil, nil
	c.mu.Unlock()

	for _, id := range assigned {
		id := id
		c.revert(ctx, "revoke", id, func() (*client.Result, error) {
			return c.client.RevokeLicense(ctx, id)
		})
	}

	if len(moved) > 0 {
		c.revert(ctx, "return to source team", fmt.Sprintf("%v", moved), func() (*client.Result, error) {
			return c.client.ChangeLicensesTeam(ctx,
				domain.NewChangeTeamRequest(c.cfg.SourceTeamID, moved...))
		})
	}
}

// revert runs one reversal call, retrying transport failures and 5xx a few
// times. Cooldown conflicts and other 4xx are final: the server will not
// change its mind, the residue is logged for manual cleanup.
func (c *Coordinator) revert(ctx context.Context, action, subject string, call func() (*client.Result, error)) {
	var lastBody string
	operation := func() error {
		res, err := call()
		if err != nil {
			lastBody = ""
			return err
		}
		if res.IsSuccess() {
			return nil
		}
		lastBody = res.RawBody
		failure := fmt.Errorf("%s returned %d (%s)", action, res.StatusCode, res.Kind())
		if res.StatusCode < 500 {
			return backoff.Permanent(failure)
		}
		return failure
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.HTTP.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.ErrorContext(ctx, "cleanup reversal failed, manual intervention required",
			slog.String("action", action),
			slog.String("subject", subject),
			slog.String("error", err.Error()),
			slog.String("body", lastBody))
	}
}
