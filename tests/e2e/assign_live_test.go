package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"amtest/internal/client"
	apierr "amtest/internal/errors"
	"amtest/internal/fixture"
	"amtest/pkg/contracts/domain"
)

// AssignLiveTestSuite covers POST /customer/licenses/assign and
// POST /customer/licenses/revoke, positive and negative.
type AssignLiveTestSuite struct {
	suite.Suite
	client *client.Client
	coord  *fixture.Coordinator
}

func (s *AssignLiveTestSuite) SetupTest() {
	skipUnlessLive(s.T())
	s.client = newLiveClient(s.T())
	s.coord = newCoordinator(s.T(), s.client)
}

func (s *AssignLiveTestSuite) contact() domain.Contact {
	return domain.Contact{
		Email:     liveCfg.TestUser.Email,
		FirstName: liveCfg.TestUser.FirstName,
		LastName:  liveCfg.TestUser.LastName,
	}
}

func (s *AssignLiveTestSuite) TestAssignByExplicitLicenseID() {
	ctx := context.Background()
	pool := s.coord.EnsureAssignable(ctx, 1, false)
	target := pool[0]

	res, err := s.client.AssignLicense(ctx, domain.AssignByLicenseID(s.contact(), target.LicenseID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)
	s.coord.TrackAssigned(target.LicenseID)

	// An assigned license stops being assignable and names the contact.
	res, err = s.client.License(ctx, target.LicenseID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)

	var lic domain.License
	require.NoError(s.T(), res.DecodeInto(&lic))
	assert.False(s.T(), lic.IsAvailableToAssign)
	require.NotNil(s.T(), lic.Assignee)
	assert.Equal(s.T(), domain.AssigneeTypeUser, lic.Assignee.Type)
	assert.Equal(s.T(), s.contact().Email, lic.Assignee.Email())
}

func (s *AssignLiveTestSuite) TestRevokeRestoresAvailability() {
	ctx := context.Background()
	pool := s.coord.EnsureAssignable(ctx, 1, false)
	target := pool[0]

	res, err := s.client.AssignLicense(ctx, domain.AssignByLicenseID(s.contact(), target.LicenseID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)
	s.coord.TrackAssigned(target.LicenseID)

	res, err = s.client.RevokeLicense(ctx, target.LicenseID)
	require.NoError(s.T(), err)

	switch res.Kind() {
	case apierr.KindNone:
		res, err = s.client.License(ctx, target.LicenseID)
		require.NoError(s.T(), err)
		var lic domain.License
		require.NoError(s.T(), res.DecodeInto(&lic))
		assert.True(s.T(), lic.IsAvailableToAssign, "revoke must restore assignability")
	case apierr.KindCooldown:
		// The server may refuse an immediate revoke after assignment;
		// reconciliation retries later and the residue is logged.
		s.T().Logf("revoke hit the assignment cooldown: %s", res.RawBody)
	default:
		s.T().Fatalf("unexpected revoke outcome %d: %s", res.StatusCode, res.RawBody)
	}
}

func (s *AssignLiveTestSuite) TestAssignFromProductPool() {
	ctx := context.Background()
	s.coord.EnsureAssignable(ctx, 1, false)

	res, err := s.client.AssignLicense(ctx,
		domain.AssignFromPool(s.contact(), liveCfg.ProductCode, liveCfg.SourceTeamID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)

	// The server chose the license; find it by assignee to track it.
	res, err = s.client.Licenses(ctx, client.LicenseFilter{
		AssignmentStatus: client.AssignmentStatusAssigned,
		TeamID:           liveCfg.SourceTeamID,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)

	var assigned []domain.License
	require.NoError(s.T(), res.DecodeInto(&assigned))

	var mine []string
	for _, lic := range assigned {
		if lic.Assignee.Email() == s.contact().Email {
			mine = append(mine, lic.LicenseID)
			s.coord.TrackAssigned(lic.LicenseID)
		}
	}
	assert.NotEmpty(s.T(), mine, "an assigned license must carry the contact email")
}

func (s *AssignLiveTestSuite) TestAssignWithNeitherSelectorIsValidationFailure() {
	// Build the invalid payload the typed constructors refuse to produce.
	req := domain.AssignRequest{Contact: s.contact()}
	body, err := json.Marshal(req)
	require.NoError(s.T(), err)

	res, err := s.client.PostRaw(context.Background(), "/customer/licenses/assign", string(body))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), apierr.KindValidation, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *AssignLiveTestSuite) TestAssignExplicitIDTakesPrecedenceOverSelector() {
	// A bogus explicit ID next to a valid selector must resolve the ID and
	// fail not-found; the selector is ignored.
	req := domain.AssignRequest{
		Contact:   s.contact(),
		LicenseID: "DOESNOTEXIST",
		License:   &domain.LicenseSelector{ProductCode: liveCfg.ProductCode, Team: liveCfg.SourceTeamID},
	}
	body, err := json.Marshal(req)
	require.NoError(s.T(), err)

	res, err := s.client.PostRaw(context.Background(), "/customer/licenses/assign", string(body))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), apierr.KindNotFound, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *AssignLiveTestSuite) TestAssignUnknownProductIsNotFound() {
	res, err := s.client.AssignLicense(context.Background(),
		domain.AssignFromPool(s.contact(), "NOTAPRODUCT", liveCfg.SourceTeamID))
	require.NoError(s.T(), err)

	assert.Equal(s.T(), apierr.KindNotFound, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *AssignLiveTestSuite) TestAssignMalformedBodyIsValidationFailure() {
	res, err := s.client.PostRaw(context.Background(), "/customer/licenses/assign", `{"contact": {`)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), apierr.KindValidation, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *AssignLiveTestSuite) TestAssignWithoutCredentialIsAuthFailure() {
	req := domain.AssignByLicenseID(s.contact(), "IRRELEVANT")
	body, err := json.Marshal(req)
	require.NoError(s.T(), err)

	res, err := s.client.PostRaw(context.Background(), "/customer/licenses/assign", string(body),
		client.WithCredential(""))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), apierr.KindAuth, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *AssignLiveTestSuite) TestAssignWithTeamScopedCredentialIsAuthFailure() {
	if !liveCfg.HasTeamKey() {
		s.T().Skip("AM_TEAM_API_KEY not set")
	}
	teamClient := newLiveClient(s.T(), client.WithAPIKey(liveCfg.TeamAPIKey))

	res, err := teamClient.AssignLicense(context.Background(),
		domain.AssignFromPool(s.contact(), liveCfg.ProductCode, liveCfg.SourceTeamID))
	require.NoError(s.T(), err)

	// Scope failures must never masquerade as validation or not-found.
	assert.Equal(s.T(), apierr.KindAuth, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func TestAssignLive(t *testing.T) {
	suite.Run(t, new(AssignLiveTestSuite))
}
