package e2e

import (
	"context"
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

// ChangeTeamLiveTestSuite covers POST /customer/licenses/change-team.
type ChangeTeamLiveTestSuite struct {
	suite.Suite
	client *client.Client
	coord  *fixture.Coordinator
}

func (s *ChangeTeamLiveTestSuite) SetupTest() {
	skipUnlessLive(s.T())
	s.client = newLiveClient(s.T())
	s.coord = newCoordinator(s.T(), s.client)
}

// teamLicenseIDs fetches a team's license IDs as a set.
func (s *ChangeTeamLiveTestSuite) teamLicenseIDs(ctx context.Context, teamID int) map[string]bool {
	s.T().Helper()

	res, err := s.client.TeamLicenses(ctx, teamID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)

	var licenses []domain.License
	require.NoError(s.T(), res.DecodeInto(&licenses))

	ids := make(map[string]bool, len(licenses))
	for _, lic := range licenses {
		ids[lic.LicenseID] = true
	}
	return ids
}

func (s *ChangeTeamLiveTestSuite) TestTransferRoundTrip() {
	ctx := context.Background()
	pool := s.coord.EnsureAssignable(ctx, 1, true)
	moved := pool[0].LicenseID

	res, err := s.client.ChangeLicensesTeam(ctx,
		domain.NewChangeTeamRequest(liveCfg.TargetTeamID, moved))
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)
	s.coord.TrackMoved(moved)

	var out domain.ChangeTeamResponse
	require.NoError(s.T(), res.DecodeInto(&out))
	assert.Contains(s.T(), out.TransferredLicenseIDs, moved)

	// The license shows up in the target team's listing and leaves the
	// source team's.
	assert.True(s.T(), s.teamLicenseIDs(ctx, liveCfg.TargetTeamID)[moved])
	assert.False(s.T(), s.teamLicenseIDs(ctx, liveCfg.SourceTeamID)[moved])
}

func (s *ChangeTeamLiveTestSuite) TestEmptyLicenseListIsANoOp() {
	res, err := s.client.ChangeLicensesTeam(context.Background(),
		domain.NewChangeTeamRequest(liveCfg.TargetTeamID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, res.StatusCode, res.RawBody)

	var out domain.ChangeTeamResponse
	require.NoError(s.T(), res.DecodeInto(&out))
	assert.Empty(s.T(), out.TransferredLicenseIDs)
}

func (s *ChangeTeamLiveTestSuite) TestZeroTargetTeamIsNotFound() {
	res, err := s.client.ChangeLicensesTeam(context.Background(),
		domain.NewChangeTeamRequest(0))
	require.NoError(s.T(), err)

	assert.Equal(s.T(), apierr.KindNotFound, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func (s *ChangeTeamLiveTestSuite) TestTeamScopedCredentialIsDenied() {
	if !liveCfg.HasTeamKey() {
		s.T().Skip("AM_TEAM_API_KEY not set")
	}
	teamClient := newLiveClient(s.T(), client.WithAPIKey(liveCfg.TeamAPIKey))

	res, err := teamClient.ChangeLicensesTeam(context.Background(),
		domain.NewChangeTeamRequest(liveCfg.TargetTeamID))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), apierr.KindAuth, res.Kind(),
		"status %d body %s", res.StatusCode, res.RawBody)
}

func TestChangeTeamLive(t *testing.T) {
	suite.Run(t, new(ChangeTeamLiveTestSuite))
}
