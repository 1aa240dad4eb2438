// Package mockserver is an in-memory implementation of the remote
// account-management API surface. It exists so the client, the fixture
// coordinator, and the negative scenarios can be tested hermetically; the
// live suites under tests/e2e exercise the real service. Semantics mirror
// the documented surface: header authentication, token scopes, exclusive
// assign selectors with explicit-ID precedence, the revoke cooldown, and
// the single transferred-IDs change-team response.
package mockserver

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"amtest/pkg/contracts/domain"
)

// Config seeds a Server with its credentials and policies.
type Config struct {
	// CustomerCode is the organization code required on every call.
	CustomerCode string
	// CustomerKey is the organization-scoped credential.
	CustomerKey string
	// TeamKeys maps team-scoped credentials to the team they reach.
	TeamKeys map[string]int
	// Cooldown is how long after assignment a license refuses revocation.
	// Zero disables the cooldown.
	Cooldown time.Duration
}

type licenseRecord struct {
	license    domain.License
	assignedAt time.Time
}

// Server holds the mutable in-memory account state behind a chi router.
type Server struct {
	cfg Config

	mu          sync.Mutex
	customerKey string
	teamKeys    map[string]int
	teams       map[int]string
	licenses    map[string]*licenseRecord

	validate *validator.Validate
	router   chi.Router
	now      func() time.Time
}

// New builds an empty server; seed it with AddTeam and the license helpers.
func New(cfg Config) *Server {
	s := &Server{
		cfg:         cfg,
		customerKey: cfg.CustomerKey,
		teamKeys:    make(map[string]int),
		teams:       make(map[int]string),
		licenses:    make(map[string]*licenseRecord),
		validate:    validator.New(),
		now:         time.Now,
	}
	for key, teamID := range cfg.TeamKeys {
		s.teamKeys[key] = teamID
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP surface, for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetNow replaces the clock, letting tests step past the cooldown window.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddTeam registers a team.
func (s *Server) AddTeam(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[id] = name
}

// AddLicense inserts a license verbatim.
func (s *Server) AddLicense(lic domain.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[lic.LicenseID] = &licenseRecord{license: lic}
}

// SeedAvailable creates n unassigned, assignable licenses in a team and
// returns their IDs in insertion order.
func (s *Server) SeedAvailable(teamID int, product domain.Product, n int, transferable bool) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := newLicenseID()
		s.AddLicense(domain.License{
			LicenseID:                  id,
			Product:                    product,
			Team:                       domain.TeamRef{ID: teamID, Name: s.teamName(teamID)},
			IsAvailableToAssign:        true,
			IsTransferableBetweenTeams: transferable,
		})
		ids = append(ids, id)
	}
	return ids
}

// SeedAssigned creates a license already assigned to email, with the
// assignment timestamped at assignedAt so cooldown behavior is steerable.
func (s *Server) SeedAssigned(teamID int, product domain.Product, email string, transferable bool, assignedAt time.Time) string {
	id := newLicenseID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[id] = &licenseRecord{
		license: domain.License{
			LicenseID:                  id,
			Product:                    product,
			Team:                       domain.TeamRef{ID: teamID, Name: s.teams[teamID]},
			Assignee:                   domain.UserAssignee(email, "Seeded", "User"),
			IsAvailableToAssign:        false,
			IsTransferableBetweenTeams: transferable,
		},
		assignedAt: assignedAt,
	}
	return id
}

// License returns a copy of the stored license for assertions.
func (s *Server) License(id string) (domain.License, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.licenses[id]
	if !ok {
		return domain.License{}, false
	}
	return rec.license, true
}

// CustomerKey returns the currently valid organization-scoped credential
// (it changes when /token/rotate is called).
func (s *Server) CustomerKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerKey
}

func (s *Server) teamName(id int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teams[id]
}

// teamLicenseList returns the team's licenses sorted by ID for stable
// listings. Caller must hold s.mu.
func (s *Server) teamLicenseList(teamID int) []domain.License {
	var out []domain.License
	for _, rec := range s.licenses {
		if rec.license.Team.ID == teamID {
			out = append(out, rec.license)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicenseID < out[j].LicenseID })
	return out
}

func newLicenseID() string {
	return fmt.Sprintf("L-%s", uuid.New().String()[:13])
}
