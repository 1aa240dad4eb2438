package mockserver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"amtest/pkg/contracts/domain"
)

type scopeKeyType struct{}

var scopeKey scopeKeyType

// scope is what the presented credential reaches: the whole organization or
// a single team.
type scope struct {
	customer bool
	teamID   int
	key      string
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.authenticate)

	r.Get("/token", s.handleTokenInfo)
	r.Post("/token/rotate", s.handleRotateToken)

	r.Route("/customer", func(r chi.Router) {
		r.Get("/licenses", s.handleListLicenses)
		r.Get("/licenses/{licenseID}", s.handleGetLicense)
		r.Get("/teams/{teamID}/licenses", s.handleTeamLicenses)
		r.Post("/licenses/assign", s.handleAssign)
		r.Post("/licenses/revoke", s.handleRevoke)
		r.Post("/changeLicensesTeam", s.handleChangeTeam)
	})

	return r
}

// authenticate enforces the credential and organization-code headers on
// every endpoint and stashes the resolved scope in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(domain.HeaderAPIKey)
		code := r.Header.Get(domain.HeaderCustomerCode)

		sc, ok := s.resolveKey(key)
		if !ok {
			writeErr(w, r, http.StatusUnauthorized, domain.ErrCodeInvalidToken,
				"missing or invalid credential")
			return
		}
		if code != s.cfg.CustomerCode {
			writeErr(w, r, http.StatusUnauthorized, domain.ErrCodeInvalidToken,
				"missing or unknown organization code")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey, sc)))
	})
}

func (s *Server) resolveKey(key string) (scope, bool) {
	if key == "" {
		return scope{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.customerKey {
		return scope{customer: true, key: key}, true
	}
	if teamID, ok := s.teamKeys[key]; ok {
		return scope{teamID: teamID, key: key}, true
	}
	return scope{}, false
}

func scopeFrom(r *http.Request) scope {
	sc, _ := r.Context().Value(scopeKey).(scope)
	return sc
}

func writeErr(w http.ResponseWriter, r *http.Request, status int, code, description string) {
	render.Status(r, status)
	render.JSON(w, r, domain.APIErrorBody{Code: code, Description: description})
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	if sc.customer {
		render.JSON(w, r, domain.TokenInfo{Type: domain.TokenTypeCustomer, Role: "ADMIN"})
		return
	}
	render.JSON(w, r, domain.TokenInfo{
		Type:  domain.TokenTypeTeam,
		Teams: []domain.TeamRef{{ID: sc.teamID, Name: s.teamName(sc.teamID)}},
	})
}

func (s *Server) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	newKey := "mock-" + uuid.New().String()

	s.mu.Lock()
	if sc.customer {
		s.customerKey = newKey
	} else {
		delete(s.teamKeys, sc.key)
		s.teamKeys[newKey] = sc.teamID
	}
	s.mu.Unlock()

	render.JSON(w, r, domain.RotateTokenResponse{Token: newKey})
}

func (s *Server) handleListLicenses(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	teamID := 0
	if raw := r.URL.Query().Get("teamId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation, "teamId must be an integer")
			return
		}
		teamID = id
	}

	status := r.URL.Query().Get("assignmentStatus")
	switch status {
	case "", "ASSIGNED", "AVAILABLE":
	default:
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation,
			fmt.Sprintf("unknown assignmentStatus %q", status))
		return
	}

	if !sc.customer {
		if teamID != 0 && teamID != sc.teamID {
			writeErr(w, r, http.StatusForbidden, domain.ErrCodeTokenScopeMismatch,
				"credential is scoped to another team")
			return
		}
		teamID = sc.teamID
	}

	s.mu.Lock()
	var out []domain.License
	for _, rec := range s.licenses {
		if teamID != 0 && rec.license.Team.ID != teamID {
			continue
		}
		if status == "ASSIGNED" && !rec.license.IsAssigned() {
			continue
		}
		if status == "AVAILABLE" && !rec.license.IsAvailableToAssign {
			continue
		}
		out = append(out, rec.license)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LicenseID < out[j].LicenseID })
	if out == nil {
		out = []domain.License{}
	}
	render.JSON(w, r, out)
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	licenseID := chi.URLParam(r, "licenseID")

	s.mu.Lock()
	rec, ok := s.licenses[licenseID]
	var lic domain.License
	if ok {
		lic = rec.license
	}
	s.mu.Unlock()

	// Team-scoped credentials cannot see licenses outside their team; the
	// license's existence is not disclosed.
	if !ok || (!sc.customer && lic.Team.ID != sc.teamID) {
		writeErr(w, r, http.StatusNotFound, domain.ErrCodeLicenseNotFound,
			fmt.Sprintf("license %q not found", licenseID))
		return
	}
	render.JSON(w, r, lic)
}

func (s *Server) handleTeamLicenses(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)

	teamID, err := strconv.Atoi(chi.URLParam(r, "teamID"))
	if err != nil {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation, "team id must be an integer")
		return
	}

	s.mu.Lock()
	_, exists := s.teams[teamID]
	licenses := s.teamLicenseList(teamID)
	s.mu.Unlock()

	if !exists {
		writeErr(w, r, http.StatusNotFound, domain.ErrCodeTeamNotFound,
			fmt.Sprintf("team %d not found", teamID))
		return
	}
	if !sc.customer && teamID != sc.teamID {
		writeErr(w, r, http.StatusForbidden, domain.ErrCodeTokenScopeMismatch,
			"credential is scoped to another team")
		return
	}
	render.JSON(w, r, licenses)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	// Scope is checked before anything else: a team-scoped credential gets
	// an authorization failure even for payloads that would not validate.
	if !sc.customer {
		writeErr(w, r, http.StatusForbidden, domain.ErrCodeTokenScopeMismatch,
			"assign requires an organization-scoped credential")
		return
	}

	var req domain.AssignRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation, "malformed request body")
		return
	}
	if err := s.validate.Struct(req.Contact); err != nil {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation,
			fmt.Sprintf("invalid contact: %v", err))
		return
	}
	if req.LicenseID == "" && req.License == nil {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation,
			"either licenseId or license must be provided")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *licenseRecord
	if req.LicenseID != "" {
		// Explicit license ID takes precedence; the selector, if also
		// present, is ignored entirely.
		var ok bool
		rec, ok = s.licenses[req.LicenseID]
		if !ok {
			writeErr(w, r, http.StatusNotFound, domain.ErrCodeLicenseNotFound,
				fmt.Sprintf("license %q not found", req.LicenseID))
			return
		}
	} else {
		sel := req.License
		if sel.ProductCode == "" || sel.Team == 0 {
			writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation,
				"license selector requires productCode and team")
			return
		}
		if _, ok := s.teams[sel.Team]; !ok {
			writeErr(w, r, http.StatusNotFound, domain.ErrCodeTeamNotFound,
				fmt.Sprintf("team %d not found", sel.Team))
			return
		}
		if !s.productKnownLocked(sel.ProductCode) {
			writeErr(w, r, http.StatusNotFound, domain.ErrCodeProductNotFound,
				fmt.Sprintf("product %q not found", sel.ProductCode))
			return
		}
		rec = s.pickAvailableLocked(sel.Team, sel.ProductCode)
		if rec == nil {
			writeErr(w, r, http.StatusBadRequest, domain.ErrCodeLicenseNotAvailable,
				fmt.Sprintf("no available %q license in team %d", sel.ProductCode, sel.Team))
			return
		}
	}

	if !rec.license.IsAvailableToAssign || rec.license.IsSuspended {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeLicenseNotAvailable,
			fmt.Sprintf("license %q is not available to assign", rec.license.LicenseID))
		return
	}

	rec.license.Assignee = domain.UserAssignee(req.Contact.Email, req.Contact.FirstName, req.Contact.LastName)
	rec.license.IsAvailableToAssign = false
	rec.assignedAt = s.now()

	render.JSON(w, r, rec.license)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	if !sc.customer {
		writeErr(w, r, http.StatusForbidden, domain.ErrCodeTokenScopeMismatch,
			"revoke requires an organization-scoped credential")
		return
	}

	licenseID := r.URL.Query().Get("licenseId")
	if licenseID == "" {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation, "licenseId is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.licenses[licenseID]
	if !ok {
		writeErr(w, r, http.StatusNotFound, domain.ErrCodeLicenseNotFound,
			fmt.Sprintf("license %q not found", licenseID))
		return
	}
	if !rec.license.IsAssigned() {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation,
			fmt.Sprintf("license %q is not assigned", licenseID))
		return
	}
	if s.cfg.Cooldown > 0 && s.now().Sub(rec.assignedAt) < s.cfg.Cooldown {
		writeErr(w, r, http.StatusConflict, domain.ErrCodeAssignmentCooldown,
			fmt.Sprintf("license %q was assigned recently and cannot be revoked yet", licenseID))
		return
	}

	rec.license.Assignee = nil
	rec.license.IsAvailableToAssign = !rec.license.IsSuspended

	render.JSON(w, r, rec.license)
}

func (s *Server) handleChangeTeam(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r)
	if !sc.customer {
		writeErr(w, r, http.StatusForbidden, domain.ErrCodeTokenScopeMismatch,
			"change-team requires an organization-scoped credential")
		return
	}

	var req domain.ChangeTeamRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeErr(w, r, http.StatusBadRequest, domain.ErrCodeValidation, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[req.TargetTeamID]; !ok {
		writeErr(w, r, http.StatusNotFound, domain.ErrCodeTeamNotFound,
			fmt.Sprintf("team %d not found", req.TargetTeamID))
		return
	}

	// All-or-nothing: an unknown ID fails the whole request before any
	// license moves.
	for _, id := range req.LicenseIDs {
		if _, ok := s.licenses[id]; !ok {
			writeErr(w, r, http.StatusNotFound, domain.ErrCodeLicenseNotFound,
				fmt.Sprintf("license %q not found", id))
			return
		}
	}

	transferred := []string{}
	targetName := s.teams[req.TargetTeamID]
	for _, id := range req.LicenseIDs {
		rec := s.licenses[id]
		if !rec.license.IsTransferableBetweenTeams || rec.license.IsSuspended {
			continue
		}
		if rec.license.Team.ID == req.TargetTeamID {
			continue
		}
		rec.license.Team = domain.TeamRef{ID: req.TargetTeamID, Name: targetName}
		transferred = append(transferred, id)
	}

	render.JSON(w, r, domain.ChangeTeamResponse{TransferredLicenseIDs: transferred})
}

// productKnownLocked reports whether any license anywhere carries the
// product code. Caller holds s.mu.
func (s *Server) productKnownLocked(code string) bool {
	for _, rec := range s.licenses {
		if rec.license.Product.Code == code {
			return true
		}
	}
	return false
}

// pickAvailableLocked returns the first available license by ID order for a
// (team, product) pair, or nil. Caller holds s.mu.
func (s *Server) pickAvailableLocked(teamID int, productCode string) *licenseRecord {
	var best *licenseRecord
	for _, rec := range s.licenses {
		if rec.license.Team.ID != teamID || rec.license.Product.Code != productCode {
			continue
		}
		if !rec.license.IsAvailableToAssign || rec.license.IsSuspended {
			continue
		}
		if best == nil || rec.license.LicenseID < best.license.LicenseID {
			best = rec
		}
	}
	return best
}
