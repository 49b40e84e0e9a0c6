package session

import (
	"errors"
	"slices"
	"sync"

	"github.com/nvbf/tournament-desk/models"
)

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoTournament = errors.New("grant without tournament")
)

// Authorization is a point-in-time copy of what a session may do.
// Roles and Permissions hold everywhere; Scope and Granted only for TournamentID.
type Authorization struct {
	UserID       string              `json:"userId,omitempty"`
	Roles        []models.Role       `json:"roles"`
	Permissions  []models.Permission `json:"permissions"`
	TournamentID string              `json:"tournamentId,omitempty"`
	Scope        models.Role         `json:"scope,omitempty"`
	Granted      []models.Permission `json:"granted,omitempty"`
}

// Session holds the authorization of this client. Only login and key redemption change it.
type Session struct {
	id string

	mu          sync.RWMutex
	userID      string
	roles       map[models.Role]struct{}
	permissions map[models.Permission]struct{}

	// set by a redeemed key
	tournamentID string
	scope        models.Role
}

func New(id string, roles ...models.Role) *Session {
	s := &Session{id: id}
	s.reset(roles)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Login replaces the roles with those of the authenticated user. A different user drops the grant.
func (s *Session) Login(userID string, roles []models.Role) error {
	for _, r := range roles {
		if !r.IsValid() {
			return ErrInvalidRole
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.userID {
		s.tournamentID, s.scope = "", ""
	}
	s.userID = userID
	s.reset(roles)
	return nil
}

// Grant gives the session scope on tournamentID only. A later grant replaces it.
func (s *Session) Grant(scope models.Role, tournamentID string) error {
	if !scope.IsValid() {
		return ErrInvalidRole
	}
	if tournamentID == "" {
		return ErrNoTournament
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.tournamentID = tournamentID
	return nil
}

// Has reports a permission the session holds for every tournament.
func (s *Session) Has(permission models.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.permissions[permission]
	return ok
}

// Allows reports whether the session may use permission on tournamentID, either everywhere or
// through a grant for that tournament.
func (s *Session) Allows(permission models.Permission, tournamentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.permissions[permission]; ok {
		return true
	}
	return s.grantCovers(tournamentID) && slices.Contains(models.PermissionsFor(s.scope), permission)
}

func (s *Session) HasRole(role models.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[role]
	return ok
}

// HasRoleFor is HasRole with the grant for tournamentID taken into account.
func (s *Session) HasRoleFor(role models.Role, tournamentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.roles[role]; ok {
		return true
	}
	return s.grantCovers(tournamentID) && s.scope == role
}

func (s *Session) grantCovers(tournamentID string) bool {
	return s.scope != "" && tournamentID != "" && tournamentID == s.tournamentID
}

func (s *Session) Snapshot() Authorization {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auth := Authorization{UserID: s.userID, TournamentID: s.tournamentID, Scope: s.scope}
	for r := range s.roles {
		auth.Roles = append(auth.Roles, r)
	}
	for p := range s.permissions {
		auth.Permissions = append(auth.Permissions, p)
	}
	slices.Sort(auth.Roles)
	slices.Sort(auth.Permissions)
	if s.scope != "" {
		auth.Granted = slices.Sorted(slices.Values(models.PermissionsFor(s.scope)))
	}
	return auth
}

func (s *Session) reset(roles []models.Role) {
	s.roles = make(map[models.Role]struct{})
	s.permissions = make(map[models.Permission]struct{})
	for _, r := range roles {
		s.roles[r] = struct{}{}
		for _, p := range models.PermissionsFor(r) {
			s.permissions[p] = struct{}{}
		}
	}
}
