package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Role is a staff role as carried in the access token.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOAM         Role = "oam"
	RolePI          Role = "pi"
	RoleSubI        Role = "sub_i"
	RoleCoordinator Role = "coordinator"
	RoleViewer      Role = "viewer"
	RoleSystem      Role = "system"
)

var roleLabels = map[Role]string{
	RoleAdmin:       "Admin",
	RoleOAM:         "OAM",
	RolePI:          "PI",
	RoleSubI:        "Sub-I",
	RoleCoordinator: "Coordinator",
	RoleViewer:      "Viewer",
	RoleSystem:      "System",
}

// rolePrecedence picks the primary role when a user holds several.
var rolePrecedence = []Role{RoleAdmin, RoleOAM, RolePI, RoleSubI, RoleCoordinator, RoleViewer}

func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return "Staff"
}

// PrimaryRole returns the highest ranked known role in roles, or RoleViewer.
func PrimaryRole(roles []string) Role {
	held := make(map[Role]bool, len(roles))
	for _, r := range roles {
		held[Role(strings.ToLower(strings.TrimSpace(r)))] = true
	}
	for _, r := range rolePrecedence {
		if held[r] {
			return r
		}
	}
	return RoleViewer
}

// Actor is the staff member (or system process) performing an action.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	Name   string
	Email  string
	// Sites are the site location ids the actor is a member of.
	Sites []string
}

// SystemActor attributes automated changes such as trial closure.
func SystemActor() Actor {
	return Actor{Role: RoleSystem, Name: "system"}
}

func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

// IsAdministrator is true for roles allowed to override terminal statuses.
func (a Actor) IsAdministrator() bool {
	return a.Role == RoleAdmin || a.Role == RoleOAM || a.IsSystem()
}

// CanRead reports whether the actor may see leads of siteID. An empty
// siteID is the unclaimed pool, visible to administrators only.
func (a Actor) CanRead(siteID string) bool {
	if a.IsAdministrator() {
		return true
	}
	return siteID != "" && a.memberOf(siteID)
}

// CanWrite is CanRead minus read-only viewers.
func (a Actor) CanWrite(siteID string) bool {
	if a.IsAdministrator() {
		return true
	}
	return a.Role != RoleViewer && a.CanRead(siteID)
}

func (a Actor) memberOf(siteID string) bool {
	for _, s := range a.Sites {
		if s == siteID {
			return true
		}
	}
	return false
}

// Label renders the audit attribution, e.g. "PI (Dana Whitfield)". The
// identity is the display name, falling back to the email. The raw user
// id is never used.
func (a Actor) Label() string {
	if a.IsSystem() {
		return "system"
	}
	identity := strings.TrimSpace(a.Name)
	if identity == "" {
		identity = strings.TrimSpace(a.Email)
	}
	if identity == "" {
		return a.Role.Label()
	}
	return fmt.Sprintf("%s (%s)", a.Role.Label(), identity)
}

var numericLabel = regexp.MustCompile(`^\s*\d+\s*$`)

// ValidateActorLabel rejects blank labels and labels that are only a
// numeric or uuid identifier.
func ValidateActorLabel(label string) error {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return fmt.Errorf("actor label is empty")
	}
	if numericLabel.MatchString(trimmed) {
		return fmt.Errorf("actor label %q is a raw numeric id", trimmed)
	}
	if _, err := uuid.Parse(trimmed); err == nil {
		return fmt.Errorf("actor label %q is a raw uuid", trimmed)
	}
	return nil
}
