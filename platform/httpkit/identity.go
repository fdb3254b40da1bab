// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated staff member, independent of Gin.
type Identity interface {
	UserID() uuid.UUID
	Roles() []string
	HasRole(role string) bool
	DisplayName() string
	Email() string
	// Sites lists the site location ids the user is a member of.
	Sites() []string
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	roles         []string
	name          string
	email         string
	sites         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID       { return i.userID }
func (i *identity) Roles() []string         { return i.roles }
func (i *identity) DisplayName() string     { return i.name }
func (i *identity) Email() string           { return i.email }
func (i *identity) Sites() []string         { return i.sites }
func (i *identity) IsAuthenticated() bool   { return i.authenticated }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	return &identity{
		userID:        uid,
		roles:         c.GetStringSlice(ContextRolesKey),
		name:          c.GetString(ContextNameKey),
		email:         c.GetString(ContextEmailKey),
		sites:         c.GetStringSlice(ContextSitesKey),
		authenticated: true,
	}
}

// MustGetIdentity aborts with 401 and returns nil when unauthenticated.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
