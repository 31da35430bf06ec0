package auth

// Package auth contains domain-level types for the gateway's authentication
// context. It is pure and free of framework/adapter concerns.

import (
	"time"

	"github.com/google/uuid"
)

// Context is the authenticated principal attached to an inbound gateway
// request. It is extracted once, at the edge, and threaded through the
// dispatcher and mesh orchestrator so every backend call and join-record
// operation can be organization-scoped.
type Context struct {
	// Subject is the bearer token's "sub" claim, verbatim.
	Subject string

	// OrgID identifies the organization the caller belongs to. Nil when the
	// token carries no org_id; join and extend requests are then rejected
	// with OrgRequired, while other requests proceed unscoped.
	OrgID *uuid.UUID

	// UserID identifies the caller, when the token carries a user identity
	// distinct from the organization (e.g. a service account has none).
	UserID *uuid.UUID

	// RawToken is the original bearer token, forwarded to backend logic
	// modules so they can perform their own authorization.
	RawToken string

	// Groups carries the token's group claims, used by the admin registry
	// HTTP surface to gate access independently of organization scoping.
	Groups []string

	ExpiresAt time.Time
}

// HasOrg reports whether the context carries an organization identity.
func (c Context) HasOrg() bool {
	return c.OrgID != nil
}

// InGroup reports whether the context's group claims contain group.
func (c Context) InGroup(group string) bool {
	if group == "" {
		return false
	}
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}
