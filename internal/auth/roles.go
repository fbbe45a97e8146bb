// Package auth - roles.go defines the dashboard access levels and the resolver that maps a
// session onto one of them, either from the session's cached value or from group membership.
package auth

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// Role is a dashboard access level. The numeric codes are stored in session caches.
type Role int

const (
	RoleNone     Role = 0
	RoleAdmin    Role = 1
	RoleApprover Role = 2
	RoleViewer   Role = 3
)

// String returns the lower-case role name
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleApprover:
		return "approver"
	case RoleViewer:
		return "viewer"
	default:
		return "none"
	}
}

// Code returns the numeric role code as a string, e.g. "2"
func (r Role) Code() string {
	return strconv.Itoa(int(r))
}

// In reports whether r is one of roles
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

func roleFromCode(n int64) Role {
	if n >= int64(RoleNone) && n <= int64(RoleViewer) {
		return Role(n)
	}
	return RoleNone
}

// NormalizeRole converts a loosely typed cached role value into a Role.
// Integers in 0..3 (and strings holding them) map directly, the aliases admin/approver/viewer
// match case-insensitively, and anything else yields RoleNone.
func NormalizeRole(v any) Role {
	switch val := v.(type) {
	case Role:
		return roleFromCode(int64(val))
	case int:
		return roleFromCode(int64(val))
	case int8:
		return roleFromCode(int64(val))
	case int16:
		return roleFromCode(int64(val))
	case int32:
		return roleFromCode(int64(val))
	case int64:
		return roleFromCode(val)
	case uint8:
		return roleFromCode(int64(val))
	case uint16:
		return roleFromCode(int64(val))
	case uint32:
		return roleFromCode(int64(val))
	case uint:
		if val > math.MaxInt32 {
			return RoleNone
		}
		return roleFromCode(int64(val))
	case uint64:
		if val > math.MaxInt32 {
			return RoleNone
		}
		return roleFromCode(int64(val))
	case float64:
		// JSON-decoded session payloads carry numbers as float64
		if val != math.Trunc(val) {
			return RoleNone
		}
		return roleFromCode(int64(val))
	case []byte:
		return NormalizeRole(string(val))
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return roleFromCode(n)
		}
		switch strings.ToLower(s) {
		case "admin":
			return RoleAdmin
		case "approver":
			return RoleApprover
		case "viewer":
			return RoleViewer
		}
	}
	return RoleNone
}

// RoleMapping maps identity-provider groups onto roles
type RoleMapping struct {
	superusers map[string]bool
	admin      map[string]bool
	approver   map[string]bool
	viewer     map[string]bool
}

// NewRoleMapping builds a mapping from the auth.roles configuration
func NewRoleMapping(cfg config.RolesConfig) *RoleMapping {
	return &RoleMapping{
		superusers: toSet(cfg.Superusers),
		admin:      toSet(cfg.AdminGroups),
		approver:   toSet(cfg.ApproverGroups),
		viewer:     toSet(cfg.ViewerGroups),
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// RoleFor derives the role of an identity. Superusers are admins; otherwise the highest
// privileged matching group wins (admin, then approver, then viewer).
func (m *RoleMapping) RoleFor(id *Identity) Role {
	if id == nil || id.Username == "" {
		return RoleNone
	}
	if m.superusers[id.Username] {
		return RoleAdmin
	}

	names := make(map[string]bool, len(id.Groups))
	for _, g := range id.Groups {
		names[groupName(g)] = true
	}

	switch {
	case intersects(names, m.admin):
		return RoleAdmin
	case intersects(names, m.approver):
		return RoleApprover
	case intersects(names, m.viewer):
		return RoleViewer
	}
	return RoleNone
}

func intersects(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// groupName reduces a directory DN such as "CN=QA Approver,OU=Groups,DC=corp" to its CN.
// Plain group names are returned unchanged.
func groupName(group string) string {
	if !strings.Contains(group, "=") {
		return group
	}
	dn, err := ldap.ParseDN(group)
	if err != nil || len(dn.RDNs) == 0 {
		return group
	}
	for _, attr := range dn.RDNs[0].Attributes {
		if strings.EqualFold(attr.Type, "cn") {
			return attr.Value
		}
	}
	return group
}

// RoleCache is the per-session role storage. GetRole reports ok=false when nothing is cached.
type RoleCache interface {
	GetRole(ctx context.Context, sessionID string) (value any, ok bool, err error)
	SetRole(ctx context.Context, sessionID string, role int) error
}

// RoleResolver resolves the role of a session
type RoleResolver struct {
	cache   RoleCache
	mapping *RoleMapping
}

// NewRoleResolver creates a RoleResolver
func NewRoleResolver(cache RoleCache, mapping *RoleMapping) *RoleResolver {
	return &RoleResolver{cache: cache, mapping: mapping}
}

// Resolve returns the session's role. A cached value is normalized and returned as-is;
// otherwise the role is derived from the identity and cached. Cache failures never fail
// the request: a read failure falls through to derivation and a write failure is logged.
func (r *RoleResolver) Resolve(ctx context.Context, sess *Session) Role {
	if sess == nil {
		return RoleNone
	}

	cached, ok, err := r.cache.GetRole(ctx, sess.ID)
	if err != nil {
		slog.Warn("session role cache read failed", "session_id", sess.ID, "error", err)
	} else if ok && !emptyCacheValue(cached) {
		return NormalizeRole(cached)
	}

	role := r.mapping.RoleFor(&sess.Identity)
	if err := r.cache.SetRole(ctx, sess.ID, int(role)); err != nil {
		slog.Warn("session role cache write failed", "session_id", sess.ID, "error", err)
	}
	return role
}

func emptyCacheValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}
