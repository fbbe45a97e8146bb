// Package directory resolves notification recipients by site and region.
// Backends: an LDAP directory for production and a static membership table for development;
// either can be wrapped in a TTL cache held in Redis or process memory.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// Directory looks up the email addresses of a site's or region's members.
// An unknown site or region yields an empty slice, not an error.
type Directory interface {
	SiteMembers(ctx context.Context, site string) ([]string, error)
	RegionMembers(ctx context.Context, region string) ([]string, error)
}

// Lookup kinds, used for cache keys and metric labels
const (
	KindSite   = "site"
	KindRegion = "region"
)

// New builds the configured directory. rdb may be nil, in which case the cache (if enabled) lives in memory.
// Background work such as watching the static members file stops when ctx is cancelled.
func New(ctx context.Context, cfg *config.DirectoryConfig, rdb redis.UniversalClient, keyPrefix string) (Directory, error) {
	var base Directory
	switch cfg.Backend {
	case "ldap":
		base = NewLDAP(&cfg.LDAP)
	case "static", "":
		static, err := NewStatic(&cfg.Static)
		if err != nil {
			return nil, err
		}
		if cfg.Static.MembersFile != "" {
			if err := static.Watch(ctx); err != nil {
				return nil, err
			}
		}
		base = static
	default:
		return nil, fmt.Errorf("unknown directory backend: %s", cfg.Backend)
	}

	if !cfg.Cache.Enabled || cfg.Cache.TTL <= 0 {
		return base, nil
	}
	if rdb != nil {
		return NewCached(base, NewRedisCache(rdb, keyPrefix), cfg.Cache.TTL), nil
	}
	return NewCached(base, NewMemoryCache(), cfg.Cache.TTL), nil
}

// normalizeKey folds a site or region name for map lookups and cache keys
func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// cleanMembers trims entries and drops blanks, keeping order
func cleanMembers(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
