package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

// ldapConn is the subset of *ldap.Conn used for lookups
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// LDAPDirectory resolves members with a subtree search per lookup.
// Each lookup opens its own connection; lookups are infrequent and short-lived.
type LDAPDirectory struct {
	cfg  config.LDAPDirectoryConfig
	dial func(ctx context.Context) (ldapConn, func(), error)
}

// NewLDAP creates an LDAP-backed directory
func NewLDAP(cfg *config.LDAPDirectoryConfig) *LDAPDirectory {
	d := &LDAPDirectory{cfg: *cfg}
	d.dial = d.dialServer
	return d
}

func (d *LDAPDirectory) dialServer(ctx context.Context) (ldapConn, func(), error) {
	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tlsConfig := &tls.Config{
		InsecureSkipVerify: d.cfg.InsecureSkipVerify, // #nosec G402 -- opt-in for lab directories
		MinVersion:         tls.VersionTLS12,
	}

	conn, err := ldap.DialURL(d.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
		ldap.DialWithTLSConfig(tlsConfig),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	conn.SetTimeout(timeout)
	closeFn := func() { conn.Close() }

	if d.cfg.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("LDAP StartTLS failed: %w", err)
		}
	}

	if ctx.Err() != nil {
		closeFn()
		return nil, nil, ctx.Err()
	}
	return conn, closeFn, nil
}

// SiteMembers returns the mail addresses of the site's members
func (d *LDAPDirectory) SiteMembers(ctx context.Context, site string) ([]string, error) {
	return d.lookup(ctx, KindSite, d.cfg.SiteFilter, site)
}

// RegionMembers returns the mail addresses of the region's members
func (d *LDAPDirectory) RegionMembers(ctx context.Context, region string) ([]string, error) {
	return d.lookup(ctx, KindRegion, d.cfg.RegionFilter, region)
}

func (d *LDAPDirectory) lookup(ctx context.Context, kind, filterTemplate, name string) (members []string, err error) {
	start := time.Now()
	defer func() {
		telemetry.DirectoryLookupsTotal.WithLabelValues(kind, telemetry.ResultLabel(err)).Inc()
		telemetry.DirectoryLookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if name == "" {
		return []string{}, nil
	}

	conn, closeConn, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("LDAP bind failed: %w", err)
		}
	}

	req := d.searchRequest(filterTemplate, name)
	result, err := conn.Search(req)
	if err != nil {
		// An unknown base or subtree is "no members", not a failure
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("LDAP %s search failed: %w", kind, err)
	}

	members = make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		members = append(members, cleanMembers(entry.GetAttributeValues(d.mailAttribute()))...)
	}
	return members, nil
}

func (d *LDAPDirectory) mailAttribute() string {
	if d.cfg.MailAttribute == "" {
		return "mail"
	}
	return d.cfg.MailAttribute
}

func (d *LDAPDirectory) searchRequest(filterTemplate, name string) *ldap.SearchRequest {
	timeLimit := int(d.cfg.Timeout / time.Second)
	return ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		d.cfg.SizeLimit,
		timeLimit,
		false,
		fmt.Sprintf(filterTemplate, ldap.EscapeFilter(name)),
		[]string{d.mailAttribute()},
		nil,
	)
}
