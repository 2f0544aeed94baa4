package directory

import (
	"context"
	"fmt"
	"sync"

	ldapv3 "github.com/go-ldap/ldap/v3"

	"github.com/dirgate/dirgate/pkg/dn"
)

// LDAPConfig configures the go-ldap backed connection.
type LDAPConfig struct {
	// URL in ldap://, ldaps:// or ldapi:// form.
	URL string
	// BindDN and BindPassword for the service bind; empty means an
	// anonymous bind.
	BindDN       string
	BindPassword string
}

// LDAPConn is a Conn backed by go-ldap/ldap/v3. A single underlying
// connection is shared behind a mutex; go-ldap multiplexes message IDs
// but rebind-after-error handling wants serialized access.
type LDAPConn struct {
	mu   sync.Mutex
	conn *ldapv3.Conn
	cfg  LDAPConfig
}

// DialLDAP opens and binds the directory connection.
func DialLDAP(cfg LDAPConfig) (*LDAPConn, error) {
	conn, err := ldapv3.DialURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial directory %s: %w", cfg.URL, err)
	}

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind as %s: %w", cfg.BindDN, err)
		}
	}

	return &LDAPConn{conn: conn, cfg: cfg}, nil
}

func ldapScope(s Scope) int {
	switch s {
	case ScopeBase:
		return ldapv3.ScopeBaseObject
	case ScopeOne:
		return ldapv3.ScopeSingleLevel
	default:
		return ldapv3.ScopeWholeSubtree
	}
}

// Search implements Conn.
func (l *LDAPConn) Search(ctx context.Context, base string, opts SearchOptions) ([]Entry, error) {
	filter := opts.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}

	req := ldapv3.NewSearchRequest(
		base,
		ldapScope(opts.Scope),
		ldapv3.NeverDerefAliases,
		opts.SizeLimit,
		0,
		false,
		filter,
		opts.Attributes,
		nil,
	)

	l.mu.Lock()
	res, err := l.conn.Search(req)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("directory search under %s failed: %w", base, err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Name] = a.Values
		}
		entries = append(entries, Entry{DN: e.DN, Attributes: attrs})
	}
	return entries, nil
}

// Add implements Conn.
func (l *LDAPConn) Add(ctx context.Context, entryDN string, attrs map[string][]string) error {
	req := ldapv3.NewAddRequest(entryDN, nil)
	for name, values := range attrs {
		req.Attribute(name, values)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.Add(req); err != nil {
		return fmt.Errorf("directory add of %s failed: %w", entryDN, err)
	}
	return nil
}

// Modify implements Conn.
func (l *LDAPConn) Modify(ctx context.Context, entryDN string, changes []Change) error {
	req := ldapv3.NewModifyRequest(entryDN, nil)
	for _, change := range changes {
		switch change.Op {
		case ChangeAdd:
			req.Add(change.Attr, change.Values)
		case ChangeReplace:
			req.Replace(change.Attr, change.Values)
		case ChangeDelete:
			req.Delete(change.Attr, change.Values)
		default:
			return fmt.Errorf("unsupported change op %q on %s", change.Op, entryDN)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.Modify(req); err != nil {
		return fmt.Errorf("directory modify of %s failed: %w", entryDN, err)
	}
	return nil
}

// Rename implements Conn. newDN is split into the new RDN and the new
// superior; a same-parent rename sends no superior.
func (l *LDAPConn) Rename(ctx context.Context, oldDN, newDN string) error {
	newRDN := dn.RDN(newDN)
	newSuperior := dn.Parent(newDN)
	if dn.Equal(newSuperior, dn.Parent(oldDN)) {
		newSuperior = ""
	}

	req := ldapv3.NewModifyDNRequest(oldDN, newRDN, true, newSuperior)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.ModifyDN(req); err != nil {
		return fmt.Errorf("directory rename of %s failed: %w", oldDN, err)
	}
	return nil
}

// Delete implements Conn.
func (l *LDAPConn) Delete(ctx context.Context, entryDN string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.Del(ldapv3.NewDelRequest(entryDN, nil)); err != nil {
		return fmt.Errorf("directory delete of %s failed: %w", entryDN, err)
	}
	return nil
}

// Close implements Conn.
func (l *LDAPConn) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.Close()
}
