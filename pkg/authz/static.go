package authz

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/dn"
)

// DefaultGroupTTL bounds how long a principal's group membership list
// is served from cache.
const DefaultGroupTTL = 60 * time.Second

// StaticResolver resolves permissions from an immutable table document,
// with group membership looked up in the directory and cached per
// principal.
type StaticResolver struct {
	table    atomic.Pointer[PermissionTable]
	searcher directory.Searcher
	base     string
	groups   *ttlCache[[]string]
	log      *logrus.Logger
}

// NewStaticResolver creates the table-backed resolver. base is the
// top-of-tree anchor group searches run under.
func NewStaticResolver(table *PermissionTable, searcher directory.Searcher, base string, groupTTL time.Duration, log *logrus.Logger) *StaticResolver {
	if groupTTL <= 0 {
		groupTTL = DefaultGroupTTL
	}
	if log == nil {
		log = logrus.New()
	}

	r := &StaticResolver{
		searcher: searcher,
		base:     base,
		groups:   newTTLCache[[]string]("groups", groupTTL, 0),
		log:      log,
	}
	r.table.Store(table)
	return r
}

// SetTable atomically replaces the permission table snapshot. Each
// snapshot stays immutable; in-flight decisions finish against the one
// they started with.
func (r *StaticResolver) SetTable(table *PermissionTable) {
	r.table.Store(table)
}

// ResolveUser canonicalizes an identity for table lookups. An identity
// that already looks like a DN passes through; anything else is looked
// up by uid or cn under the tree anchor.
func (r *StaticResolver) ResolveUser(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("empty identity")
	}
	if len(dn.Parse(identity)) > 1 {
		return identity, nil
	}

	escaped := dn.EscapeFilter(identity)
	entries, err := r.searcher.Search(ctx, r.base, directory.SearchOptions{
		Filter:    fmt.Sprintf("(|(uid=%s)(cn=%s))", escaped, escaped),
		Scope:     directory.ScopeSub,
		SizeLimit: 2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve identity %q: %w", identity, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("identity %q not found under %s", identity, r.base)
	}
	if len(entries) > 1 {
		return "", fmt.Errorf("identity %q is ambiguous under %s", identity, r.base)
	}
	return entries[0].DN, nil
}

// UserPermissions implements Resolver. A group-lookup failure is logged
// and degrades to direct grants plus the default policy.
func (r *StaticResolver) UserPermissions(ctx context.Context, principalKey, branch string) BranchPermission {
	table := r.table.Load()
	if table == nil {
		return BranchPermission{}
	}

	perm := table.Default
	if grants := r.directGrants(table, principalKey); grants != nil {
		perm = merge(perm, grants, branch)
	}

	groups, err := r.groupsFor(ctx, principalKey)
	if err != nil {
		r.log.WithError(err).WithField("principal", principalKey).
			Warn("group lookup failed, applying direct grants only")
		return perm
	}

	for _, group := range groups {
		for key, grants := range table.Groups {
			if dn.Equal(key, group) {
				perm = merge(perm, grants, branch)
			}
		}
	}
	return perm
}

// AuthorizedBranches implements Resolver.
func (r *StaticResolver) AuthorizedBranches(ctx context.Context, principalKey string) []string {
	table := r.table.Load()
	if table == nil {
		return nil
	}

	set := make(map[string]bool)
	if grants := r.directGrants(table, principalKey); grants != nil {
		readBranches(set, grants)
	}

	if groups, err := r.groupsFor(ctx, principalKey); err == nil {
		for _, group := range groups {
			for key, grants := range table.Groups {
				if dn.Equal(key, group) {
					readBranches(set, grants)
				}
			}
		}
	}

	branches := make([]string, 0, len(set))
	for branch := range set {
		branches = append(branches, branch)
	}
	return branches
}

// directGrants finds the principal's own table row. Table keys may be
// short identities or full DNs; both compare case-insensitively.
func (r *StaticResolver) directGrants(table *PermissionTable, principalKey string) map[string]BranchPermission {
	if grants, ok := table.Users[principalKey]; ok {
		return grants
	}
	for key, grants := range table.Users {
		if dn.Equal(key, principalKey) {
			return grants
		}
	}
	return nil
}

// groupsFor returns the DNs of every group the principal is a member
// of, recomputing lazily once the cached value ages past the TTL.
func (r *StaticResolver) groupsFor(ctx context.Context, principalKey string) ([]string, error) {
	if cached, ok := r.groups.get(principalKey); ok {
		return cached, nil
	}

	escaped := dn.EscapeFilter(principalKey)
	entries, err := r.searcher.Search(ctx, r.base, directory.SearchOptions{
		Filter: fmt.Sprintf("(|(member=%s)(uniqueMember=%s))", escaped, escaped),
		Scope:  directory.ScopeSub,
	})
	if err != nil {
		return nil, err
	}

	groups := make([]string, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, e.DN)
	}
	r.groups.put(principalKey, groups)
	return groups, nil
}
