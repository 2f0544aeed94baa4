package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/dn"
)

// DefaultAttributeTTL bounds how long derived branch grants are served
// from cache for the attribute-driven resolver.
const DefaultAttributeTTL = 5 * time.Minute

// AttributeResolver derives grants from an administrator-link attribute
// on organization entries instead of a static table: a principal listed
// on an organization's link attribute holds full permissions over that
// organization's branch.
type AttributeResolver struct {
	searcher directory.Searcher
	base     string
	linkAttr string
	orgClass string
	branches *ttlCache[map[string]BranchPermission]
	log      *logrus.Logger
}

// NewAttributeResolver creates the attribute-driven resolver. linkAttr
// names the administrator-link attribute on organization entries;
// orgClass is the object class identifying organizations (defaults to
// "organization").
func NewAttributeResolver(searcher directory.Searcher, base, linkAttr, orgClass string, ttl time.Duration, log *logrus.Logger) *AttributeResolver {
	if ttl <= 0 {
		ttl = DefaultAttributeTTL
	}
	if orgClass == "" {
		orgClass = "organization"
	}
	if log == nil {
		log = logrus.New()
	}
	return &AttributeResolver{
		searcher: searcher,
		base:     base,
		linkAttr: linkAttr,
		orgClass: orgClass,
		branches: newTTLCache[map[string]BranchPermission]("org_branches", ttl, 0),
		log:      log,
	}
}

// ResolveUser passes DN-shaped identities through and refuses anything
// else: the link attribute stores DNs, so a bare identity cannot match.
func (r *AttributeResolver) ResolveUser(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("empty identity")
	}
	if len(dn.Parse(identity)) <= 1 {
		return "", fmt.Errorf("identity %q is not a DN; the attribute resolver requires one", identity)
	}
	return dn.Normalize(identity), nil
}

// UserPermissions implements Resolver. When the derivation search
// fails, no grants are assumed beyond the empty default.
func (r *AttributeResolver) UserPermissions(ctx context.Context, principalKey, branch string) BranchPermission {
	grants, err := r.derivedGrants(ctx, principalKey)
	if err != nil {
		r.log.WithError(err).WithField("principal", principalKey).
			Warn("branch derivation failed, denying by default")
		return BranchPermission{}
	}
	return merge(BranchPermission{}, grants, branch)
}

// AuthorizedBranches implements Resolver.
func (r *AttributeResolver) AuthorizedBranches(ctx context.Context, principalKey string) []string {
	grants, err := r.derivedGrants(ctx, principalKey)
	if err != nil {
		return nil
	}
	set := make(map[string]bool)
	readBranches(set, grants)
	branches := make([]string, 0, len(set))
	for branch := range set {
		branches = append(branches, branch)
	}
	return branches
}

// derivedGrants finds every organization whose link attribute lists the
// principal and grants full permissions on those branches. Recomputed
// lazily once the cached value ages past the TTL.
func (r *AttributeResolver) derivedGrants(ctx context.Context, principalKey string) (map[string]BranchPermission, error) {
	if cached, ok := r.branches.get(principalKey); ok {
		return cached, nil
	}

	entries, err := r.searcher.Search(ctx, r.base, directory.SearchOptions{
		Filter: fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
			r.orgClass, r.linkAttr, dn.EscapeFilter(principalKey)),
		Scope: directory.ScopeSub,
	})
	if err != nil {
		return nil, err
	}

	grants := make(map[string]BranchPermission, len(entries))
	for _, e := range entries {
		grants[dn.Normalize(e.DN)] = BranchPermission{Read: true, Write: true, Delete: true}
	}
	r.branches.put(principalKey, grants)
	return grants, nil
}
