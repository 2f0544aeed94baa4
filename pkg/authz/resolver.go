package authz

import "context"

// Resolver is the contract both permission resolvers share.
type Resolver interface {
	// ResolveUser canonicalizes an authenticated identity (for example
	// uid -> full DN) into the key permission lookups use. An identity
	// that cannot be resolved returns an error; the engine treats that
	// as a denial unless fail-open is explicitly enabled.
	ResolveUser(ctx context.Context, identity string) (string, error)

	// UserPermissions OR-merges every matching grant for the principal
	// and for every group the principal belongs to.
	UserPermissions(ctx context.Context, principalKey, branch string) BranchPermission

	// AuthorizedBranches returns every branch anchor where the
	// principal may read, directly or via group.
	AuthorizedBranches(ctx context.Context, principalKey string) []string
}
