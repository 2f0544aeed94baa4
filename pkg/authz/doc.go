// Package authz implements the branch-scoped authorization engine.
//
// # Model
//
// Access control is granted per branch (a DN subtree identified by its
// anchor). The grant unit is BranchPermission{Read, Write, Delete}. A
// decision for (principal, branch, kind) is the logical OR of every
// matching grant from the principal's direct entries and from every
// group the principal belongs to, where a grant matches when its branch
// key equals the target or the target properly descends from it.
//
// # Resolvers
//
// Two interchangeable resolvers implement the Resolver contract. The
// static-table resolver reads an immutable permission table document
// and looks group membership up in the directory (cached per principal,
// 60s TTL by default). The attribute-driven resolver derives grants
// from an administrator-link attribute on organization entries (cached
// per principal, 5 minute TTL by default). Cache entries expire purely
// by wall-clock comparison at read time; nothing evicts in the
// background.
//
// # Enforcement
//
// The Engine registers transform-chain handlers on the directory
// operation hooks. An unmet requirement returns a *PermError naming the
// principal, operation and branch. That detail is meant for server logs
// only; the HTTP boundary collapses it into a generic error so callers
// cannot probe namespace structure.
//
// Unresolvable principals are denied (fail-closed). The historical
// fail-open behavior survives behind an explicit opt-in flag.
package authz
