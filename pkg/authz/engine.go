package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/contextkeys"
	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/dn"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/observability"
)

// ErrDenied is the sentinel every authorization failure wraps.
var ErrDenied = errors.New("permission denied")

// PermError names the denied principal, operation and branch. The text
// is for server-side logs only; the HTTP boundary must map it to a
// generic error that reveals nothing about namespace structure.
type PermError struct {
	Principal string
	Operation string
	Branch    string
	Kind      PermKind
}

func (e *PermError) Error() string {
	return fmt.Sprintf("principal %q denied %s on branch %q during %s",
		e.Principal, e.Kind, e.Branch, e.Operation)
}

func (e *PermError) Unwrap() error { return ErrDenied }

// Config shapes the engine's behavior.
type Config struct {
	// TopAnchor is the configured top-of-tree DN. A base-scope
	// self-lookup of it is always allowed so clients can bootstrap tree
	// discovery.
	TopAnchor string
	// OrgLinkAttr is the organization-link attribute on non-organization
	// entries pointing at the branch that governs their access control.
	OrgLinkAttr string
	// FailOpen skips permission checks for unresolvable principals.
	// Off by default; enabling it reproduces historically permissive
	// behavior and should be a deliberate choice.
	FailOpen bool
}

// Engine enforces branch permissions on the directory operation hooks.
type Engine struct {
	resolver Resolver
	searcher directory.Searcher
	cfg      Config
	log      *logrus.Logger
}

// NewEngine wires a resolver and a raw (non-hook-dispatching) searcher.
func NewEngine(resolver Resolver, searcher directory.Searcher, cfg Config, log *logrus.Logger) (*Engine, error) {
	if cfg.TopAnchor == "" {
		return nil, fmt.Errorf("authorization engine requires a top-of-tree anchor DN")
	}
	if cfg.OrgLinkAttr == "" {
		return nil, fmt.Errorf("authorization engine requires an organization-link attribute name")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{resolver: resolver, searcher: searcher, cfg: cfg, log: log}, nil
}

// Hooks returns the handlers the plugin registry merges into the bus.
func (e *Engine) Hooks() map[string]hooks.Handler {
	return map[string]hooks.Handler{
		directory.HookSearchRequest:   e.searchHook,
		directory.HookAddRequest:      e.addHook,
		directory.HookModifyRequest:   e.modifyHook,
		directory.HookRenameRequest:   e.renameHook,
		directory.HookDeleteRequest:   e.deleteHook,
		directory.HookOrganisationTop: e.topHook,
	}
}

// resolve canonicalizes the request's principal. skip is true only when
// fail-open is enabled and the principal cannot be resolved.
func (e *Engine) resolve(ctx context.Context, operation string) (key string, skip bool, err error) {
	principal, ok := contextkeys.Principal(ctx)
	if !ok {
		if e.cfg.FailOpen {
			return "", true, nil
		}
		return "", false, &PermError{Principal: "(unauthenticated)", Operation: operation}
	}

	key, resolveErr := e.resolver.ResolveUser(ctx, principal)
	if resolveErr != nil {
		if e.cfg.FailOpen {
			e.log.WithError(resolveErr).WithField("principal", principal).
				Warn("principal unresolvable, fail-open skips checks")
			return "", true, nil
		}
		e.log.WithError(resolveErr).WithField("principal", principal).
			Warn("principal unresolvable, denying")
		return "", false, &PermError{Principal: principal, Operation: operation}
	}
	return key, false, nil
}

// require denies unless the principal holds kind on branch.
func (e *Engine) require(ctx context.Context, key, operation, branch string, kind PermKind) error {
	if e.resolver.UserPermissions(ctx, key, branch).Has(kind) {
		observability.AuthzDecisions.WithLabelValues(operation, "allow").Inc()
		return nil
	}
	observability.AuthzDecisions.WithLabelValues(operation, "deny").Inc()
	perr := &PermError{Principal: key, Operation: operation, Branch: branch, Kind: kind}
	e.log.WithFields(logrus.Fields{
		"principal": key,
		"operation": operation,
		"branch":    branch,
		"kind":      string(kind),
	}).Warn("authorization denied")
	return perr
}

// searchHook requires read on the search base. The base-scope
// self-lookup of the tree anchor is always allowed. A base outside the
// principal's authorized branches is not denied outright when branches
// exist: the filter is narrowed to entries inside them instead.
func (e *Engine) searchHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	base := args[0].(string)
	opts := args[1].(*directory.SearchOptions)

	if dn.Equal(base, e.cfg.TopAnchor) && opts.Scope == directory.ScopeBase {
		return args, nil
	}

	key, skipChecks, err := e.resolve(ctx, directory.HookSearchRequest)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	if e.resolver.UserPermissions(ctx, key, base).Read {
		observability.AuthzDecisions.WithLabelValues(directory.HookSearchRequest, "allow").Inc()
		return args, nil
	}

	branches := e.resolver.AuthorizedBranches(ctx, key)
	if len(branches) == 0 {
		observability.AuthzDecisions.WithLabelValues(directory.HookSearchRequest, "deny").Inc()
		return nil, &PermError{Principal: key, Operation: directory.HookSearchRequest, Branch: base, Kind: PermRead}
	}

	opts.Filter = narrowFilter(opts.Filter, branches)
	observability.AuthzDecisions.WithLabelValues(directory.HookSearchRequest, "narrow").Inc()
	return args, nil
}

// narrowFilter ANDs the caller's filter with an OR of per-branch
// entryDN clauses so results cannot escape the authorized branches.
func narrowFilter(filter string, branches []string) string {
	if filter == "" {
		filter = "(objectClass=*)"
	}
	clause := ""
	for _, branch := range branches {
		clause += fmt.Sprintf("(entryDN=*,%s)", branch)
	}
	return fmt.Sprintf("(&%s(|%s))", filter, clause)
}

// addHook requires write on the new entry's branch: its
// organization-link attribute when present, else the parent DN.
func (e *Engine) addHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	entryDN := args[0].(string)
	attrs := args[1].(map[string][]string)

	key, skipChecks, err := e.resolve(ctx, directory.HookAddRequest)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	branch := dn.Parent(entryDN)
	if link := e.linkValue(attrs); link != "" {
		branch = link
	}

	if err := e.require(ctx, key, directory.HookAddRequest, branch, PermWrite); err != nil {
		return nil, err
	}
	return args, nil
}

// modifyHook distinguishes a move (the change set touches the
// organization-link attribute) from an in-place edit. A move requires
// read on the current branch and write on the new one; an edit requires
// write on the current branch.
func (e *Engine) modifyHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	entryDN := args[0].(string)
	changes := args[1].([]directory.Change)

	key, skipChecks, err := e.resolve(ctx, directory.HookModifyRequest)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	newBranch := ""
	for _, change := range changes {
		if strings.EqualFold(change.Attr, e.cfg.OrgLinkAttr) && len(change.Values) > 0 {
			newBranch = change.Values[0]
		}
	}

	current := e.currentBranch(ctx, entryDN)

	if newBranch != "" {
		if err := e.require(ctx, key, directory.HookModifyRequest, current, PermRead); err != nil {
			return nil, err
		}
		if err := e.require(ctx, key, directory.HookModifyRequest, newBranch, PermWrite); err != nil {
			return nil, err
		}
		return args, nil
	}

	if err := e.require(ctx, key, directory.HookModifyRequest, current, PermWrite); err != nil {
		return nil, err
	}
	return args, nil
}

// renameHook requires read on the old parent branch and write on the
// new parent branch.
func (e *Engine) renameHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	oldDN := args[0].(string)
	newDN := args[1].(string)

	key, skipChecks, err := e.resolve(ctx, directory.HookRenameRequest)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	if err := e.require(ctx, key, directory.HookRenameRequest, dn.Parent(oldDN), PermRead); err != nil {
		return nil, err
	}
	if err := e.require(ctx, key, directory.HookRenameRequest, dn.Parent(newDN), PermWrite); err != nil {
		return nil, err
	}
	return args, nil
}

// deleteHook requires delete on the entry's current branch.
func (e *Engine) deleteHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	entryDN := args[0].(string)

	key, skipChecks, err := e.resolve(ctx, directory.HookDeleteRequest)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	if err := e.require(ctx, key, directory.HookDeleteRequest, e.currentBranch(ctx, entryDN), PermDelete); err != nil {
		return nil, err
	}
	return args, nil
}

// topHook substitutes the principal's single authorized branch as the
// effective top-of-tree entry. Zero branches keep the caller's default,
// and so does more than one: the ambiguity resolves to the default
// rather than an arbitrary pick.
func (e *Engine) topHook(ctx context.Context, args hooks.Args) (hooks.Args, error) {
	defaultEntry, _ := args[0].(*directory.Entry)

	key, skipChecks, err := e.resolve(ctx, directory.HookOrganisationTop)
	if err != nil {
		return nil, err
	}
	if skipChecks {
		return args, nil
	}

	branches := e.resolver.AuthorizedBranches(ctx, key)
	if len(branches) != 1 {
		return hooks.Args{defaultEntry}, nil
	}

	entries, err := e.searcher.Search(ctx, branches[0], directory.SearchOptions{
		Scope:     directory.ScopeBase,
		SizeLimit: 1,
	})
	if err != nil || len(entries) == 0 {
		e.log.WithField("branch", branches[0]).WithError(err).
			Warn("authorized branch lookup failed, keeping default top")
		return hooks.Args{defaultEntry}, nil
	}
	return hooks.Args{&entries[0]}, nil
}

// currentBranch reads the live entry's organization-link attribute and
// falls back to the parent DN when the lookup fails or the attribute is
// absent.
func (e *Engine) currentBranch(ctx context.Context, entryDN string) string {
	entries, err := e.searcher.Search(ctx, entryDN, directory.SearchOptions{
		Scope:      directory.ScopeBase,
		Attributes: []string{e.cfg.OrgLinkAttr},
		SizeLimit:  1,
	})
	if err != nil || len(entries) == 0 {
		return dn.Parent(entryDN)
	}
	if link := e.linkValue(entries[0].Attributes); link != "" {
		return link
	}
	return dn.Parent(entryDN)
}

// linkValue finds the organization-link attribute in an attribute map.
// LDAP attribute descriptors are case-insensitive, so a client spelling
// the attribute differently must still be treated as touching the link.
func (e *Engine) linkValue(attrs map[string][]string) string {
	for attr, values := range attrs {
		if strings.EqualFold(attr, e.cfg.OrgLinkAttr) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
