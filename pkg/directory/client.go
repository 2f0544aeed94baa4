package directory

import (
	"context"
	"fmt"

	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/observability"
)

// Hook names dispatched by the Client. Handlers registered under the
// request hooks can mutate or veto the operation; EntryChanged is
// notify-only.
const (
	HookSearchRequest   = "ldapsearchrequest"
	HookAddRequest      = "ldapaddrequest"
	HookModifyRequest   = "ldapmodifyrequest"
	HookRenameRequest   = "ldaprenamerequest"
	HookDeleteRequest   = "ldapdelrequest"
	HookOrganisationTop = "getOrganisationTop"
	HookEntryChanged    = "entrychanged"
)

// Client fronts a Conn with hook dispatch. Every operation runs its
// request hook as a transform chain first; a handler error aborts the
// operation before it reaches the directory.
type Client struct {
	conn Conn
	bus  *hooks.Bus
}

// NewClient wraps a connection with the hook bus.
func NewClient(conn Conn, bus *hooks.Bus) *Client {
	return &Client{conn: conn, bus: bus}
}

// Conn exposes the underlying connection for collaborators that must
// bypass hook dispatch (permission resolvers).
func (c *Client) Conn() Conn { return c.conn }

// Bus exposes the hook bus the client dispatches on.
func (c *Client) Bus() *hooks.Bus { return c.bus }

func observeOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.DirectoryOperations.WithLabelValues(op, status).Inc()
}

// Search dispatches ldapsearchrequest and runs the possibly rewritten
// search. Handlers may replace the base and narrow the filter.
func (c *Client) Search(ctx context.Context, base string, opts SearchOptions) ([]Entry, error) {
	args, err := c.bus.TransformChain(ctx, HookSearchRequest, hooks.Args{base, &opts})
	if err != nil {
		return nil, err
	}

	base, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s hook corrupted the search base", HookSearchRequest)
	}
	rewritten, ok := args[1].(*SearchOptions)
	if !ok {
		return nil, fmt.Errorf("%s hook corrupted the search options", HookSearchRequest)
	}

	entries, err := c.conn.Search(ctx, base, *rewritten)
	observeOp("search", err)
	return entries, err
}

// Add dispatches ldapaddrequest and creates the entry.
func (c *Client) Add(ctx context.Context, dn string, attrs map[string][]string) error {
	args, err := c.bus.TransformChain(ctx, HookAddRequest, hooks.Args{dn, attrs})
	if err != nil {
		return err
	}
	dn = args[0].(string)
	attrs = args[1].(map[string][]string)

	if err := c.conn.Add(ctx, dn, attrs); err != nil {
		observeOp("add", err)
		return err
	}
	observeOp("add", nil)
	c.bus.NotifyAll(ctx, HookEntryChanged, hooks.Args{"add", dn})
	return nil
}

// Modify dispatches ldapmodifyrequest and applies the changes.
func (c *Client) Modify(ctx context.Context, dn string, changes []Change) error {
	args, err := c.bus.TransformChain(ctx, HookModifyRequest, hooks.Args{dn, changes})
	if err != nil {
		return err
	}
	dn = args[0].(string)
	changes = args[1].([]Change)

	if err := c.conn.Modify(ctx, dn, changes); err != nil {
		observeOp("modify", err)
		return err
	}
	observeOp("modify", nil)
	c.bus.NotifyAll(ctx, HookEntryChanged, hooks.Args{"modify", dn})
	return nil
}

// Rename dispatches ldaprenamerequest and moves the entry.
func (c *Client) Rename(ctx context.Context, oldDN, newDN string) error {
	args, err := c.bus.TransformChain(ctx, HookRenameRequest, hooks.Args{oldDN, newDN})
	if err != nil {
		return err
	}
	oldDN = args[0].(string)
	newDN = args[1].(string)

	if err := c.conn.Rename(ctx, oldDN, newDN); err != nil {
		observeOp("rename", err)
		return err
	}
	observeOp("rename", nil)
	c.bus.NotifyAll(ctx, HookEntryChanged, hooks.Args{"rename", newDN})
	return nil
}

// Delete dispatches ldapdelrequest and removes the entry.
func (c *Client) Delete(ctx context.Context, dn string) error {
	args, err := c.bus.TransformChain(ctx, HookDeleteRequest, hooks.Args{dn})
	if err != nil {
		return err
	}
	dn = args[0].(string)

	if err := c.conn.Delete(ctx, dn); err != nil {
		observeOp("delete", err)
		return err
	}
	observeOp("delete", nil)
	c.bus.NotifyAll(ctx, HookEntryChanged, hooks.Args{"delete", dn})
	return nil
}

// OrganisationTop dispatches getOrganisationTop, letting handlers
// substitute the effective top-of-tree entry for the caller.
func (c *Client) OrganisationTop(ctx context.Context, defaultEntry *Entry) (*Entry, error) {
	args, err := c.bus.TransformChain(ctx, HookOrganisationTop, hooks.Args{defaultEntry})
	if err != nil {
		return nil, err
	}
	entry, _ := args[0].(*Entry)
	return entry, nil
}
