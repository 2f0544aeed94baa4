package directory

import "context"

// Scope selects how deep a search descends from its base.
type Scope int

const (
	// ScopeBase targets the base entry itself.
	ScopeBase Scope = iota
	// ScopeOne targets the immediate children of the base.
	ScopeOne
	// ScopeSub targets the whole subtree.
	ScopeSub
)

// SearchOptions parameterizes a directory search.
type SearchOptions struct {
	Filter     string
	Scope      Scope
	Attributes []string
	SizeLimit  int
}

// Entry is one directory entry.
type Entry struct {
	DN         string              `json:"dn"`
	Attributes map[string][]string `json:"attributes"`
}

// First returns the first value of an attribute, or "".
func (e *Entry) First(attr string) string {
	if e == nil {
		return ""
	}
	values := e.Attributes[attr]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// ChangeOp is a modify sub-operation type.
type ChangeOp string

const (
	ChangeAdd     ChangeOp = "add"
	ChangeReplace ChangeOp = "replace"
	ChangeDelete  ChangeOp = "delete"
)

// Change is a single attribute modification.
type Change struct {
	Op     ChangeOp `json:"op"`
	Attr   string   `json:"attr"`
	Values []string `json:"values"`
}

// Conn is the wire-level directory connection. Implementations must be
// safe for concurrent use.
type Conn interface {
	Search(ctx context.Context, base string, opts SearchOptions) ([]Entry, error)
	Add(ctx context.Context, dn string, attrs map[string][]string) error
	Modify(ctx context.Context, dn string, changes []Change) error
	Rename(ctx context.Context, oldDN, newDN string) error
	Delete(ctx context.Context, dn string) error
	Close() error
}

// Searcher is the read-only subset of Conn that permission resolvers
// need. Resolvers use the raw connection, never the hook-dispatching
// Client, so permission lookups cannot recurse into authorization.
type Searcher interface {
	Search(ctx context.Context, base string, opts SearchOptions) ([]Entry, error)
}
