package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dirgate/dirgate/pkg/dn"
)

// MemConn is an in-memory Conn used by tests across packages. It
// supports the filter subset the gateway itself generates: presence,
// equality, substring suffix matches, and the &, |, ! composites. The
// virtual entryDN attribute matches against each entry's DN.
type MemConn struct {
	mu      sync.RWMutex
	entries map[string]Entry // normalized DN -> entry
	// FailSearches makes every search return an error, for exercising
	// transient-directory-error paths.
	FailSearches bool
}

// NewMemConn creates an empty in-memory directory.
func NewMemConn() *MemConn {
	return &MemConn{entries: make(map[string]Entry)}
}

// Put inserts or replaces an entry.
func (m *MemConn) Put(entryDN string, attrs map[string][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		copied[k] = append([]string(nil), v...)
	}
	m.entries[dn.Normalize(entryDN)] = Entry{DN: entryDN, Attributes: copied}
}

// Get returns an entry by DN.
func (m *MemConn) Get(entryDN string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[dn.Normalize(entryDN)]
	return e, ok
}

// Search implements Conn.
func (m *MemConn) Search(ctx context.Context, base string, opts SearchOptions) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailSearches {
		return nil, fmt.Errorf("directory unavailable")
	}

	filter := opts.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}
	node, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range m.entries {
		if !inScope(e.DN, base, opts.Scope) {
			continue
		}
		if node.matches(e) {
			out = append(out, e)
		}
		if opts.SizeLimit > 0 && len(out) >= opts.SizeLimit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DN < out[j].DN })
	return out, nil
}

func inScope(entryDN, base string, scope Scope) bool {
	switch scope {
	case ScopeBase:
		return dn.Equal(entryDN, base)
	case ScopeOne:
		return dn.Equal(dn.Parent(entryDN), base) && !dn.Equal(entryDN, base)
	default:
		return dn.Under(entryDN, base)
	}
}

// Add implements Conn.
func (m *MemConn) Add(ctx context.Context, entryDN string, attrs map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dn.Normalize(entryDN)
	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("entry already exists: %s", entryDN)
	}
	copied := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		copied[k] = append([]string(nil), v...)
	}
	m.entries[key] = Entry{DN: entryDN, Attributes: copied}
	return nil
}

// Modify implements Conn.
func (m *MemConn) Modify(ctx context.Context, entryDN string, changes []Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dn.Normalize(entryDN)
	entry, exists := m.entries[key]
	if !exists {
		return fmt.Errorf("no such entry: %s", entryDN)
	}
	for _, change := range changes {
		switch change.Op {
		case ChangeAdd:
			entry.Attributes[change.Attr] = append(entry.Attributes[change.Attr], change.Values...)
		case ChangeReplace:
			entry.Attributes[change.Attr] = append([]string(nil), change.Values...)
		case ChangeDelete:
			if len(change.Values) == 0 {
				delete(entry.Attributes, change.Attr)
				continue
			}
			remaining := entry.Attributes[change.Attr][:0]
			for _, v := range entry.Attributes[change.Attr] {
				drop := false
				for _, del := range change.Values {
					if v == del {
						drop = true
					}
				}
				if !drop {
					remaining = append(remaining, v)
				}
			}
			entry.Attributes[change.Attr] = remaining
		default:
			return fmt.Errorf("unsupported change op %q", change.Op)
		}
	}
	m.entries[key] = entry
	return nil
}

// Rename implements Conn.
func (m *MemConn) Rename(ctx context.Context, oldDN, newDN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldKey := dn.Normalize(oldDN)
	entry, exists := m.entries[oldKey]
	if !exists {
		return fmt.Errorf("no such entry: %s", oldDN)
	}
	delete(m.entries, oldKey)
	entry.DN = newDN
	m.entries[dn.Normalize(newDN)] = entry
	return nil
}

// Delete implements Conn.
func (m *MemConn) Delete(ctx context.Context, entryDN string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dn.Normalize(entryDN)
	if _, exists := m.entries[key]; !exists {
		return fmt.Errorf("no such entry: %s", entryDN)
	}
	delete(m.entries, key)
	return nil
}

// Close implements Conn.
func (m *MemConn) Close() error { return nil }

// --- minimal filter evaluation ---

type filterNode struct {
	op       byte // '&', '|', '!', '=' for leaf
	children []*filterNode
	attr     string
	pattern  string
}

func parseFilter(s string) (*filterNode, error) {
	node, rest, err := parseFilterInner(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("trailing filter content: %q", rest)
	}
	return node, nil
}

func parseFilterInner(s string) (*filterNode, string, error) {
	if len(s) < 2 || s[0] != '(' {
		return nil, "", fmt.Errorf("malformed filter: %q", s)
	}
	body := s[1:]

	switch body[0] {
	case '&', '|':
		node := &filterNode{op: body[0]}
		rest := body[1:]
		for strings.HasPrefix(rest, "(") {
			child, r, err := parseFilterInner(rest)
			if err != nil {
				return nil, "", err
			}
			node.children = append(node.children, child)
			rest = r
		}
		if !strings.HasPrefix(rest, ")") {
			return nil, "", fmt.Errorf("unterminated composite filter: %q", s)
		}
		return node, rest[1:], nil
	case '!':
		child, rest, err := parseFilterInner(body[1:])
		if err != nil {
			return nil, "", err
		}
		if !strings.HasPrefix(rest, ")") {
			return nil, "", fmt.Errorf("unterminated negation filter: %q", s)
		}
		return &filterNode{op: '!', children: []*filterNode{child}}, rest[1:], nil
	default:
		end := strings.IndexByte(body, ')')
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated leaf filter: %q", s)
		}
		leaf := body[:end]
		attr, pattern, ok := strings.Cut(leaf, "=")
		if !ok {
			return nil, "", fmt.Errorf("leaf filter without '=': %q", leaf)
		}
		return &filterNode{op: '=', attr: attr, pattern: pattern}, body[end+1:], nil
	}
}

func (n *filterNode) matches(e Entry) bool {
	switch n.op {
	case '&':
		for _, c := range n.children {
			if !c.matches(e) {
				return false
			}
		}
		return true
	case '|':
		for _, c := range n.children {
			if c.matches(e) {
				return true
			}
		}
		return false
	case '!':
		return !n.children[0].matches(e)
	default:
		return n.leafMatches(e)
	}
}

func (n *filterNode) leafMatches(e Entry) bool {
	// entryDN is virtual: it matches the entry's own DN, including the
	// "*,branch" suffix form the search-narrowing hook generates.
	if strings.EqualFold(n.attr, "entryDN") {
		return valueMatches(e.DN, n.pattern)
	}

	for name, values := range e.Attributes {
		if !strings.EqualFold(name, n.attr) {
			continue
		}
		for _, v := range values {
			if valueMatches(v, n.pattern) {
				return true
			}
		}
	}
	return false
}

func valueMatches(value, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(strings.ToLower(value), strings.ToLower(pattern[1:]))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(pattern[:len(pattern)-1]))
	}
	return strings.EqualFold(value, pattern)
}
