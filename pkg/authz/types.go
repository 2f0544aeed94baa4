package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dirgate/dirgate/pkg/dn"
)

// PermKind selects which bit of a BranchPermission a check targets.
type PermKind string

const (
	PermRead   PermKind = "read"
	PermWrite  PermKind = "write"
	PermDelete PermKind = "delete"
)

// BranchPermission is the grant unit for one branch.
type BranchPermission struct {
	Read   bool `yaml:"read" json:"read"`
	Write  bool `yaml:"write" json:"write"`
	Delete bool `yaml:"delete" json:"delete"`
}

// Has reports whether the permission includes a kind.
func (p BranchPermission) Has(kind PermKind) bool {
	switch kind {
	case PermRead:
		return p.Read
	case PermWrite:
		return p.Write
	case PermDelete:
		return p.Delete
	}
	return false
}

// Or merges another permission into this one, bit-wise.
func (p BranchPermission) Or(other BranchPermission) BranchPermission {
	return BranchPermission{
		Read:   p.Read || other.Read,
		Write:  p.Write || other.Write,
		Delete: p.Delete || other.Delete,
	}
}

// PermissionTable is the static grant configuration, loaded once at
// startup and immutable thereafter. Keys of the inner maps are branch
// anchor DNs.
type PermissionTable struct {
	Default BranchPermission                       `yaml:"default" json:"default"`
	Users   map[string]map[string]BranchPermission `yaml:"users" json:"users"`
	Groups  map[string]map[string]BranchPermission `yaml:"groups" json:"groups"`
}

// LoadTable reads a permission table document. The document is YAML,
// which also accepts the JSON shape unchanged.
func LoadTable(path string) (*PermissionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission table %s: %w", path, err)
	}

	var table PermissionTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to parse permission table %s: %w", path, err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid permission table %s: %w", path, err)
	}
	return &table, nil
}

// Validate rejects structurally broken tables at startup.
func (t *PermissionTable) Validate() error {
	for principal, branches := range t.Users {
		if principal == "" {
			return fmt.Errorf("users: empty principal key")
		}
		for branch := range branches {
			if err := dn.ValidateValue("users."+principal, branch); err != nil {
				return err
			}
		}
	}
	for group, branches := range t.Groups {
		if err := dn.ValidateValue("groups", group); err != nil {
			return err
		}
		for branch := range branches {
			if err := dn.ValidateValue("groups."+group, branch); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge ORs every grant in the map whose branch key matches the target:
// exact DN equality or the target being a proper descendant of the key.
func merge(acc BranchPermission, grants map[string]BranchPermission, branch string) BranchPermission {
	for key, grant := range grants {
		if dn.Equal(branch, key) || dn.IsChildOf(branch, key) {
			acc = acc.Or(grant)
		}
	}
	return acc
}

// readBranches collects every branch key of the map whose grant allows
// reading.
func readBranches(dst map[string]bool, grants map[string]BranchPermission) {
	for key, grant := range grants {
		if grant.Read {
			dst[dn.Normalize(key)] = true
		}
	}
}
