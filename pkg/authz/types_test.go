package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTableFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTableYAML(t *testing.T) {
	path := writeTableFile(t, `
default:
  read: false
users:
  uid=alice,ou=people,dc=example,dc=org:
    ou=a,dc=example,dc=org:
      read: true
      write: true
groups:
  cn=admins,ou=groups,dc=example,dc=org:
    dc=example,dc=org:
      read: true
`)

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.False(t, table.Default.Read)
	assert.True(t, table.Users[alice][branchA].Write)
	assert.True(t, table.Groups["cn=admins,ou=groups,dc=example,dc=org"][anchor].Read)
}

func TestLoadTableAcceptsJSONShape(t *testing.T) {
	path := writeTableFile(t,
		`{"default": {"read": true}, "users": {"uid=alice,ou=people,dc=example,dc=org": {"ou=a,dc=example,dc=org": {"write": true}}}}`)

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.True(t, table.Default.Read)
	assert.True(t, table.Users[alice][branchA].Write)
}

func TestLoadTableErrors(t *testing.T) {
	_, err := LoadTable("/nonexistent/permissions.yaml")
	assert.ErrorContains(t, err, "failed to read")

	_, err = LoadTable(writeTableFile(t, "users: ["))
	assert.ErrorContains(t, err, "failed to parse")
}

func TestPermissionTableValidate(t *testing.T) {
	table := &PermissionTable{
		Users: map[string]map[string]BranchPermission{
			"uid=alice": {"ou=a,\u0000dc=example": {Read: true}},
		},
	}
	assert.ErrorContains(t, table.Validate(), "control character")

	table = &PermissionTable{
		Users: map[string]map[string]BranchPermission{
			"": {branchA: {Read: true}},
		},
	}
	assert.ErrorContains(t, table.Validate(), "empty principal")
}

func TestBranchPermissionOr(t *testing.T) {
	merged := BranchPermission{Read: true}.Or(BranchPermission{Write: true})
	assert.Equal(t, BranchPermission{Read: true, Write: true}, merged)
}

func TestMergeDescendantMatching(t *testing.T) {
	grants := map[string]BranchPermission{
		branchA: {Read: true},
	}

	assert.True(t, merge(BranchPermission{}, grants, branchA).Read)
	assert.True(t, merge(BranchPermission{}, grants, "uid=x,ou=sub,"+branchA).Read)
	assert.False(t, merge(BranchPermission{}, grants, anchor).Read)
	assert.False(t, merge(BranchPermission{}, grants, "ou=ax,dc=example,dc=org").Read,
		"a prefix of the RDN is not a descendant")
}
