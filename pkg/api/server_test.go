package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirgate/dirgate/pkg/authz"
	"github.com/dirgate/dirgate/pkg/contextkeys"
	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/hooks"
)

const testAnchor = "dc=example,dc=org"

func newTestServer(t *testing.T) (*Server, *directory.MemConn, *hooks.Bus) {
	t.Helper()
	conn := directory.NewMemConn()
	conn.Put("dc=example,dc=org", map[string][]string{"objectClass": {"dcObject"}})
	conn.Put("ou=people,dc=example,dc=org", map[string][]string{"objectClass": {"organizationalUnit"}})
	conn.Put("uid=jdoe,ou=people,dc=example,dc=org", map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {"jdoe"},
		"cn":          {"Jane Doe"},
	})

	bus := hooks.NewBus(logrus.New())
	return NewServer(directory.NewClient(conn, bus), testAnchor, logrus.New()), conn, bus
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	r = r.WithContext(contextkeys.WithPrincipal(r.Context(), "uid=admin,dc=example,dc=org"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

func ldapPath(dn string) string {
	return "/api/v1/ldap/" + url.PathEscape(dn)
}

func TestSearchBaseScope(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=org", resp.Entries[0].DN)
	assert.Equal(t, []string{"Jane Doe"}, resp.Entries[0].Attributes["cn"])
}

func TestSearchSubtreeWithFilter(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet,
		ldapPath("dc=example,dc=org")+"?scope=sub&filter="+url.QueryEscape("(uid=jdoe)"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=org", resp.Entries[0].DN)
}

func TestSearchEmptyResultIsNotNull(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet,
		ldapPath("dc=example,dc=org")+"?scope=sub&filter="+url.QueryEscape("(uid=ghost)"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entries":[]`)
}

func TestSearchBadScope(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, ldapPath("dc=example,dc=org")+"?scope=galaxy", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchInvalidDN(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/ldap/notadn", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddEntry(t *testing.T) {
	s, conn, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, ldapPath("uid=new,ou=people,dc=example,dc=org"),
		`{"attributes": {"objectClass": ["inetOrgPerson"], "uid": ["new"]}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	entry, ok := conn.Get("uid=new,ou=people,dc=example,dc=org")
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, entry.Attributes["uid"])
}

func TestAddEntryRequiresAttributes(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, ldapPath("uid=new,ou=people,dc=example,dc=org"),
		`{"attributes": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModifyEntry(t *testing.T) {
	s, conn, _ := newTestServer(t)

	w := doRequest(s, http.MethodPatch, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"),
		`{"changes": [{"op": "replace", "attr": "cn", "values": ["J. Doe"]}]}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	entry, ok := conn.Get("uid=jdoe,ou=people,dc=example,dc=org")
	require.True(t, ok)
	assert.Equal(t, []string{"J. Doe"}, entry.Attributes["cn"])
}

func TestModifyEntryBadOp(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodPatch, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"),
		`{"changes": [{"op": "transmute", "attr": "cn", "values": ["x"]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameEntry(t *testing.T) {
	s, conn, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, ldapPath("uid=jdoe,ou=people,dc=example,dc=org")+"/rename",
		`{"new_dn": "uid=jdoe,ou=staff,dc=example,dc=org"}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := conn.Get("uid=jdoe,ou=people,dc=example,dc=org")
	assert.False(t, ok)
	_, ok = conn.Get("uid=jdoe,ou=staff,dc=example,dc=org")
	assert.True(t, ok)
}

func TestRenameEntryBadNewDN(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, ldapPath("uid=jdoe,ou=people,dc=example,dc=org")+"/rename",
		`{"new_dn": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteEntry(t *testing.T) {
	s, conn, _ := newTestServer(t)

	w := doRequest(s, http.MethodDelete, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	_, ok := conn.Get("uid=jdoe,ou=people,dc=example,dc=org")
	assert.False(t, ok)
}

func TestGetTopFallsBackToAnchor(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/top", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entry directory.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, testAnchor, entry.DN)
}

func TestGetTopHonorsHookRewrite(t *testing.T) {
	s, _, bus := newTestServer(t)
	bus.Register(directory.HookOrganisationTop, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			return hooks.Args{&directory.Entry{DN: "ou=people,dc=example,dc=org"}}, nil
		})

	w := doRequest(s, http.MethodGet, "/api/v1/top", "")
	require.Equal(t, http.StatusOK, w.Code)

	var entry directory.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "ou=people,dc=example,dc=org", entry.DN)
}

func TestWhoami(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/whoami", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"principal": "uid=admin,dc=example,dc=org"}`, w.Body.String())
}

func TestWhoamiUnauthenticated(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// A hook veto must surface as the same generic error as any other
// failure, with no hint of the denial in the body.
func TestVetoedOperationIsOpaque(t *testing.T) {
	s, _, bus := newTestServer(t)
	bus.Register(directory.HookDeleteRequest, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			return nil, assert.AnError
		})

	w := doRequest(s, http.MethodDelete, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "internal error"}`, w.Body.String())
}

func TestDenialDispatchesAccessDeniedHook(t *testing.T) {
	s, _, bus := newTestServer(t)
	bus.Register(directory.HookDeleteRequest, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			return nil, fmt.Errorf("delete uid=jdoe: %w", authz.ErrDenied)
		})

	var denied hooks.Args
	bus.Register(hooks.HookAccessDenied, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			denied = args
			return nil, nil
		})

	w := doRequest(s, http.MethodDelete, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "internal error"}`, w.Body.String())

	require.Len(t, denied, 2)
	assert.Equal(t, "delete", denied[0])
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=org", denied[1])
}

func TestNonDenialFailureSkipsAccessDeniedHook(t *testing.T) {
	s, _, bus := newTestServer(t)
	bus.Register(directory.HookDeleteRequest, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			return nil, assert.AnError
		})

	dispatched := false
	bus.Register(hooks.HookAccessDenied, "test",
		func(ctx context.Context, args hooks.Args) (hooks.Args, error) {
			dispatched = true
			return nil, nil
		})

	doRequest(s, http.MethodDelete, ldapPath("uid=jdoe,ou=people,dc=example,dc=org"), "")
	assert.False(t, dispatched, "non-denial failures must not produce denial events")
}
