package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/authz"
	"github.com/dirgate/dirgate/pkg/contextkeys"
	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/dn"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/httputil"
)

// searchResponse is the body of a successful search.
type searchResponse struct {
	Entries []directory.Entry `json:"entries"`
	Count   int               `json:"count"`
}

// addRequest is the body of an entry creation.
type addRequest struct {
	Attributes map[string][]string `json:"attributes"`
}

// modifyRequest is the body of an entry modification.
type modifyRequest struct {
	Changes []directory.Change `json:"changes"`
}

// renameRequest is the body of an entry rename.
type renameRequest struct {
	NewDN string `json:"new_dn"`
}

func parseScope(s string) (directory.Scope, bool) {
	switch s {
	case "", "base":
		return directory.ScopeBase, true
	case "one":
		return directory.ScopeOne, true
	case "sub":
		return directory.ScopeSub, true
	}
	return 0, false
}

// entryDN pulls the DN path parameter and rejects values that do not
// parse as a DN at all.
func entryDN(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, ok := httputil.ParsePathStringOrError(w, r, "dn")
	if !ok {
		return "", false
	}
	if len(dn.Parse(raw)) == 0 || !strings.Contains(raw, "=") {
		httputil.WriteBadRequest(w, "invalid dn")
		return "", false
	}
	return raw, true
}

// fail hides the cause from the client. Authorization denials in
// particular must be indistinguishable from any other server error, so
// a caller cannot probe the permission table by comparing responses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation, target string, err error) {
	s.log.WithFields(logrus.Fields{
		"operation": operation,
		"path":      r.URL.Path,
	}).WithError(err).Error("directory operation failed")
	if errors.Is(err, authz.ErrDenied) {
		s.client.Bus().NotifyAll(r.Context(), hooks.HookAccessDenied, hooks.Args{operation, target})
	}
	httputil.WriteInternalError(w)
}

// searchEntries handles GET /api/v1/ldap/{dn}. Query parameters:
// scope (base, one, sub), filter, attrs (comma-separated), limit.
func (s *Server) searchEntries(w http.ResponseWriter, r *http.Request) {
	base, ok := entryDN(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	scope, ok := parseScope(query.Get("scope"))
	if !ok {
		httputil.WriteBadRequest(w, "invalid scope, want base, one or sub")
		return
	}

	opts := directory.SearchOptions{
		Filter:    query.Get("filter"),
		Scope:     scope,
		SizeLimit: httputil.ParseQueryInt(r, "limit", 0),
	}
	if attrs := query.Get("attrs"); attrs != "" {
		for _, attr := range strings.Split(attrs, ",") {
			if attr = strings.TrimSpace(attr); attr != "" {
				opts.Attributes = append(opts.Attributes, attr)
			}
		}
	}

	entries, err := s.client.Search(r.Context(), base, opts)
	if err != nil {
		s.fail(w, r, "search", base, err)
		return
	}
	if entries == nil {
		entries = []directory.Entry{}
	}
	httputil.WriteSuccess(w, searchResponse{Entries: entries, Count: len(entries)})
}

// addEntry handles POST /api/v1/ldap/{dn}.
func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := entryDN(w, r)
	if !ok {
		return
	}

	var req addRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Attributes) == 0 {
		httputil.WriteBadRequest(w, "attributes are required")
		return
	}

	if err := s.client.Add(r.Context(), entry, req.Attributes); err != nil {
		s.fail(w, r, "add", entry, err)
		return
	}
	httputil.WriteCreated(w, map[string]string{"dn": entry})
}

// modifyEntry handles PATCH /api/v1/ldap/{dn}.
func (s *Server) modifyEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := entryDN(w, r)
	if !ok {
		return
	}

	var req modifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Changes) == 0 {
		httputil.WriteBadRequest(w, "changes are required")
		return
	}
	for _, change := range req.Changes {
		switch change.Op {
		case directory.ChangeAdd, directory.ChangeReplace, directory.ChangeDelete:
		default:
			httputil.WriteBadRequest(w, "invalid change op, want add, replace or delete")
			return
		}
		if change.Attr == "" {
			httputil.WriteBadRequest(w, "change attr is required")
			return
		}
	}

	if err := s.client.Modify(r.Context(), entry, req.Changes); err != nil {
		s.fail(w, r, "modify", entry, err)
		return
	}
	httputil.WriteNoContent(w)
}

// renameEntry handles POST /api/v1/ldap/{dn}/rename.
func (s *Server) renameEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := entryDN(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(dn.Parse(req.NewDN)) == 0 || !strings.Contains(req.NewDN, "=") {
		httputil.WriteBadRequest(w, "invalid new_dn")
		return
	}

	if err := s.client.Rename(r.Context(), entry, req.NewDN); err != nil {
		s.fail(w, r, "rename", entry, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"dn": req.NewDN})
}

// deleteEntry handles DELETE /api/v1/ldap/{dn}.
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := entryDN(w, r)
	if !ok {
		return
	}

	if err := s.client.Delete(r.Context(), entry); err != nil {
		s.fail(w, r, "delete", entry, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getTop handles GET /api/v1/top: the effective top-of-tree entry for
// the requesting principal, with the configured anchor as the fallback
// when no hook narrows it.
func (s *Server) getTop(w http.ResponseWriter, r *http.Request) {
	fallback := &directory.Entry{DN: s.topAnchor}
	top, err := s.client.OrganisationTop(r.Context(), fallback)
	if err != nil {
		s.fail(w, r, "top", s.topAnchor, err)
		return
	}
	httputil.WriteSuccess(w, top)
}

// whoami handles GET /whoami.
func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	principal, ok := contextkeys.Principal(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "unauthorized")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"principal": principal})
}
