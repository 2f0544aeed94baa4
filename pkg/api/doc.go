// Package api is the gateway's REST surface.
//
// # Overview
//
// Entries are addressed by DN in the path: /api/v1/ldap/{dn} supports
// GET (search), POST (add), PATCH (modify) and DELETE, with POST
// /api/v1/ldap/{dn}/rename for moves. /api/v1/top resolves the
// effective top-of-tree entry for the requesting principal and /whoami
// echoes the authenticated principal.
//
// Every handler goes through the hook-dispatching directory client, so
// plugins see and can veto each operation. Operation failures are
// reported as a generic 500: a denial must not be tellable apart from
// any other server error.
//
// # Related Packages
//
//   - pkg/middleware: the chain the command wraps around this router
//   - pkg/plugin: mounts plugin HTTP surfaces on the same router
package api
