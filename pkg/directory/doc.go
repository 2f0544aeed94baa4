// Package directory is the boundary to the LDAP directory.
//
// The wire protocol lives behind the Conn interface; an
// implementation backed by go-ldap/ldap/v3 ships in ldap.go and an
// in-memory one for tests in memconn.go. Client wraps a Conn and
// dispatches the named operation hooks through the hook bus before
// every call, so registered handlers (most importantly the
// authorization engine) can rewrite or veto the operation:
//
//	ldapsearchrequest   [base, *SearchOptions]
//	ldapaddrequest      [dn, attributes]
//	ldapmodifyrequest   [dn, changes]
//	ldaprenamerequest   [oldDN, newDN]
//	ldapdelrequest      [dn]
//	getOrganisationTop  [*Entry]
//
// After a successful mutation the Client emits the best-effort
// "entrychanged" notification for observers such as the audit trail.
package directory
