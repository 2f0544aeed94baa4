// Package dn provides distinguished-name parsing, escaping and
// branch-relationship helpers used by the authorization engine.
//
// A "branch" is a DN subtree identified by its anchor DN. Branch
// membership is decided by a case-insensitive suffix test on RDN
// boundaries, never by substring matching.
package dn
