// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	DIRGATE_HOST="0.0.0.0"
//	DIRGATE_PORT="8080"
//	DIRGATE_HEALTH_PORT="9090"
//	DIRGATE_READ_TIMEOUT="15s"
//	DIRGATE_WRITE_TIMEOUT="15s"
//
// Directory settings:
//
//	DIRGATE_LDAP_URL="ldaps://ldap.example.org"
//	DIRGATE_LDAP_BIND_DN="cn=gateway,dc=example,dc=org"
//	DIRGATE_TREE_ANCHOR="dc=example,dc=org"
//
// Authentication settings:
//
//	DIRGATE_AUTH_STRATEGIES="token,hmac"
//	DIRGATE_AUTH_TOKENS="s3cret:ci-bot"
//	DIRGATE_AUTH_TOTP_IDENTITIES="GEZDGNBVGY3TQOJQ:alice:6"
//	DIRGATE_AUTH_HMAC_SERVICES="svc-a:signingkey:provisioner"
//
// Authorization settings:
//
//	DIRGATE_AUTHZ_MODE="static"          # static or attribute
//	DIRGATE_AUTHZ_TABLE="/etc/dirgate/permissions.yaml"
//	DIRGATE_AUTHZ_TABLE_WATCH="true"
//	DIRGATE_ORG_LINK_ATTR="o"
//
// Plugin descriptors are semicolon-separated "name:alias:jsonOverrides"
// entries:
//
//	DIRGATE_PLUGINS='authz::;audit:trail:{"sink":"sqlite"}'
//
// # Validation
//
// LoadConfig validates the result and fails fast on contradictory
// settings, such as enabling a strategy without its credential list.
package config
