// Package builtin provides the plugins shipped with the gateway and
// registers their factories at init time. Importing the package (blank
// import from the main command) is what makes them loadable.
//
// Two plugins are built in:
//
//   - authz: the branch permission engine on the directory operation
//     hooks. Loaded in the priority phase so its veto handlers are
//     registered before any other plugin can dispatch an operation.
//   - audittrail: the audit recorder on the entrychanged hook plus the
//     trail query endpoint at /plugins/audittrail/events. Loaded as the
//     aggregator so it observes every other plugin's registrations.
package builtin
