// Package plugin provides the plugin registry and descriptor parsing.
//
// # Overview
//
// Plugins are addressed by "name:alias:jsonOverrides" descriptors. The
// name resolves through a static factory registry populated at init
// time; the optional alias becomes the registered final name; the
// optional JSON fragment is merged over the plugin's view of the global
// configuration.
//
// # Loading
//
// Registering an instance mounts its HTTP surface (when it implements
// RouterPlugin) under /plugins/<finalName>/ and appends its Hooks map
// into the hook bus. Declared dependencies are loaded on demand before
// the dependent completes registration.
//
// LoadAll runs three phases: a fixed priority list strictly in order,
// the remaining plugins concurrently, and one designated aggregator
// strictly last. Any constructor failure fails readiness.
//
// # Related Packages
//
//   - pkg/hooks: the bus plugin hooks are merged into
//   - pkg/plugin/builtin: the plugins shipped with the gateway
package plugin
