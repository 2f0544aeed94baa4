// Package hooks implements the named hook bus that plugins register
// handlers on and directory operations dispatch through.
//
// Two dispatch primitives exist, selected by the hook's purpose:
//
//   - NotifyAll: best-effort observation. Every handler runs in
//     registration order; a handler error is logged and swallowed.
//   - TransformChain: abort-capable transformation. Each handler
//     receives the previous handler's output; the first error stops the
//     chain and propagates to the caller. This is how authorization
//     handlers veto directory operations.
//
// A Bus is created once at startup and handed to every plugin by
// reference; there is no package-level global.
package hooks
