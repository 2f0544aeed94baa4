package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic in a defer statement and logs it with the
// full stack trace. The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoveredError converts a recover() value into an error, or nil when no
// panic occurred. Used to stop a misbehaving plugin from taking the
// gateway down with it.
func RecoveredError(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
