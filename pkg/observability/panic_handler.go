package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the full stack trace.
// Meant for defer statements guarding background work (assertion archiving,
// refresh jobs) where a panic must not take the process down. The panic is
// not re-raised.
//
//	defer observability.RecoverPanic(logger, "assertion archive")
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
