// internal/errors/errors.go
package errors

import "fmt"

// ErrUnknownSinkStrategy is returned when SINK_STRATEGY names a persistence
// strategy this build does not provide.
type ErrUnknownSinkStrategy struct {
	Strategy string
}

func (e *ErrUnknownSinkStrategy) Error() string {
	return fmt.Sprintf("unknown sink strategy: %q, expected 'batch', 'upsert' or 'redis'", e.Strategy)
}
