package engine

import "errors"

var (
	ErrDisabled    = errors.New("task engine disabled")
	ErrStopped     = errors.New("task engine stopped")
	ErrStopping    = errors.New("task engine stopping")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task skipped: already running")
	ErrCircuitOpen = errors.New("task skipped: circuit open")
)

// NoRetry marks err as final for this run. The failure is recorded and no
// further attempt is scheduled; a periodic job is expected to pick the work
// up again.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

func IsNoRetry(err error) bool {
	return errors.As(err, new(noRetryError))
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return "final: " + e.err.Error() }
func (e noRetryError) Unwrap() error { return e.err }
