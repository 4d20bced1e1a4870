package collector

import "errors"

var (
	// ErrWaitTimeout is returned by Surface.WaitUntil when the condition did
	// not hold in time.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrPageLoad marks a listing page that never presented a card. It aborts
	// the run, unlike an exhausted catalog which ends it with a nil error.
	ErrPageLoad = errors.New("listing page did not present any cards")
)
