package reconcile

import "errors"

var (
	// ErrInvalidSignature means the notification did not authenticate.
	// Treated as a potential forgery, never as a benign failure.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedPayload means a verified payload could not be parsed.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrDuplicateSession is returned by the tracker when the session
	// id was already recorded. Not an error for callers: it is the
	// signal that reconciliation already happened.
	ErrDuplicateSession = errors.New("session already processed")
)
