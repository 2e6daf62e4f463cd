package timeout

import "errors"

// ErrInvalidArgument is returned by Start for a negative delay.
//
// Callers should test with errors.Is; the returned error carries the
// offending value.
var ErrInvalidArgument = errors.New("timeout: invalid argument")
