package service

import "errors"

// ErrRunInProgress is returned when a reconciliation run is requested while
// another one is still executing.
var ErrRunInProgress = errors.New("reconciliation run already in progress")
