package domain

import "errors"

// Error taxonomy of the notification pipeline. From the gateway's point of
// view only ErrAuth and ErrParse are permanent; everything else is safe to
// retry any number of times.
var (
	ErrAuth          = errors.New("invalid or missing signature")
	ErrParse         = errors.New("malformed payload")
	ErrOrderNotFound = errors.New("order not found")
	ErrTransient     = errors.New("transient storage failure")
)
