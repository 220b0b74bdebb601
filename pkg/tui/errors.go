package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoOptions is returned when a select prompt has nothing to offer.
	ErrNoOptions = errors.New("tui: no options to select")
	// ErrTermsDeclined is returned when the user refuses the terms and
	// does not want to try again.
	ErrTermsDeclined = errors.New("tui: terms not accepted")
)
