// Package errx wraps sentinel errors with call-site detail while keeping
// errors.Is(err, sentinel) working.
package errx

import "fmt"

// Wrap joins a sentinel error with the underlying cause. Both remain
// discoverable through errors.Is/errors.As.
func Wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With joins a sentinel error with a formatted detail string. format may
// itself contain %w verbs, in which case the matching args are wrapped
// alongside sentinel.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
