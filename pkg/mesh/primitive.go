package mesh

import "context"

// Primitive is the uniform abstraction for a reversible host-level
// configuration change. Concrete variants are a closed set of structs
// (tagged variant, not polymorphic inheritance — Go has no sum types);
// the closed-set discipline is enforced by keeping every constructor
// unexported outside this package.
type Primitive interface {
	// Apply installs the configuration. Re-applying an already-applied
	// primitive is not required to succeed — the Transaction layer never
	// does that.
	Apply(ctx context.Context) error

	// Revert removes exactly what Apply installed.
	Revert(ctx context.Context) error

	// String identifies the primitive for logging.
	String() string
}
