package mesh

import (
	"context"

	"github.com/wgmesh/meshctl/internal/errx"
)

// Transaction is an ordered, all-or-nothing application of a list of
// Primitives with automatic rollback on failure and deterministic
// reverse-order teardown (spec's ConfSet).
type Transaction struct {
	prims []Primitive
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Append adds a primitive to the end of the transaction.
func (t *Transaction) Append(p Primitive) {
	t.prims = append(t.prims, p)
}

// Prepend adds a primitive to the beginning of the transaction. Used for
// address sets so they exist before any rule that references them.
func (t *Transaction) Prepend(p Primitive) {
	t.prims = append([]Primitive{p}, t.prims...)
}

// Len reports how many primitives are queued.
func (t *Transaction) Len() int { return len(t.prims) }

// Strings renders every queued primitive's String() in apply order, for
// diagnostics and tests.
func (t *Transaction) Strings() []string {
	out := make([]string, len(t.prims))
	for i, p := range t.prims {
		out[i] = p.String()
	}
	return out
}

// Apply calls Apply on each primitive in order. On the first failure it
// calls Revert on all previously-succeeded primitives in reverse order and
// returns the original error wrapped as a PrimitiveError.
func (t *Transaction) Apply(ctx context.Context) error {
	var applied []Primitive
	for _, p := range t.prims {
		if err := p.Apply(ctx); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				_ = applied[i].Revert(ctx)
			}
			return errx.Wrap(ErrPrimitive, err)
		}
		applied = append(applied, p)
	}
	return nil
}

// Revert calls Revert on every primitive in reverse order. Best-effort:
// the first error encountered is returned only after the whole traversal
// completes, so every primitive gets a chance to tear down.
func (t *Transaction) Revert(ctx context.Context) error {
	var firstErr error
	for i := len(t.prims) - 1; i >= 0; i-- {
		if err := t.prims[i].Revert(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return errx.Wrap(ErrPrimitive, firstErr)
	}
	return nil
}
