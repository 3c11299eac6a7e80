package mesh

import (
	"context"
	"fmt"
)

// namespacePrimitive creates an isolated network context (no-op if the
// namespace is GLOBAL). Revert deletes it.
type namespacePrimitive struct {
	ns *Namespace
}

func newNamespacePrimitive(ns *Namespace) *namespacePrimitive {
	return &namespacePrimitive{ns: ns}
}

func (p *namespacePrimitive) Apply(ctx context.Context) error {
	return p.ns.ensureCreated()
}

func (p *namespacePrimitive) Revert(ctx context.Context) error {
	return p.ns.destroy()
}

func (p *namespacePrimitive) String() string {
	return fmt.Sprintf("Namespace(%s)", p.ns.Name())
}
