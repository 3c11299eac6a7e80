package mesh

import (
	"sync"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/wgmesh/meshctl/internal/errx"
)

// GLOBAL is the distinguished namespace handle meaning "the ambient
// context". It is a value, not package-level mutable state, per the
// process-wide-singleton design note: callers pass it explicitly rather
// than relying on an implicit default.
const GLOBAL = "__global_ns"

// Namespace is a handle to an OS-level network-isolation context. Every
// primitive that touches link, route, or filter state is scoped to one.
type Namespace struct {
	name string

	mu     sync.Mutex
	handle *netlink.Handle
}

// NewNamespace returns a handle for the named network namespace. Passing
// GLOBAL yields a handle bound to the ambient namespace.
func NewNamespace(name string) *Namespace {
	return &Namespace{name: name}
}

// Name reports the namespace's identifier (GLOBAL for the ambient context).
func (n *Namespace) Name() string { return n.name }

// IsGlobal reports whether this handle refers to the ambient namespace.
func (n *Namespace) IsGlobal() bool { return n.name == GLOBAL }

// ensureCreated creates the OS-level namespace if it is not the ambient one.
// No-op (and no error) if name == GLOBAL, matching the Namespace primitive's
// contract.
func (n *Namespace) ensureCreated() error {
	if n.IsGlobal() {
		return nil
	}
	h, err := netns.NewNamed(n.name)
	if err != nil {
		return errx.Wrap(ErrNamespaceCreate, err)
	}
	return h.Close()
}

// destroy deletes the OS-level namespace. No-op if name == GLOBAL.
func (n *Namespace) destroy() error {
	if n.IsGlobal() {
		return nil
	}
	n.mu.Lock()
	if n.handle != nil {
		n.handle.Close()
		n.handle = nil
	}
	n.mu.Unlock()

	if err := netns.DeleteNamed(n.name); err != nil {
		return errx.Wrap(ErrNamespaceDelete, err)
	}
	return nil
}

// Handle returns a *netlink.Handle bound to this namespace, caching it so
// repeated primitive applications in the same namespace reuse one netlink
// socket instead of switching the calling goroutine's namespace via
// LockOSThread/netns.Set. This is the idiomatic vishvananda/netlink pattern
// for operating on a non-default namespace.
func (n *Namespace) Handle() (*netlink.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handle != nil {
		return n.handle, nil
	}

	if n.IsGlobal() {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, errx.Wrap(ErrPrimitive, err)
		}
		n.handle = h
		return n.handle, nil
	}

	nsHandle, err := netns.GetFromName(n.name)
	if err != nil {
		return nil, errx.Wrap(ErrPrimitive, err)
	}
	defer nsHandle.Close()

	h, err := netlink.NewHandleAt(nsHandle)
	if err != nil {
		return nil, errx.Wrap(ErrPrimitive, err)
	}
	n.handle = h
	return n.handle, nil
}
