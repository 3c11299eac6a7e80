package mesh

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/wgmesh/meshctl/internal/errx"
)

// virtualLinkPrimitive creates a paired virtual interface, moves one end
// into rightNS, assigns each side its address, and brings both up. Revert
// deletes the left end only; the kernel removes the peer automatically.
type virtualLinkPrimitive struct {
	name      string
	leftAddr  *net.IPNet
	rightAddr *net.IPNet
	leftNS    *Namespace
	rightNS   *Namespace

	leftIfname  string
	rightIfname string
}

func newVirtualLinkPrimitive(name string, leftAddr, rightAddr *net.IPNet, leftNS, rightNS *Namespace) *virtualLinkPrimitive {
	return &virtualLinkPrimitive{
		name:        name,
		leftAddr:    leftAddr,
		rightAddr:   rightAddr,
		leftNS:      leftNS,
		rightNS:     rightNS,
		leftIfname:  truncateIfname(name + "-l"),
		rightIfname: truncateIfname(name + "-r"),
	}
}

func (p *virtualLinkPrimitive) Apply(ctx context.Context) error {
	leftHandle, err := p.leftNS.Handle()
	if err != nil {
		return errx.Wrap(ErrLinkCreate, err)
	}

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: p.leftIfname},
		PeerName:  p.rightIfname,
	}
	if err := leftHandle.LinkAdd(veth); err != nil {
		return errx.Wrap(ErrLinkCreate, err)
	}

	if !p.rightNS.IsGlobal() {
		peer, err := leftHandle.LinkByName(p.rightIfname)
		if err != nil {
			return errx.Wrap(ErrLinkConfigure, err)
		}
		nsHandle, err := netns.GetFromName(p.rightNS.Name())
		if err != nil {
			return errx.Wrap(ErrLinkConfigure, err)
		}
		defer nsHandle.Close()
		if err := leftHandle.LinkSetNsFd(peer, int(nsHandle)); err != nil {
			return errx.Wrap(ErrLinkConfigure, err)
		}
	}

	left, err := leftHandle.LinkByName(p.leftIfname)
	if err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := leftHandle.AddrAdd(left, &netlink.Addr{IPNet: p.leftAddr}); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := leftHandle.LinkSetUp(left); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}

	rightHandle, err := p.rightNS.Handle()
	if err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	right, err := rightHandle.LinkByName(p.rightIfname)
	if err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := rightHandle.AddrAdd(right, &netlink.Addr{IPNet: p.rightAddr}); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := rightHandle.LinkSetUp(right); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}

	return nil
}

func (p *virtualLinkPrimitive) Revert(ctx context.Context) error {
	leftHandle, err := p.leftNS.Handle()
	if err != nil {
		return errx.Wrap(ErrLinkDelete, err)
	}
	left, err := leftHandle.LinkByName(p.leftIfname)
	if err != nil {
		// Already gone (e.g. namespace already torn down).
		return nil
	}
	if err := leftHandle.LinkDel(left); err != nil {
		return errx.Wrap(ErrLinkDelete, err)
	}
	return nil
}

func (p *virtualLinkPrimitive) String() string {
	return fmt.Sprintf("VirtualLink(%s <-> %s)", p.leftIfname, p.rightIfname)
}
