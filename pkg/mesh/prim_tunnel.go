package mesh

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vishvananda/netlink"

	"github.com/wgmesh/meshctl/internal/errx"
)

// TunnelRole distinguishes the initiator (dials the peer endpoint) from the
// listener (binds the UDP port) side of a tunnel edge.
type TunnelRole int

const (
	// TunnelInitiator dials peerEndpoint.
	TunnelInitiator TunnelRole = iota
	// TunnelListener binds port and waits for the initiator to dial in.
	TunnelListener
)

// tunnelFwmark is the distinguished firewall mark reserved for
// already-encrypted tunnel traffic, so policy rules installed by
// install_policy_route never re-route it.
const tunnelFwmark = 51820

// tunnelKeepaliveSeconds is the WireGuard persistent-keepalive interval.
const tunnelKeepaliveSeconds = 30

// tunnelPrimitive creates an encrypted tunnel interface in ns, assigns
// localAddr, sets mtu, marks outbound encrypted traffic with tunnelFwmark,
// and configures the peer with allowed-ips=0.0.0.0/0 and a 30s keepalive.
// Interface creation/address/MTU/up go through vishvananda/netlink; the
// private key, peer, allowed-ips and keepalive configuration shell out to
// the wg CLI since no pack example owns the WireGuard genetlink protocol.
type tunnelPrimitive struct {
	role         TunnelRole
	ifname       string
	localKey     Key
	peerPub      string
	localAddr    *net.IPNet
	peerEndpoint string // host:port, initiator only
	port         int
	mtu          int
	ns           *Namespace

	wgExe   string
	keyDir  string
	keyPath string
}

func newTunnelPrimitive(role TunnelRole, ifname string, localKey Key, peerPub string, localAddr *net.IPNet, peerEndpoint string, port, mtu int, ns *Namespace, wgExe string) *tunnelPrimitive {
	if wgExe == "" {
		wgExe = "wg"
	}
	return &tunnelPrimitive{
		role:         role,
		ifname:       truncateIfname(ifname),
		localKey:     localKey,
		peerPub:      peerPub,
		localAddr:    localAddr,
		peerEndpoint: peerEndpoint,
		port:         port,
		mtu:          mtu,
		ns:           ns,
		wgExe:        wgExe,
	}
}

func (p *tunnelPrimitive) Apply(ctx context.Context) error {
	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrLinkCreate, err)
	}

	link := &netlink.GenericLink{
		LinkAttrs: netlink.LinkAttrs{Name: p.ifname},
		LinkType:  "wireguard",
	}
	if err := handle.LinkAdd(link); err != nil {
		return errx.Wrap(ErrLinkCreate, err)
	}

	iface, err := handle.LinkByName(p.ifname)
	if err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := handle.AddrAdd(iface, &netlink.Addr{IPNet: p.localAddr}); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}
	if err := handle.LinkSetMTU(iface, p.mtu); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}

	dir, err := os.MkdirTemp("", "meshctl-wg-")
	if err != nil {
		return errx.Wrap(ErrTunnelConfigure, err)
	}
	p.keyDir = dir
	p.keyPath = filepath.Join(dir, "sk")
	if err := p.localKey.writePrivateKeyFile(p.keyPath); err != nil {
		return errx.Wrap(ErrTunnelConfigure, err)
	}

	if err := p.wg(ctx, "set", p.ifname, "fwmark", fmt.Sprint(tunnelFwmark)); err != nil {
		return errx.Wrap(ErrTunnelConfigure, err)
	}

	args := []string{"set", p.ifname, "private-key", p.keyPath}
	if p.role == TunnelListener {
		args = append(args, "listen-port", fmt.Sprint(p.port))
	}
	args = append(args,
		"peer", p.peerPub,
		"allowed-ips", "0.0.0.0/0",
		"persistent-keepalive", fmt.Sprint(tunnelKeepaliveSeconds),
	)
	if p.role == TunnelInitiator {
		args = append(args, "endpoint", p.peerEndpoint)
	}
	if err := p.wg(ctx, args...); err != nil {
		return errx.Wrap(ErrTunnelConfigure, err)
	}

	if err := handle.LinkSetUp(iface); err != nil {
		return errx.Wrap(ErrLinkConfigure, err)
	}

	return nil
}

func (p *tunnelPrimitive) Revert(ctx context.Context) error {
	if p.keyDir != "" {
		_ = os.RemoveAll(p.keyDir)
	}

	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrLinkDelete, err)
	}
	iface, err := handle.LinkByName(p.ifname)
	if err != nil {
		return nil
	}
	if err := handle.LinkDel(iface); err != nil {
		return errx.Wrap(ErrLinkDelete, err)
	}
	return nil
}

func (p *tunnelPrimitive) String() string {
	return fmt.Sprintf("Tunnel(%s)", p.ifname)
}

func (p *tunnelPrimitive) wg(ctx context.Context, args ...string) error {
	cmd := execCommandFor(ctx, p.ns, p.wgExe, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", p.wgExe, args, err, out)
	}
	return nil
}

// execCommandFor builds an *exec.Cmd that runs inside ns, matching the
// teacher's pkg/net/iptables.go exec.Command pattern for subsystems
// without a Go binding — here via `ip netns exec` when ns is non-global.
func execCommandFor(ctx context.Context, ns *Namespace, name string, args ...string) *exec.Cmd {
	if ns.IsGlobal() {
		return exec.CommandContext(ctx, name, args...)
	}
	full := append([]string{"netns", "exec", ns.Name(), name}, args...)
	return exec.CommandContext(ctx, "ip", full...)
}
