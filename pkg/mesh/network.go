package mesh

import (
	"context"
	"fmt"
	"net"

	"github.com/wgmesh/meshctl/internal/errx"
)

// edge is one directed entry in the mesh graph: from the owning Host,
// through peer, reachable via a tunnel whose local endpoint is selfIP and
// whose far endpoint is peerIP.
type edge struct {
	peer   string
	selfIP string
	peerIP string
}

// natRequest is a queued output_to_nat_gateway call, resolved by Pass 2.
type natRequest struct {
	bundle  AddressSetBundle
	src     string
	gateway string
}

// Network is the declaration-time graph of Hosts and tunnel edges: the
// entry point for add_host/connect/output_to_nat_gateway, and the owner of
// the two compilation passes.
type Network struct {
	hosts    map[string]*Host
	order    []string // insertion order, for deterministic BFS tie-break
	edges    map[string][]edge
	natReqs  []natRequest
	compiled bool

	mockNet bool
	mock    *mockHarness
}

// NewNetwork returns an empty Network. mockNet selects the C6 mock harness:
// every Host runs in its own namespace, veth'd to a shared hub namespace,
// instead of using real WAN addresses.
func NewNetwork(mockNet bool) *Network {
	n := &Network{
		hosts:   make(map[string]*Host),
		edges:   make(map[string][]edge),
		mockNet: mockNet,
	}
	if mockNet {
		n.mock = newMockHarness()
	}
	return n
}

// AddHost declares a Host. In mock mode it also synthesizes the virtual
// link from the host's own namespace to the shared hub namespace.
func (n *Network) AddHost(name, wanIP string, key Key, onRestart RestartNotifier) error {
	if _, exists := n.hosts[name]; exists {
		return errx.With(ErrDuplicateHost, ": %s", name)
	}

	var ns *Namespace
	if n.mockNet {
		ns = NewNamespace(name)
		if err := n.mock.addHost(name, wanIP); err != nil {
			return err
		}
	} else {
		ns = NewNamespace(GLOBAL)
	}

	n.hosts[name] = NewHost(name, wanIP, key, ns, onRestart)
	n.order = append(n.order, name)
	n.edges[name] = nil
	return nil
}

// HostNames returns every declared host name in declaration order.
func (n *Network) HostNames() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// IsMockNet reports whether this Network was built with the mock harness
// (either because it was constructed that way, or because its source
// document requested it).
func (n *Network) IsMockNet() bool { return n.mockNet }

// Host looks up a declared Host by name.
func (n *Network) Host(name string) (*Host, error) {
	h, ok := n.hosts[name]
	if !ok {
		return nil, errx.With(ErrUnknownHost, ": %s", name)
	}
	return h, nil
}

// Connect declares a tunnel edge between left (initiator) and right
// (listener) over cidr/30 on UDP port. left.ip = cidr+1, right.ip = cidr+2;
// cidr must be a /30 whose low-order octet has its two low bits zero (a
// multiple of 4).
func (n *Network) Connect(leftName, rightName, cidr string, port int) error {
	left, err := n.Host(leftName)
	if err != nil {
		return err
	}
	right, err := n.Host(rightName)
	if err != nil {
		return err
	}
	if right.WANIP == "" {
		return errx.With(ErrNoWANAddress, ": %s", right.Name)
	}

	_, leftAddr, rightAddr, err := splitLinkCIDR(cidr)
	if err != nil {
		return err
	}

	ifname := fmt.Sprintf("%s.%s", left.Name, right.Name)
	peerEndpoint := fmt.Sprintf("%s:%d", right.WANIP, port)

	left.Transaction().Append(newTunnelPrimitive(
		TunnelInitiator, ifname, left.Key, right.Key.Public, leftAddr, peerEndpoint, port, 1360, left.NS, ""))
	right.Transaction().Append(newTunnelPrimitive(
		TunnelListener, ifname, right.Key, left.Key.Public, rightAddr, "", port, 1360, right.NS, ""))

	lip := leftAddr.IP.String()
	rip := rightAddr.IP.String()
	left.Claim(lip)
	right.Claim(rip)

	n.edges[left.Name] = append(n.edges[left.Name], edge{peer: right.Name, selfIP: lip, peerIP: rip})
	n.edges[right.Name] = append(n.edges[right.Name], edge{peer: left.Name, selfIP: rip, peerIP: lip})

	return nil
}

// splitLinkCIDR validates cidr as a /30 whose network address's low-order
// octet is a multiple of 4, then returns the /30 network and the two host
// addresses at +1 (left) and +2 (right), each carrying a /30 mask.
func splitLinkCIDR(cidr string) (network *net.IPNet, left, right *net.IPNet, err error) {
	ip, ipnet, perr := net.ParseCIDR(cidr)
	if perr != nil {
		return nil, nil, nil, errx.With(ErrBadCIDR, ": %s: %w", cidr, perr)
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 || ones != 30 {
		return nil, nil, nil, errx.With(ErrBadCIDR, ": %s", cidr)
	}
	base := ip.To4()
	if base == nil || base[3]%4 != 0 {
		return nil, nil, nil, errx.With(ErrBadCIDR, ": %s", cidr)
	}

	leftIP := make(net.IP, 4)
	copy(leftIP, base)
	leftIP[3]++
	rightIP := make(net.IP, 4)
	copy(rightIP, base)
	rightIP[3] += 2

	mask := net.CIDRMask(30, 32)
	return ipnet, &net.IPNet{IP: leftIP, Mask: mask}, &net.IPNet{IP: rightIP, Mask: mask}, nil
}

// OutputToNATGateway queues a policy-route request, resolved by Pass 2.
func (n *Network) OutputToNATGateway(bundle AddressSetBundle, src, gateway string) error {
	if _, err := n.Host(src); err != nil {
		return err
	}
	if _, err := n.Host(gateway); err != nil {
		return err
	}
	if src == gateway {
		return errx.With(ErrSelfGateway, ": %s", src)
	}
	n.natReqs = append(n.natReqs, natRequest{bundle: bundle, src: src, gateway: gateway})
	return nil
}

// AddDNS installs a supervised recursive-DNS helper on host, listening on
// listenAddr (e.g. "0.0.0.0:53").
func (n *Network) AddDNS(host, listenAddr string, onRestart RestartNotifier) error {
	h, err := n.Host(host)
	if err != nil {
		return err
	}
	args := []string{"-l", listenAddr, "-c", "1.1.1.1:53"}
	h.Transaction().Append(newSupervisedProcessPrimitive(KindRecursiveDNS, "recursivedns", args, h.NS, !n.mockNet, onRestart))
	return nil
}

// shortestPath runs a deterministic (insertion-order) BFS from start to end
// over the edge graph, returning the path as a sequence of (from, to,
// tunnelIP, nextHop) hops.
func (n *Network) shortestPath(start, end string) ([]pathHop, error) {
	visited := map[string]bool{start: true}
	parent := make(map[string]pathHop)
	queue := []string{start}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range n.edges[u] {
			if visited[e.peer] {
				continue
			}
			visited[e.peer] = true
			parent[e.peer] = pathHop{from: u, to: e.peer, tunnelIP: e.selfIP, nextHop: e.peerIP}
			queue = append(queue, e.peer)
		}
	}

	if !visited[end] {
		return nil, errx.With(ErrNoPath, ": %s -> %s", start, end)
	}

	var reversed []pathHop
	cur := end
	for cur != start {
		hop := parent[cur]
		reversed = append(reversed, hop)
		cur = hop.from
	}
	path := make([]pathHop, len(reversed))
	for i, h := range reversed {
		path[len(reversed)-1-i] = h
	}
	return path, nil
}

// pathHop is one edge on a resolved shortest path: from -> to, with the
// tunnel address the "from" side owns on this edge and the next-hop address
// (the "to" side's tunnel address) traffic is forwarded toward.
type pathHop struct {
	from     string
	to       string
	tunnelIP string
	nextHop  string
}

// Up compiles the network if needed, then applies the named host's
// transaction. Compilation runs at most once across the Network's whole
// lifetime, so the first Up call on any host pays for it.
func (n *Network) Up(ctx context.Context, host string) error {
	if !n.compiled {
		if err := n.Compile(); err != nil {
			return err
		}
	}
	h, err := n.Host(host)
	if err != nil {
		return err
	}
	return h.Transaction().Apply(ctx)
}

// Down reverts the named host's transaction.
func (n *Network) Down(ctx context.Context, host string) error {
	h, err := n.Host(host)
	if err != nil {
		return err
	}
	return h.Transaction().Revert(ctx)
}

// UpMockNet applies the shared mock-harness transaction (hub namespace,
// veths, NAT) independently of any Host's own transaction.
func (n *Network) UpMockNet(ctx context.Context) error {
	if !n.mockNet {
		return errx.With(ErrConfig, ": %s", "mock net not enabled")
	}
	return n.mock.Transaction().Apply(ctx)
}

// DownMockNet reverts the shared mock-harness transaction.
func (n *Network) DownMockNet(ctx context.Context) error {
	if !n.mockNet {
		return errx.With(ErrConfig, ": %s", "mock net not enabled")
	}
	return n.mock.Transaction().Revert(ctx)
}
