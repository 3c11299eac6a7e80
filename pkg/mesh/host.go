package mesh

import (
	"fmt"
	"net"

	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/wgmesh/meshctl/internal/errx"
)

// PolicyMode selects which of the three shapes of a policy route
// install_policy_route builds — the exact three branches of the original's
// Host.policy_route.
type PolicyMode int

const (
	// LocalOutput routes traffic this host itself originates.
	LocalOutput PolicyMode = iota
	// Transit marks traffic this host only forwards toward a gateway.
	Transit
	// EgressNAT is the terminal hop: masquerade non-TCP, transparent-proxy TCP.
	EgressNAT
)

func (m PolicyMode) String() string {
	switch m {
	case LocalOutput:
		return "LOCAL_OUTPUT"
	case Transit:
		return "TRANSIT"
	case EgressNAT:
		return "EGRESS_NAT"
	default:
		return "UNKNOWN"
	}
}

// baseRouteTableID is where each Host's routing-table counter starts.
const baseRouteTableID = 100

// proxyPort is the fixed listening port of the transparent TCP egress proxy.
const proxyPort = 3140

// Host is a named node in the mesh: a key pair, an optional public address,
// a namespace, the ranges it has claimed as locally reachable, and the
// Transaction that will carry every primitive synthesized for it.
type Host struct {
	Name  string
	WANIP string
	Key   Key
	NS    *Namespace

	claimedRanges []string
	transaction   *Transaction
	nextTableID   int
	hasEgressNAT  bool
	addressSets   map[string]bool

	onRestart RestartNotifier
}

// NewHost constructs a Host. wanIP may be empty for a host that never acts
// as a tunnel listener or NAT gateway.
func NewHost(name, wanIP string, key Key, ns *Namespace, onRestart RestartNotifier) *Host {
	return &Host{
		Name:        name,
		WANIP:       wanIP,
		Key:         key,
		NS:          ns,
		transaction: NewTransaction(),
		nextTableID: baseRouteTableID,
		addressSets: make(map[string]bool),
		onRestart:   onRestart,
	}
}

// Transaction exposes the Host's owned Transaction for Apply/Revert by the
// engine and for Pass 1/Pass 2 to append synthesized primitives to.
func (h *Host) Transaction() *Transaction { return h.transaction }

// ClaimedRanges returns the ranges this Host has recorded as locally
// reachable, in the order they were claimed — Pass 1 walks these.
func (h *Host) ClaimedRanges() []string { return h.claimedRanges }

// Claim records cidr as an address range reachable through this Host.
func (h *Host) Claim(cidr string) {
	h.claimedRanges = append(h.claimedRanges, cidr)
}

// AddAddressSet is idempotent by set name: on first call it rebinds the set
// to this Host's namespace and prepends the primitive to the transaction so
// it exists before any rule that references it by name.
func (h *Host) AddAddressSet(set AddressSet) {
	if h.addressSets[set.Name] {
		return
	}
	h.addressSets[set.Name] = true
	h.transaction.Prepend(newAddressSetPrimitive(set.Name, set.Ranges, h.NS))
}

// allocTableID returns the next routing-table identifier for this Host. The
// sequence is strictly increasing per Host, so a test can reason about
// which rule a given mark refers to.
func (h *Host) allocTableID() int {
	id := h.nextTableID
	h.nextTableID++
	return id
}

// InstallPolicyRoute appends the primitives for one policy-route request,
// translating the original's three Host.policy_route branches into nftables
// rules plus, for LocalOutput and Transit, a Route/RouteRule pair binding
// the allocated table to nextHop.
func (h *Host) InstallPolicyRoute(mode PolicyMode, srcIP string, bundle AddressSetBundle, nextHop string) error {
	if mode == LocalOutput && nextHop == "" {
		return errx.With(ErrConfig, ": %s", "local_output requires a next hop")
	}

	if mode == EgressNAT && !h.hasEgressNAT {
		h.hasEgressNAT = true
		h.transaction.Append(newSupervisedProcessPrimitive(KindAnyProxy, "anyproxy", []string{"-listen", fmt.Sprintf(":%d", proxyPort)}, h.NS, false, h.onRestart))
	}

	tableID := h.allocTableID()

	switch mode {
	case LocalOutput:
		h.transaction.Append(newFilterRulePrimitive(TableMangle, ChainOutput, h.NS,
			fmt.Sprintf("classify local-output table=%d", tableID),
			func() []expr.Any { return buildConnmarkClassify(bundle, tableID) }))
		h.transaction.Append(newFilterRulePrimitive(TableMangle, ChainOutput, h.NS,
			fmt.Sprintf("restore-mark table=%d", tableID),
			func() []expr.Any { return buildConnmarkRestore(tableID) }))
		h.transaction.Append(newFilterRulePrimitive(TableNAT, ChainPostrouting, h.NS,
			fmt.Sprintf("snat %s table=%d", srcIP, tableID),
			func() []expr.Any { return buildSNAT(srcIP, tableID) }))
	case Transit:
		h.transaction.Append(newFilterRulePrimitive(TableMangle, ChainPrerouting, h.NS,
			fmt.Sprintf("mark transit src=%s table=%d", srcIP, tableID),
			func() []expr.Any { return buildMarkBySource(bundle, srcIP, tableID) }))
	case EgressNAT:
		h.transaction.Append(newFilterRulePrimitive(TableNAT, ChainPostrouting, h.NS,
			fmt.Sprintf("masquerade non-tcp src=%s", srcIP),
			func() []expr.Any { return buildMasqueradeNonTCP(bundle, srcIP) }))
		h.transaction.Append(newFilterRulePrimitive(TableNAT, ChainPrerouting, h.NS,
			fmt.Sprintf("redirect tcp src=%s -> :%d", srcIP, proxyPort),
			func() []expr.Any { return buildRedirectTCP(bundle, srcIP) }))
	default:
		return errx.With(ErrConfig, ": unknown policy mode %d", mode)
	}

	if mode != EgressNAT {
		h.transaction.Append(newRoutePrimitive("default", nextHop, fmt.Sprintf("%d", tableID), h.NS))
		h.transaction.Append(newRouteRulePrimitive(tableID, tableID, h.NS))
	}
	return nil
}

// --- nftables expression builders, one per branch of the original's
// policy_route iptables-rule strings. ---

// bundleExprs renders an AddressSetBundle's destination-membership
// condition: match every set in Match, none in NotMatch, via Lookup
// expressions against sets that must live in the shared per-namespace
// table (see nft.go).
func bundleExprs(bundle AddressSetBundle) []expr.Any {
	var out []expr.Any
	for _, s := range bundle.Match {
		out = append(out, destLookup(s.Name, false)...)
	}
	for _, s := range bundle.NotMatch {
		out = append(out, destLookup(s.Name, true)...)
	}
	return out
}

func destLookup(setName string, invert bool) []expr.Any {
	return []expr.Any{
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseNetworkHeader, Offset: 16, Len: 4},
		&expr.Lookup{SourceRegister: 1, SetName: setName, Invert: invert},
	}
}

func markZeroExprs() []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyMARK, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(0)},
	}
}

func srcAddrExprs(ip string) []expr.Any {
	return []expr.Any{
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseNetworkHeader, Offset: 12, Len: 4},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: mustIPv4(ip)},
	}
}

func tcpProtoExprs(invert bool) []expr.Any {
	op := expr.CmpOpEq
	if invert {
		op = expr.CmpOpNeq
	}
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{Op: op, Register: 1, Data: []byte{unix.IPPROTO_TCP}},
	}
}

// notEstablishedExprs matches packets whose conntrack state is neither
// ESTABLISHED nor RELATED — the original's `-m state ! --state
// ESTABLISHED,RELATED`.
func notEstablishedExprs() []expr.Any {
	const established = 1 << 1
	const related = 1 << 2
	mask := binaryutil.NativeEndian.PutUint32(established | related)
	return []expr.Any{
		&expr.Ct{Register: 1, Key: expr.CtKeySTATE},
		&expr.Bitwise{SourceRegister: 1, DestRegister: 1, Len: 4, Mask: mask, Xor: binaryutil.NativeEndian.PutUint32(0)},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(0)},
	}
}

func setMarkExprs(tableID int) []expr.Any {
	return []expr.Any{
		&expr.Immediate{Register: 1, Data: binaryutil.NativeEndian.PutUint32(uint32(tableID))},
		&expr.Meta{Key: expr.MetaKeyMARK, Register: 1, SourceRegister: true},
	}
}

// buildConnmarkClassify is the original's first OUTPUT rule: fresh,
// unmarked, bundle-matching traffic gets its connection tracking entry
// tagged with tableID via CONNMARK.
func buildConnmarkClassify(bundle AddressSetBundle, tableID int) []expr.Any {
	var out []expr.Any
	out = append(out, bundleExprs(bundle)...)
	out = append(out, markZeroExprs()...)
	out = append(out, notEstablishedExprs()...)
	out = append(out,
		&expr.Immediate{Register: 1, Data: binaryutil.NativeEndian.PutUint32(uint32(tableID))},
		&expr.Ct{Register: 1, Key: expr.CtKeyMARK, SourceRegister: true},
	)
	return out
}

// buildConnmarkRestore is the original's second OUTPUT rule, equivalent to
// `-j restore-mark`: when the connection's CONNMARK equals tableID, copy it
// onto the packet mark so the policy-routing rule picks it up.
func buildConnmarkRestore(tableID int) []expr.Any {
	out := []expr.Any{
		&expr.Ct{Register: 1, Key: expr.CtKeyMARK},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(uint32(tableID))},
	}
	return append(out, setMarkExprs(tableID)...)
}

// buildSNAT is the original's `nat POSTROUTING ... -j SNAT --to-source`.
func buildSNAT(srcIP string, tableID int) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyMARK, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: binaryutil.NativeEndian.PutUint32(uint32(tableID))},
		&expr.Immediate{Register: 1, Data: mustIPv4(srcIP)},
		&expr.NAT{Type: expr.NATTypeSourceNAT, Family: unix.NFPROTO_IPV4, RegAddrMin: 1},
	}
}

// buildMarkBySource is the Transit branch's single mangle/PREROUTING rule.
func buildMarkBySource(bundle AddressSetBundle, srcIP string, tableID int) []expr.Any {
	var out []expr.Any
	out = append(out, bundleExprs(bundle)...)
	out = append(out, markZeroExprs()...)
	out = append(out, srcAddrExprs(srcIP)...)
	return append(out, setMarkExprs(tableID)...)
}

// buildMasqueradeNonTCP is the EgressNAT branch's non-TCP nat/POSTROUTING
// MASQUERADE rule.
func buildMasqueradeNonTCP(bundle AddressSetBundle, srcIP string) []expr.Any {
	var out []expr.Any
	out = append(out, bundleExprs(bundle)...)
	out = append(out, markZeroExprs()...)
	out = append(out, srcAddrExprs(srcIP)...)
	out = append(out, tcpProtoExprs(true)...)
	return append(out, &expr.Masq{})
}

// buildRedirectTCP is the EgressNAT branch's TCP nat/PREROUTING REDIRECT
// rule, sending connections to the transparent proxy port.
func buildRedirectTCP(bundle AddressSetBundle, srcIP string) []expr.Any {
	var out []expr.Any
	out = append(out, bundleExprs(bundle)...)
	out = append(out, markZeroExprs()...)
	out = append(out, srcAddrExprs(srcIP)...)
	out = append(out, tcpProtoExprs(false)...)
	out = append(out,
		&expr.Immediate{Register: 1, Data: binaryutil.BigEndian.PutUint16(proxyPort)},
		&expr.Redir{RegisterProtoMin: 1},
	)
	return out
}

func mustIPv4(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return make([]byte, 4)
	}
	return ip.To4()
}
