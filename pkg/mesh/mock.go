package mesh

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/nftables/expr"

	"github.com/wgmesh/meshctl/internal/errx"
)

// mockAllocatorStart is the first /24 octet used for hosts declared without
// a WAN address in mock mode (10.123.<n>.0/24 per host).
const mockAllocatorStart = 10

// mockHarness is the C6 mock net: every declared host gets its own
// namespace, veth'd to one shared hub namespace, with a default route
// through the hub and source-validated forwarding — a local stand-in for a
// real WAN so the declaration API can be exercised without root-owned
// network hardware beyond namespaces themselves.
type mockHarness struct {
	hubNS       *Namespace
	transaction *Transaction
	allocator   int
}

func newMockHarness() *mockHarness {
	hub := NewNamespace("hub")
	t := NewTransaction()
	t.Append(newNamespacePrimitive(hub))
	hubLink := newVirtualLinkPrimitive("hub",
		mustCIDR("192.168.1.1/24"), mustCIDR("192.168.1.2/24"), NewNamespace(GLOBAL), hub)
	t.Append(hubLink)
	t.Append(newRoutePrimitive("default", "192.168.1.1", "main", hub))
	t.Append(newFilterRulePrimitive(TableNAT, ChainPostrouting, hub, fmt.Sprintf("masquerade %s egress", hubLink.rightIfname),
		func() []expr.Any { return buildOIFMasquerade(hubLink.rightIfname) }))
	t.Append(newFilterRulePrimitive(TableNAT, ChainPostrouting, NewNamespace(GLOBAL), "masquerade hub uplink",
		func() []expr.Any { return buildSrcMasquerade("192.168.1.2") }))

	return &mockHarness{hubNS: hub, transaction: t, allocator: mockAllocatorStart}
}

// Transaction exposes the harness's shared setup (hub namespace + veth +
// NAT) so the engine can apply/revert it alongside per-host transactions.
func (m *mockHarness) Transaction() *Transaction { return m.transaction }

// addHost synthesizes the per-host side of the mock net: a namespace, a
// veth to the hub, a default route, and a source-validating DROP rule on
// forwarded traffic that doesn't carry the host's own left-side address.
func (m *mockHarness) addHost(name, wanIP string) error {
	var leftAddr, rightAddr *net.IPNet
	var via string

	if wanIP != "" {
		octets := strings.Split(wanIP, ".")
		if len(octets) != 4 {
			return errx.With(ErrConfig, ": invalid wan_ip %q", wanIP)
		}
		last := octets[3]
		peer := "1"
		if last == "1" {
			peer = "2"
		}
		leftAddr = mustCIDR(wanIP + "/24")
		rightAddr = mustCIDR(fmt.Sprintf("%s.%s.%s.%s/24", octets[0], octets[1], octets[2], peer))
		via = fmt.Sprintf("%s.%s.%s.%s", octets[0], octets[1], octets[2], peer)
	} else {
		if m.allocator >= 255 {
			return errx.With(ErrConfig, ": mock net address space exhausted")
		}
		n := m.allocator
		m.allocator++
		leftAddr = mustCIDR(fmt.Sprintf("10.123.%d.2/24", n))
		rightAddr = mustCIDR(fmt.Sprintf("10.123.%d.1/24", n))
		via = fmt.Sprintf("10.123.%d.1", n)
	}

	hostNS := NewNamespace(name)
	m.transaction.Append(newNamespacePrimitive(hostNS))
	link := newVirtualLinkPrimitive(name, leftAddr, rightAddr, hostNS, m.hubNS)
	m.transaction.Append(link)
	m.transaction.Append(newRoutePrimitive("default", via, "main", hostNS))
	m.transaction.Append(newFilterRulePrimitive(TableFilter, ChainForward, m.hubNS,
		fmt.Sprintf("drop forwarded traffic not sourced from %s", leftAddr),
		func() []expr.Any { return buildSourceValidationDrop(link.rightIfname, leftAddr) }))

	return nil
}

func buildOIFMasquerade(oifname string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(oifname)},
		&expr.Masq{},
	}
}

func buildSrcMasquerade(srcIP string) []expr.Any {
	out := srcAddrExprs(srcIP)
	return append(out, &expr.Masq{})
}

// buildSourceValidationDrop drops forwarded traffic entering via iifname
// whose source address falls outside expectedSrc — the mock net's stand-in
// for an ISP-level anti-spoofing filter.
func buildSourceValidationDrop(iifname string, expectedSrc *net.IPNet) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifnameBytes(iifname)},
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseNetworkHeader, Offset: 12, Len: 4},
		&expr.Cmp{Op: expr.CmpOpNeq, Register: 1, Data: expectedSrc.IP.To4()},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}

func ifnameBytes(name string) []byte {
	b := make([]byte, 16)
	copy(b, name)
	return b
}

func mustCIDR(s string) *net.IPNet {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	ipnet.IP = ip
	return ipnet
}
