package mesh

import (
	"fmt"

	"github.com/google/nftables"
	"github.com/vishvananda/netns"

	"github.com/wgmesh/meshctl/internal/errx"
)

// Packet-filter table/chain names, matching the conventional iptables
// vocabulary this module's declaration API and external-interface contract
// both name: mangle/nat/filter tables, PREROUTING/OUTPUT/POSTROUTING/FORWARD
// chains.
const (
	TableMangle = "mangle"
	TableNAT    = "nat"
	TableFilter = "filter"

	ChainPrerouting  = "PREROUTING"
	ChainOutput      = "OUTPUT"
	ChainPostrouting = "POSTROUTING"
	ChainForward     = "FORWARD"
)

// nftConnFor opens an nftables connection scoped to ns. The ambient
// namespace uses the default connection; any other namespace is entered by
// file descriptor, mirroring Namespace.Handle's netlink.NewHandleAt pattern.
func nftConnFor(ns *Namespace) (*nftables.Conn, func(), error) {
	if ns.IsGlobal() {
		conn, err := nftables.New()
		if err != nil {
			return nil, nil, err
		}
		return conn, func() {}, nil
	}

	nsHandle, err := netns.GetFromName(ns.Name())
	if err != nil {
		return nil, nil, err
	}
	conn, err := nftables.New(nftables.WithNetNSFd(int(nsHandle)))
	if err != nil {
		nsHandle.Close()
		return nil, nil, err
	}
	return conn, func() { nsHandle.Close() }, nil
}

// chainSpec resolves the conventional (type, hook, priority) triple for a
// (table, chain) pair, matching standard iptables hook semantics.
func chainSpec(table, chain string) (nftables.ChainType, *nftables.ChainHook, *nftables.ChainPriority, error) {
	switch {
	case table == TableMangle && chain == ChainPrerouting:
		return nftables.ChainTypeFilter, nftables.ChainHookPrerouting, nftables.ChainPriorityMangle, nil
	case table == TableMangle && chain == ChainOutput:
		return nftables.ChainTypeFilter, nftables.ChainHookOutput, nftables.ChainPriorityMangle, nil
	case table == TableNAT && chain == ChainPrerouting:
		return nftables.ChainTypeNAT, nftables.ChainHookPrerouting, nftables.ChainPriorityNATDest, nil
	case table == TableNAT && chain == ChainPostrouting:
		return nftables.ChainTypeNAT, nftables.ChainHookPostrouting, nftables.ChainPriorityNATSource, nil
	case table == TableFilter && chain == ChainForward:
		return nftables.ChainTypeFilter, nftables.ChainHookForward, nftables.ChainPriorityFilter, nil
	default:
		return "", nil, nil, fmt.Errorf("unsupported table/chain combination: %s/%s", table, chain)
	}
}

// nftTableFamily is always IPv4: IPv6 is an explicit Non-goal.
const nftTableFamily = nftables.TableFamilyIPv4

// sharedTable is the one nftables table this module uses per namespace.
// Namespaces already give every host its own kernel nftables instance, so
// rules and address sets for one host all live in one table, named
// identically everywhere, with chains distinguished by a
// "<logicalTable>_<chain>" name. This lets FilterRule predicates built
// from an address-set bundle reference sets by name: nftables set lookups
// must resolve within the same table as the referencing rule.
const sharedTable = "meshctl"

// ensureTableAndChain declares (idempotently — nftables "add" semantics,
// not "create") the shared table and the logical table/chain's backing
// nftables chain, returning both for rule/set construction.
func ensureTableAndChain(conn *nftables.Conn, table, chain string) (*nftables.Table, *nftables.Chain, error) {
	chainType, hook, priority, err := chainSpec(table, chain)
	if err != nil {
		return nil, nil, err
	}
	tbl := conn.AddTable(&nftables.Table{Family: nftTableFamily, Name: sharedTable})
	ch := conn.AddChain(&nftables.Chain{
		Name:     table + "_" + chain,
		Table:    tbl,
		Type:     chainType,
		Hooknum:  hook,
		Priority: priority,
	})
	return tbl, ch, nil
}

func wrapNFT(sentinel error, err error) error {
	return errx.Wrap(sentinel, err)
}
