package mesh

import (
	"context"
	"fmt"
	"net"

	"github.com/google/nftables"

	"github.com/wgmesh/meshctl/internal/errx"
)

// addressSetPrimitive creates a named nftables set and bulk-loads the
// ranges. Sets are interval sets of IPv4 networks so destination-membership
// matching (used by FilterRule predicates built from an address-set
// bundle) works on whole CIDR ranges, not single addresses.
type addressSetPrimitive struct {
	name string
	ips  []*net.IPNet
	ns   *Namespace
}

func newAddressSetPrimitive(name string, ips []*net.IPNet, ns *Namespace) *addressSetPrimitive {
	return &addressSetPrimitive{name: name, ips: ips, ns: ns}
}

func (p *addressSetPrimitive) Apply(ctx context.Context) error {
	conn, closeConn, err := nftConnFor(p.ns)
	if err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}
	defer closeConn()

	tbl := conn.AddTable(&nftables.Table{Family: nftTableFamily, Name: sharedTable})
	set := &nftables.Set{
		Table:    tbl,
		Name:     p.name,
		KeyType:  nftables.TypeIPAddr,
		Interval: true,
	}
	if err := conn.AddSet(set, nil); err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}

	elems, err := cidrsToSetElements(p.ips)
	if err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}
	if err := conn.SetAddElements(set, elems); err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}

	if err := conn.Flush(); err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}
	return nil
}

func (p *addressSetPrimitive) Revert(ctx context.Context) error {
	conn, closeConn, err := nftConnFor(p.ns)
	if err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}
	defer closeConn()

	tbl := &nftables.Table{Family: nftTableFamily, Name: sharedTable}
	conn.DelSet(&nftables.Set{Table: tbl, Name: p.name})
	if err := conn.Flush(); err != nil {
		return errx.Wrap(ErrAddressSet, err)
	}
	return nil
}

func (p *addressSetPrimitive) String() string {
	return fmt.Sprintf("AddressSet(%s, %d ranges)", p.name, len(p.ips))
}

// cidrsToSetElements expands each CIDR into a [start, end) interval pair,
// the representation google/nftables uses for interval sets: one element at
// the network address, one flagged IntervalEnd at the first address past
// the range.
func cidrsToSetElements(cidrs []*net.IPNet) ([]nftables.SetElement, error) {
	var elems []nftables.SetElement
	for _, c := range cidrs {
		start := c.IP.Mask(c.Mask).To4()
		if start == nil {
			return nil, fmt.Errorf("address set only supports IPv4 ranges, got %s", c)
		}
		end := make(net.IP, 4)
		copy(end, start)
		broadcast := make(net.IP, 4)
		for i := range broadcast {
			broadcast[i] = start[i] | ^c.Mask[i]
		}
		incremented := incrementIP(broadcast)

		elems = append(elems,
			nftables.SetElement{Key: []byte(start)},
			nftables.SetElement{Key: []byte(incremented), IntervalEnd: true},
		)
	}
	return elems, nil
}

func incrementIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}
