package mesh

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/wgmesh/meshctl/internal/errx"
)

// routeRulePrimitive adds a lookup rule routing packets bearing firewall
// mark mark through the named table. The design reuses the same integer
// for the firewall mark and the routing-table identifier (spec §4.3), a
// deliberate collapsing of "which policy decision" and "which table" into
// one value — documented as a known limitation if an operator's own marks
// collide with this range.
type routeRulePrimitive struct {
	mark  int
	table int
	ns    *Namespace
}

func newRouteRulePrimitive(mark, table int, ns *Namespace) *routeRulePrimitive {
	return &routeRulePrimitive{mark: mark, table: table, ns: ns}
}

func (p *routeRulePrimitive) rule() *netlink.Rule {
	r := netlink.NewRule()
	r.Mark = p.mark
	r.Table = p.table
	return r
}

func (p *routeRulePrimitive) Apply(ctx context.Context) error {
	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrRouteRule, err)
	}
	if err := handle.RuleAdd(p.rule()); err != nil {
		return errx.Wrap(ErrRouteRule, err)
	}
	return nil
}

func (p *routeRulePrimitive) Revert(ctx context.Context) error {
	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrRouteRule, err)
	}
	if err := handle.RuleDel(p.rule()); err != nil {
		return errx.Wrap(ErrRouteRule, err)
	}
	return nil
}

func (p *routeRulePrimitive) String() string {
	return fmt.Sprintf("RouteRule(mark=%d table=%d)", p.mark, p.table)
}
