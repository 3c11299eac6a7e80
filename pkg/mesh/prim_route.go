package mesh

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/wgmesh/meshctl/internal/errx"
)

// mainRouteTable is Linux's conventional main routing table ID (rt_tables).
const mainRouteTable = 254

// routeTable resolves a route-table identifier, accepting "main" as an
// alias for Linux's well-known main table.
func routeTable(table string) (int, error) {
	if table == "main" {
		return mainRouteTable, nil
	}
	var id int
	if _, err := fmt.Sscanf(table, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid route table %q: %w", table, err)
	}
	return id, nil
}

// parseDest parses a route destination, accepting "default" as an alias
// for 0.0.0.0/0.
func parseDest(dest string) (*net.IPNet, error) {
	if dest == "default" {
		return &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}, nil
	}
	if _, ipnet, err := net.ParseCIDR(dest); err == nil {
		return ipnet, nil
	}
	ip := net.ParseIP(dest)
	if ip == nil {
		return nil, fmt.Errorf("invalid route destination %q", dest)
	}
	return &net.IPNet{IP: ip.To4(), Mask: net.CIDRMask(32, 32)}, nil
}

// routePrimitive adds a route in the named routing table.
type routePrimitive struct {
	dest  string
	via   string
	table string
	ns    *Namespace
}

func newRoutePrimitive(dest, via, table string, ns *Namespace) *routePrimitive {
	return &routePrimitive{dest: dest, via: via, table: table, ns: ns}
}

func (p *routePrimitive) route() (*netlink.Route, error) {
	dst, err := parseDest(p.dest)
	if err != nil {
		return nil, err
	}
	tableID, err := routeTable(p.table)
	if err != nil {
		return nil, err
	}
	gw := net.ParseIP(p.via)
	if gw == nil {
		return nil, fmt.Errorf("invalid gateway %q", p.via)
	}
	return &netlink.Route{Dst: dst, Gw: gw, Table: tableID}, nil
}

func (p *routePrimitive) Apply(ctx context.Context) error {
	r, err := p.route()
	if err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	if err := handle.RouteAdd(r); err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	return nil
}

func (p *routePrimitive) Revert(ctx context.Context) error {
	r, err := p.route()
	if err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	handle, err := p.ns.Handle()
	if err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	if err := handle.RouteDel(r); err != nil {
		return errx.Wrap(ErrRoute, err)
	}
	return nil
}

func (p *routePrimitive) String() string {
	return fmt.Sprintf("Route(%s via %s table %s)", p.dest, p.via, p.table)
}
