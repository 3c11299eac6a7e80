package mesh

import "github.com/wgmesh/meshctl/internal/errx"

// Compile runs both compilation passes exactly once per Network, appending
// synthesized primitives to every affected Host's Transaction. Calling it
// again returns ErrAlreadyCompiled: compilation is one-shot and idempotent,
// guarded by a flag rather than by re-deriving the same primitives twice.
func (n *Network) Compile() error {
	if n.compiled {
		return errx.With(ErrAlreadyCompiled, ": %s", "network")
	}
	n.compiled = true

	n.pass1StaticRoutes()
	return n.pass2PolicyRoutes()
}

// pass1StaticRoutes gives every Host a route to every other Host's claimed
// ranges, over the shortest path in hop count. BFS starts at each Host in
// turn (outer loop in declaration order) and, the first time the
// traversal reaches V through incoming edge U->V with next-hop address
// next_hop_on_V, installs Route(range, next_hop_on_V, "main") on V for each
// of the origin Host's claimed ranges — skipping a range that equals the
// next hop itself, which would be a self-loop.
func (n *Network) pass1StaticRoutes() {
	for _, origin := range n.order {
		ranges := n.hosts[origin].ClaimedRanges()
		if len(ranges) == 0 {
			continue
		}

		visited := map[string]bool{origin: true}
		queue := []string{origin}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, e := range n.edges[u] {
				if visited[e.peer] {
					continue
				}
				visited[e.peer] = true
				queue = append(queue, e.peer)

				target := n.hosts[e.peer]
				for _, rng := range ranges {
					if rng == e.selfIP {
						continue
					}
					target.Transaction().Append(newRoutePrimitive(rng, e.selfIP, "main", target.NS))
				}
			}
		}
	}
}

// pass2PolicyRoutes resolves every queued output_to_nat_gateway request: it
// finds the shortest path from src to gateway, propagates the bundle's
// address sets to every host on that path, then installs a policy route on
// the source (LocalOutput), every intermediate host (Transit), and the
// gateway (EgressNAT).
func (n *Network) pass2PolicyRoutes() error {
	for _, req := range n.natReqs {
		path, err := n.shortestPath(req.src, req.gateway)
		if err != nil {
			return err
		}

		nodes := []string{req.src}
		for _, hop := range path {
			nodes = append(nodes, hop.to)
		}
		for _, node := range nodes {
			h := n.hosts[node]
			for _, set := range req.bundle.allSets() {
				h.AddAddressSet(set)
			}
		}

		first := path[0]
		src := n.hosts[req.src]
		if err := src.InstallPolicyRoute(LocalOutput, first.tunnelIP, req.bundle, first.nextHop); err != nil {
			return err
		}

		for _, hop := range path[1:] {
			h := n.hosts[hop.from]
			if err := h.InstallPolicyRoute(Transit, first.tunnelIP, req.bundle, hop.nextHop); err != nil {
				return err
			}
		}

		gateway := n.hosts[req.gateway]
		if err := gateway.InstallPolicyRoute(EgressNAT, first.tunnelIP, req.bundle, ""); err != nil {
			return err
		}
	}
	return nil
}
