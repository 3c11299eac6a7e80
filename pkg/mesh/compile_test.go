package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_IsOneShot(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.Compile())
	err := n.Compile()
	assert.ErrorIs(t, err, ErrAlreadyCompiled)
}

func TestCompile_Pass1_PropagatesStaticRoutesAlongChain(t *testing.T) {
	// a - b - c, a claims a LAN range; b and c must each get a route to it.
	// Connect also queues each side's Tunnel primitive and claims each side's
	// own tunnel address, so those show up in the transactions too.
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "9.9.9.1", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "9.9.9.2", testKey(t), nil))
	require.NoError(t, n.AddHost("c", "9.9.9.3", testKey(t), nil))
	require.NoError(t, n.Connect("a", "b", "10.0.0.0/30", 51820))
	require.NoError(t, n.Connect("b", "c", "10.0.0.4/30", 51820))

	a, _ := n.Host("a")
	a.Claim("192.168.50.0/24")

	require.NoError(t, n.Compile())

	b, _ := n.Host("b")
	c, _ := n.Host("c")

	// b: Tunnel(a.b), Tunnel(b.c), then the route to a's LAN range (a's own
	// tunnel address 10.0.0.1 is skipped as a self-loop).
	bRoutes := b.Transaction().Strings()
	require.Len(t, bRoutes, 3)
	assert.Contains(t, bRoutes[2], "192.168.50.0/24")
	assert.Contains(t, bRoutes[2], "10.0.0.1") // a's address on the a-b edge

	// c: Tunnel(b.c), routes to a's claims 10.0.0.1 and 192.168.50.0/24, then
	// to b's claim 10.0.0.2.
	cRoutes := c.Transaction().Strings()
	require.Len(t, cRoutes, 4)
	assert.Contains(t, cRoutes[2], "192.168.50.0/24")
	assert.Contains(t, cRoutes[2], "10.0.0.5") // b's address on the b-c edge
}

func TestCompile_Pass2_InstallsLocalOutputTransitAndEgressNAT(t *testing.T) {
	// a - b - gw: a sends matching traffic to gw, routed through b.
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "9.9.9.1", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "9.9.9.2", testKey(t), nil))
	require.NoError(t, n.AddHost("gw", "9.9.9.3", testKey(t), nil))
	require.NoError(t, n.Connect("a", "b", "10.0.0.0/30", 51820))
	require.NoError(t, n.Connect("b", "gw", "10.0.0.4/30", 51820))

	set := AddressSet{Name: "example", Ranges: mustParseCIDRs("1.2.3.0/24")}
	require.NoError(t, n.OutputToNATGateway(AddressSetBundle{Match: []AddressSet{set}}, "a", "gw"))

	require.NoError(t, n.Compile())

	a, _ := n.Host("a")
	b, _ := n.Host("b")
	gw, _ := n.Host("gw")

	assert.NotEmpty(t, a.Transaction().Strings())
	assert.NotEmpty(t, b.Transaction().Strings())
	assert.NotEmpty(t, gw.Transaction().Strings())

	// table IDs strictly increase per Host, starting at baseRouteTableID.
	assert.Equal(t, baseRouteTableID, a.nextTableID-1)
}

func TestCompile_Pass2_RejectsUnreachableGateway(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "9.9.9.1", testKey(t), nil))
	require.NoError(t, n.AddHost("gw", "9.9.9.2", testKey(t), nil))

	require.NoError(t, n.OutputToNATGateway(AddressSetBundle{}, "a", "gw"))

	err := n.Compile()
	assert.ErrorIs(t, err, ErrNoPath)
}
