package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) Key {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

func TestNetwork_AddHost_DuplicateRejected(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	err := n.AddHost("a", "1.2.3.5", testKey(t), nil)
	assert.ErrorIs(t, err, ErrDuplicateHost)
}

func TestNetwork_Host_UnknownRejected(t *testing.T) {
	n := NewNetwork(false)
	_, err := n.Host("ghost")
	assert.ErrorIs(t, err, ErrUnknownHost)
}

func TestNetwork_Connect_RequiresRightWANAddress(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "", testKey(t), nil))

	err := n.Connect("a", "b", "10.0.0.0/30", 51820)
	assert.ErrorIs(t, err, ErrNoWANAddress)
}

func TestNetwork_Connect_RejectsNonSlash30(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "5.6.7.8", testKey(t), nil))

	err := n.Connect("a", "b", "10.0.0.0/29", 51820)
	assert.ErrorIs(t, err, ErrBadCIDR)
}

func TestNetwork_Connect_RejectsLowOctetNotMultipleOfFour(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "5.6.7.8", testKey(t), nil))

	err := n.Connect("a", "b", "10.0.0.1/30", 51820)
	assert.ErrorIs(t, err, ErrBadCIDR)
}

func TestNetwork_Connect_AssignsLeftAndRightAddresses(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "5.6.7.8", testKey(t), nil))

	require.NoError(t, n.Connect("a", "b", "10.0.0.0/30", 51820))

	a, _ := n.Host("a")
	b, _ := n.Host("b")
	assert.Contains(t, a.ClaimedRanges(), "10.0.0.1")
	assert.Contains(t, b.ClaimedRanges(), "10.0.0.2")
}

func TestNetwork_OutputToNATGateway_RejectsSelfGateway(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))

	err := n.OutputToNATGateway(AddressSetBundle{}, "a", "a")
	assert.ErrorIs(t, err, ErrSelfGateway)
}

func TestNetwork_OutputToNATGateway_RejectsUnknownHosts(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))

	err := n.OutputToNATGateway(AddressSetBundle{}, "a", "ghost")
	assert.ErrorIs(t, err, ErrUnknownHost)
}

func TestNetwork_ShortestPath_DirectEdge(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "5.6.7.8", testKey(t), nil))
	require.NoError(t, n.Connect("a", "b", "10.0.0.0/30", 51820))

	path, err := n.shortestPath("a", "b")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "a", path[0].from)
	assert.Equal(t, "b", path[0].to)
	assert.Equal(t, "10.0.0.1", path[0].tunnelIP)
	assert.Equal(t, "10.0.0.2", path[0].nextHop)
}

func TestNetwork_ShortestPath_Unreachable(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "5.6.7.8", testKey(t), nil))

	_, err := n.shortestPath("a", "b")
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestNetwork_ShortestPath_PrefersFewerHops(t *testing.T) {
	// a - b - c, and a - c directly: direct edge must win over the 2-hop path.
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "9.9.9.1", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "9.9.9.2", testKey(t), nil))
	require.NoError(t, n.AddHost("c", "9.9.9.3", testKey(t), nil))
	require.NoError(t, n.Connect("a", "b", "10.0.0.0/30", 51820))
	require.NoError(t, n.Connect("b", "c", "10.0.0.4/30", 51820))
	require.NoError(t, n.Connect("a", "c", "10.0.0.8/30", 51820))

	path, err := n.shortestPath("a", "c")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "a", path[0].from)
	assert.Equal(t, "c", path[0].to)
}

func TestNetwork_HostNames_PreservesDeclarationOrder(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("c", "1.1.1.1", testKey(t), nil))
	require.NoError(t, n.AddHost("a", "2.2.2.2", testKey(t), nil))
	require.NoError(t, n.AddHost("b", "3.3.3.3", testKey(t), nil))

	assert.Equal(t, []string{"c", "a", "b"}, n.HostNames())
}
