package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockHarness_InitialSetupTransaction(t *testing.T) {
	m := newMockHarness()
	assert.Equal(t, 5, m.Transaction().Len())
}

func TestMockHarness_AddHost_WithWANIP_DerivesPeerFromLastOctet(t *testing.T) {
	m := newMockHarness()
	require.NoError(t, m.addHost("gw", "203.0.113.1"))

	strs := m.Transaction().Strings()
	joined := ""
	for _, s := range strs {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "203.0.113.1")
	assert.Contains(t, joined, "default via 203.0.113.2")
}

func TestMockHarness_AddHost_WithoutWANIP_AllocatesFromPool(t *testing.T) {
	m := newMockHarness()
	require.NoError(t, m.addHost("hostA", ""))
	require.NoError(t, m.addHost("hostB", ""))

	assert.Equal(t, mockAllocatorStart+2, m.allocator)
}

func TestNetwork_MockMode_GivesEveryHostItsOwnNamespace(t *testing.T) {
	n := NewNetwork(true)
	require.NoError(t, n.AddHost("a", "", testKey(t), nil))

	h, err := n.Host("a")
	require.NoError(t, err)
	assert.Equal(t, "a", h.NS.Name())
	assert.False(t, h.NS.IsGlobal())
}

func TestNetwork_NonMockMode_UsesGlobalNamespace(t *testing.T) {
	n := NewNetwork(false)
	require.NoError(t, n.AddHost("a", "1.2.3.4", testKey(t), nil))

	h, err := n.Host("a")
	require.NoError(t, err)
	assert.True(t, h.NS.IsGlobal())
}
