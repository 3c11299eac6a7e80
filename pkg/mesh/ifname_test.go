package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateIfname_ShortNamePassesThrough(t *testing.T) {
	assert.Equal(t, "a.b", truncateIfname("a.b"))
}

func TestTruncateIfname_AtLimitPassesThrough(t *testing.T) {
	name := "123456789012345" // exactly 15 chars
	assert.Equal(t, name, truncateIfname(name))
}

func TestTruncateIfname_OverLimitGetsHashSuffix(t *testing.T) {
	name := "very-long-hostname.another-very-long-hostname"
	got := truncateIfname(name)
	assert.LessOrEqual(t, len(got), ifnameLimit)
	assert.Contains(t, got, "-")
}

func TestTruncateIfname_DifferentLongNamesDontCollide(t *testing.T) {
	a := truncateIfname("very-long-hostname-one.very-long-peer-name")
	b := truncateIfname("very-long-hostname-two.very-long-peer-name")
	assert.NotEqual(t, a, b)
}
