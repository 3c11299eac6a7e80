package errx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel failed")

func TestWrapPreservesIs(t *testing.T) {
	cause := errors.New("syscall boom")
	err := Wrap(errSentinel, cause)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "sentinel failed")
	assert.Contains(t, err.Error(), "syscall boom")
}

func TestWithAppendsDetail(t *testing.T) {
	err := With(errSentinel, ": table %s chain %s", "nat", "PREROUTING")

	require.Error(t, err)
	assert.True(t, errors.Is(err, errSentinel))
	assert.Equal(t, "sentinel failed: table nat chain PREROUTING", err.Error())
}

func TestWithWrapsNestedErr(t *testing.T) {
	cause := errors.New("nft flush failed")
	err := With(errSentinel, ": %w", cause)

	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, errors.Is(err, cause))
}
