package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	h, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", h)

	assert.NoError(t, Compare(h, "s3cret-pass"))
	assert.Error(t, Compare(h, "wrong"))

	// hashing is salted, two hashes of the same input differ
	h2, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
}
