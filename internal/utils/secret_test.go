package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckSecret(hash, "s3cret"))
	assert.False(t, CheckSecret(hash, "wrong"))
	assert.False(t, CheckSecret("not-a-hash", "s3cret"))
}
