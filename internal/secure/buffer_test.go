package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	buf := NewBufferFromString("s3cr3t-admin-password")

	got, err := buf.String()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-admin-password", got)

	// A second read must still work; Open does not consume the enclave.
	again, err := buf.String()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-admin-password", again)
}

func TestBufferDestroyIsIdempotent(t *testing.T) {
	buf := NewBufferFromString("short-lived")
	buf.Destroy()
	buf.Destroy()

	got, err := buf.String()
	require.NoError(t, err)
	assert.Empty(t, got, "destroyed buffer must not return the secret")
}
