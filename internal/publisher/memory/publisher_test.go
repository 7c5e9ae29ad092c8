package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresPayloads(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), map[string]string{"zip": "62701"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	payloads := pub.Payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, "payload", payloads[1])

	payloads[1] = "modified"
	assert.Equal(t, "payload", pub.Payloads()[1])
}
