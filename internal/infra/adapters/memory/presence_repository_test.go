package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceRepository(t *testing.T) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	p := NewPresenceRepository()

	require.NoError(t, p.Add(ctx, alice))
	require.NoError(t, p.Add(ctx, bob))
	require.NoError(t, p.Add(ctx, alice))

	ids, err := p.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, ids)

	require.NoError(t, p.Remove(ctx, alice))

	ids, err = p.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob}, ids)
}
