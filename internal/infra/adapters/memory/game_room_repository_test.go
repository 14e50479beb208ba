package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/domain/backgammon"
)

func TestGameRoomRepository(t *testing.T) {
	rolls := []int{3, 1}
	roller := func() int {
		v := rolls[0]
		rolls = rolls[1:]
		return v
	}

	repo := NewGameRoomRepository(roller)

	room := repo.GetOrCreate("r1")
	assert.Same(t, room, repo.GetOrCreate("r1"))

	got, ok := repo.Get("r1")
	require.True(t, ok)
	assert.Same(t, room, got)

	room.Do(func(g *backgammon.Game) {
		_, err := g.Join("alice")
		require.NoError(t, err)
		_, err = g.Join("bob")
		require.NoError(t, err)
		require.NoError(t, g.Start("alice"))

		dice, _, err := g.Roll("alice")
		require.NoError(t, err)
		assert.Equal(t, []int{3, 1}, dice)
	})

	repo.GetOrCreate("r2")
	assert.Len(t, repo.List(), 2)

	repo.Delete("r1")
	_, ok = repo.Get("r1")
	assert.False(t, ok)
	assert.Len(t, repo.List(), 1)
}
