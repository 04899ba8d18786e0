package rlenv

import (
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecs(t *testing.T) {
	_, err := New("tic_tac_toe")
	require.Error(t, err)

	env, err := New(GameName)
	require.NoError(t, err)
	assert.Equal(t, 2, env.NumPlayers())
	assert.Equal(t, ObservationSpec{InfoStateSize: 675, LegalActionsSize: 225}, env.ObservationSpec())
	assert.Equal(t, ActionSpec{NumActions: 225, Min: 0, Max: 224}, env.ActionSpec())
}

func TestEpisode(t *testing.T) {
	env, err := New(GameName, WithDiscount(0.9))
	require.NoError(t, err)

	_, err = env.Step([]int{0})
	require.Error(t, err, "Step before Reset")

	ts := env.Reset()
	assert.True(t, ts.First())
	assert.Nil(t, ts.Rewards)
	assert.Nil(t, ts.Discounts)
	assert.Equal(t, 0, ts.CurrentPlayer())
	assert.Len(t, ts.Observations.LegalActions[0], 225)
	assert.Empty(t, ts.Observations.LegalActions[1])
	require.Len(t, ts.Observations.InfoState[0], 675)

	_, err = env.Step([]int{0, 1})
	require.Error(t, err)
	_, err = env.Step([]int{225})
	require.Error(t, err)

	// Black plays row 0, white row 1: black completes five first.
	moves := []int{0, 15, 1, 16, 2, 17, 3, 18}
	for ii, move := range moves {
		ts, err = env.Step([]int{move})
		require.NoError(t, err)
		assert.True(t, ts.Mid())
		assert.Equal(t, (ii+1)%2, ts.CurrentPlayer())
		assert.Equal(t, []float32{0, 0}, ts.Rewards)
		assert.Equal(t, []float32{0.9, 0.9}, ts.Discounts)
		assert.Empty(t, ts.Observations.LegalActions[1-ts.CurrentPlayer()])
		assert.NotContains(t, ts.Observations.LegalActions[ts.CurrentPlayer()], move)
	}
	_, err = env.Step([]int{0})
	require.Error(t, err, "occupied point")

	ts, err = env.Step([]int{4})
	require.NoError(t, err)
	assert.True(t, ts.Last())
	assert.Equal(t, TerminalPlayerID, ts.CurrentPlayer())
	assert.Equal(t, []float32{1, -1}, ts.Rewards)
	assert.Equal(t, []float32{0, 0}, ts.Discounts)
	assert.Equal(t, float32(-1), ts.Reward(1))
	assert.Empty(t, ts.Observations.LegalActions[0])
	assert.Empty(t, ts.Observations.LegalActions[1])
	assert.Equal(t, float32(1), ts.Observations.InfoState[1][state.NumPoints*int(state.Black)+4])

	_, err = env.Step([]int{5})
	require.Error(t, err, "Step after the episode is over")

	ts = env.Reset()
	assert.True(t, ts.First())
	assert.Equal(t, 0, env.State().MoveNumber())
}

func TestCloneTimeStep(t *testing.T) {
	env, err := New(GameName)
	require.NoError(t, err)
	ts := env.Reset()
	c := CloneTimeStep(ts)
	c.Observations.InfoState[0][0] = 42
	c.Observations.LegalActions[0][0] = 42
	assert.Equal(t, float32(1), ts.Observations.InfoState[0][0])
	assert.Equal(t, 0, ts.Observations.LegalActions[0][0])

	mask := LegalActionsMask([]int{1, 3}, 5)
	assert.Equal(t, []float32{0, 1, 0, 1, 0}, mask)
}
