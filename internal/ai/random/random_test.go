package random

import (
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomAgent(t *testing.T) {
	env, err := rlenv.New(rlenv.GameName)
	require.NoError(t, err)
	agents := []*Agent{New(0, 225, 1), New(1, 225, 2)}

	ts := env.Reset()
	out := agents[1].Step(ts, false)
	assert.Equal(t, ai.NoAction, out.Action, "not its turn")
	assert.Nil(t, out.Probs)

	counts := make(map[int]int)
	for !ts.Last() {
		player := ts.CurrentPlayer()
		out = agents[player].Step(ts, false)
		require.Contains(t, ts.Observations.LegalActions[player], out.Action)
		assert.InDelta(t, 1.0/float32(len(ts.Observations.LegalActions[player])), out.Probs[out.Action], 1e-6)
		counts[out.Action]++
		ts, err = env.Step([]int{out.Action})
		require.NoError(t, err)
	}
	for action, count := range counts {
		assert.Equal(t, 1, count, "action %d played more than once", action)
	}
	for _, agent := range agents {
		assert.Equal(t, ai.NoAction, agent.Step(ts, false).Action, "no action on the last step")
	}
}
