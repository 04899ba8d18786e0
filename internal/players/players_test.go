package players_test

import (
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/ai/random"
	"github.com/janpfeifer/gomokuGo/internal/ai/tabular"
	"github.com/janpfeifer/gomokuGo/internal/players"
	_ "github.com/janpfeifer/gomokuGo/internal/players/default"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	env, err := rlenv.New(rlenv.GameName)
	require.NoError(t, err)
	spec := players.SpecFromEnv(env)
	assert.Equal(t, players.Spec{InfoStateSize: 675, NumActions: 225}, spec)
	assert.Equal(t, []string{"dqn", "random", "tabular"}, players.RegisteredModules())

	agent, err := players.New(1, spec, "random:seed=3")
	require.NoError(t, err)
	assert.IsType(t, &random.Agent{}, agent)
	assert.Equal(t, 1, agent.PlayerID())

	agent, err = players.New(0, spec, "tabular:epsilon=0.1,step_size=0.5,qtable="+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &tabular.Agent{}, agent)

	_, err = players.New(0, spec, "minimax")
	assert.Error(t, err)
	_, err = players.New(0, spec, "random:depth=3")
	assert.ErrorContains(t, err, "depth")
	_, err = players.New(0, spec, "tabular:epsilon=high")
	assert.Error(t, err)
}
