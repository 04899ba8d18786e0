package gomlx

import (
	"fmt"
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/ai/dqn"
	"github.com/janpfeifer/gomokuGo/internal/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

const (
	testInfoStateSize = 12
	testNumActions    = 4
)

func testInfoStates() [][]float32 {
	states := make([][]float32, 3)
	for ii := range states {
		states[ii] = make([]float32, testInfoStateSize)
		states[ii][ii] = 1
		states[ii][testInfoStateSize-1-ii] = 1
	}
	return states
}

func TestQNetworkShapes(t *testing.T) {
	params := parameters.NewFromConfigString("hidden_layers=1,hidden_nodes=8")
	q, err := NewQNetwork(testInfoStateSize, testNumActions, params)
	require.NoError(t, err)
	assert.Empty(t, params, "all parameters should have been used")
	fmt.Printf("QNetwork: %s\n", q)

	qValues := q.QValues(testInfoStates())
	require.Len(t, qValues, 3)
	for _, v := range qValues {
		assert.Len(t, v, testNumActions)
	}
	single := q.QValues(testInfoStates()[:1])
	assert.InDeltaSlice(t, qValues[0], single[0], 1e-5)

	_, err = NewQNetwork(testInfoStateSize, testNumActions, parameters.NewFromConfigString("fnn_num_hidden_layers=x"))
	assert.Error(t, err)
}

func TestQNetworkLearnAndSync(t *testing.T) {
	q, err := NewQNetwork(testInfoStateSize, testNumActions,
		parameters.NewFromConfigString("learning_rate=0.05"))
	require.NoError(t, err)
	states := testInfoStates()
	actions := []int{0, 1, 2}
	targets := []float32{1, -1, 0.5}

	q.SyncTarget()
	assert.Equal(t, q.QValues(states), q.TargetQValues(states), "target equals online right after sync")

	firstLoss := q.Learn(states, actions, targets)
	var loss float32
	for range 300 {
		loss = q.Learn(states, actions, targets)
	}
	fmt.Printf("Loss: first=%g, last=%g\n", firstLoss, loss)
	assert.Less(t, loss, firstLoss)
	qValues := q.QValues(states)
	for ii, action := range actions {
		assert.InDelta(t, targets[ii], qValues[ii][action], 0.3)
	}

	// Target network only changes on sync.
	assert.NotEqual(t, q.QValues(states), q.TargetQValues(states))
	q.SyncTarget()
	assert.Equal(t, q.QValues(states), q.TargetQValues(states))
}

func TestQNetworkWithAgent(t *testing.T) {
	q, err := NewQNetwork(testInfoStateSize, testNumActions, parameters.Params{})
	require.NoError(t, err)
	config := dqn.DefaultConfig()
	config.Seed = 1
	agent, err := dqn.New(0, testNumActions, q, config)
	require.NoError(t, err)
	assert.Contains(t, agent.String(), "GoMLX")
	require.NoError(t, agent.Save(), "saving without a checkpoint is a no-op")
}

func TestQNetworkCheckpoint(t *testing.T) {
	dir := t.TempDir()
	q, err := NewQNetwork(testInfoStateSize, testNumActions, parameters.NewFromConfigString("model="+dir))
	require.NoError(t, err)
	states := testInfoStates()
	for range 10 {
		q.Learn(states, []int{0, 1, 2}, []float32{1, 1, 1})
	}
	require.NoError(t, q.Save())
	want := q.QValues(states)

	q2, err := NewQNetwork(testInfoStateSize, testNumActions, parameters.NewFromConfigString("model="+dir))
	require.NoError(t, err)
	got := q2.QValues(states)
	for ii := range want {
		assert.InDeltaSlice(t, want[ii], got[ii], 1e-5)
	}
}
