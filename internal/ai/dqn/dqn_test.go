package dqn

import (
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// fakeNetwork returns fixed Q-values and records the calls.
type fakeNetwork struct {
	numActions    int
	qValues       []float32
	targetQValues []float32
	numLearn      int
	numSync       int
	lastTargets   []float32
	lastActions   []int
	lastBatchSize int
}

func (n *fakeNetwork) String() string { return "fake" }

func (n *fakeNetwork) QValues(infoStates [][]float32) [][]float32 {
	out := make([][]float32, len(infoStates))
	for ii := range out {
		out[ii] = n.qValues
	}
	return out
}

func (n *fakeNetwork) TargetQValues(infoStates [][]float32) [][]float32 {
	out := make([][]float32, len(infoStates))
	for ii := range out {
		out[ii] = n.targetQValues
	}
	return out
}

func (n *fakeNetwork) Learn(infoStates [][]float32, actions []int, targets []float32) float32 {
	n.numLearn++
	n.lastBatchSize = len(infoStates)
	n.lastActions = actions
	n.lastTargets = targets
	return 0.5
}

func (n *fakeNetwork) SyncTarget() { n.numSync++ }

func newFake(numActions int) *fakeNetwork {
	return &fakeNetwork{
		numActions:    numActions,
		qValues:       make([]float32, numActions),
		targetQValues: make([]float32, numActions),
	}
}

func TestReplayBuffer(t *testing.T) {
	b := NewReplayBuffer[int](3)
	for ii := range 5 {
		b.Add(ii)
	}
	assert.Equal(t, 3, b.Len())
	src := rand.NewSource(1)
	samples, err := b.Sample(3, src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3, 4}, samples)
	_, err = b.Sample(4, src)
	assert.Error(t, err)
	samples, err = b.Sample(2, src)
	require.NoError(t, err)
	assert.NotEqual(t, samples[0], samples[1], "sampled without replacement")
}

func TestEpsilon(t *testing.T) {
	config := DefaultConfig()
	config.EpsilonDecayDuration = 100
	agent, err := New(0, 4, newFake(4), config)
	require.NoError(t, err)
	assert.Equal(t, float32(1), agent.Epsilon(false))
	assert.Equal(t, float32(0), agent.Epsilon(true))
	agent.stepCounter = 50
	assert.InDelta(t, 0.55, agent.Epsilon(false), 1e-6)
	agent.stepCounter = 1000
	assert.InDelta(t, 0.1, agent.Epsilon(false), 1e-6)

	config.BatchSize = 0
	_, err = New(0, 4, newFake(4), config)
	assert.Error(t, err)
}

func TestTargets(t *testing.T) {
	transitions := []ai.Transition{
		{Reward: 1, IsFinal: true, LegalActionsMask: []float32{0, 0, 0}},
		{Reward: 0.5, IsFinal: false, LegalActionsMask: []float32{1, 0, 1}},
	}
	nextQ := [][]float32{{10, 10, 10}, {2, 100, 3}}
	targets := Targets(transitions, nextQ, 0.5)
	assert.Equal(t, float32(1), targets[0], "final transitions don't bootstrap")
	assert.Equal(t, float32(0.5+0.5*3), targets[1], "illegal action 1 is ignored")
}

func makeStep(player int, legal []int, stepType rlenv.StepType, rewards []float32) *rlenv.TimeStep {
	legalActions := [][]int{{}, {}}
	if player >= 0 {
		legalActions[player] = legal
	}
	infoState := []float32{float32(len(legal)), 0}
	return &rlenv.TimeStep{
		Observations: rlenv.Observations{
			InfoState:     [][]float32{infoState, infoState},
			LegalActions:  legalActions,
			CurrentPlayer: player,
		},
		Rewards:  rewards,
		StepType: stepType,
	}
}

func TestGreedyAction(t *testing.T) {
	network := newFake(4)
	network.qValues = []float32{0, 5, 9, 1}
	config := DefaultConfig()
	agent, err := New(1, 4, network, config)
	require.NoError(t, err)
	assert.Equal(t, 1, network.numSync, "target synced at creation")

	// Evaluation is fully greedy among legal actions: action 2 is illegal.
	out := agent.Step(makeStep(1, []int{0, 1, 3}, rlenv.StepMid, []float32{0, 0}), true)
	assert.Equal(t, 1, out.Action)
	assert.Equal(t, []float32{0, 1, 0, 0}, out.Probs)
	assert.Equal(t, 0, agent.StepCounter(), "evaluation steps are not counted")

	// Not its turn.
	out = agent.Step(makeStep(0, []int{0, 1}, rlenv.StepMid, []float32{0, 0}), true)
	assert.Equal(t, ai.NoAction, out.Action)

	// Training with epsilon=1 at the start: uniform probabilities.
	out = agent.Step(makeStep(1, []int{0, 3}, rlenv.StepMid, []float32{0, 0}), false)
	assert.Contains(t, []int{0, 3}, out.Action)
	assert.Equal(t, []float32{0.5, 0, 0, 0.5}, out.Probs)
}

func TestTrainingBookkeeping(t *testing.T) {
	network := newFake(3)
	config := DefaultConfig()
	config.BatchSize = 4
	config.MinBufferSizeToLearn = 6
	config.LearnEvery = 2
	config.UpdateTargetNetworkEvery = 5
	config.ReplayBufferCapacity = 100
	config.Seed = 3
	agent, err := New(0, 3, network, config)
	require.NoError(t, err)

	// Each episode: the agent acts twice, and then sees the final step, adding 2 transitions.
	for episode := range 4 {
		out := agent.Step(makeStep(0, []int{0, 1, 2}, rlenv.StepFirst, nil), false)
		require.NotEqual(t, ai.NoAction, out.Action)
		out = agent.Step(makeStep(0, []int{1, 2}, rlenv.StepMid, []float32{0, 0}), false)
		require.NotEqual(t, ai.NoAction, out.Action)
		out = agent.Step(makeStep(rlenv.TerminalPlayerID, nil, rlenv.StepLast, []float32{1, -1}), false)
		require.Equal(t, ai.NoAction, out.Action)
		assert.Equal(t, 2*(episode+1), agent.ReplayBufferLen())
	}
	assert.Equal(t, 12, agent.StepCounter())
	// Learning is tried at even steps, but only happens once the buffer has >= 6 transitions: steps 10 and 12.
	assert.Equal(t, 2, network.numLearn)
	assert.Equal(t, 4, network.lastBatchSize)
	loss, ok := agent.LastLoss()
	assert.True(t, ok)
	assert.Equal(t, float32(0.5), loss)
	// Target synced at creation, and at steps 5 and 10.
	assert.Equal(t, 3, network.numSync)
	for ii, target := range network.lastTargets {
		// Mid transitions bootstrap from target Q-values (all 0): target 0. Final ones: reward 1.
		assert.Contains(t, []float32{0, 1}, target, "target #%d", ii)
	}
}

func TestLastLossResetWhenNotLearning(t *testing.T) {
	network := newFake(2)
	config := DefaultConfig()
	config.LearnEvery = 1
	agent, err := New(0, 2, network, config)
	require.NoError(t, err)
	agent.lastLoss, agent.hasLoss = 1, true
	agent.Step(makeStep(0, []int{0, 1}, rlenv.StepFirst, nil), false)
	_, ok := agent.LastLoss()
	assert.False(t, ok)
	assert.Equal(t, "n/a", ai.FormatLoss(agent))
}
