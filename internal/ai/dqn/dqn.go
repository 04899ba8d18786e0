// Package dqn implements a Deep Q-Network (DQN) learning agent: an epsilon-greedy policy over the
// Q-values of a neural network, trained from a replay buffer of transitions against a periodically
// synchronized target network.
//
// The network itself is abstracted by QNetwork, see package gomlx for the implementation.
package dqn

import (
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"k8s.io/klog/v2"
)

// QNetwork estimates the action values of a batch of info states.
//
// Errors in the underlying numeric backend are reported as panics, as it is usual with GoMLX.
type QNetwork interface {
	// QValues returns the online network Q-values for each info state: shape [batch][numActions].
	QValues(infoStates [][]float32) [][]float32

	// TargetQValues is like QValues, but using the target network.
	TargetQValues(infoStates [][]float32) [][]float32

	// Learn takes one optimizer step minimizing the mean squared error between Q(infoStates, actions)
	// and targets, and returns the loss.
	Learn(infoStates [][]float32, actions []int, targets []float32) (loss float32)

	// SyncTarget copies the online network weights to the target network.
	SyncTarget()

	String() string
}

// Config holds the DQN hyperparameters that are not part of the network.
type Config struct {
	ReplayBufferCapacity     int
	BatchSize                int
	UpdateTargetNetworkEvery int
	LearnEvery               int
	Discount                 float32
	MinBufferSizeToLearn     int

	// Epsilon schedule: decays from EpsilonStart to EpsilonEnd over EpsilonDecayDuration steps.
	EpsilonStart, EpsilonEnd float32
	EpsilonDecayDuration     int
	EpsilonPower             float32

	// Seed for exploration and replay sampling. If 0 a time based seed is used.
	Seed uint64
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		ReplayBufferCapacity:     10_000,
		BatchSize:                128,
		UpdateTargetNetworkEvery: 1000,
		LearnEvery:               10,
		Discount:                 1.0,
		MinBufferSizeToLearn:     1000,
		EpsilonStart:             1.0,
		EpsilonEnd:               0.1,
		EpsilonDecayDuration:     1_000_000,
		EpsilonPower:             1.0,
	}
}

// Validate checks the configuration values are usable.
func (c Config) Validate() error {
	if c.ReplayBufferCapacity <= 0 || c.BatchSize <= 0 || c.LearnEvery <= 0 ||
		c.UpdateTargetNetworkEvery <= 0 || c.EpsilonDecayDuration <= 0 {
		return errors.Errorf("dqn: replay_capacity, batch_size, learn_every, update_target_every and "+
			"epsilon_decay_duration must be > 0, got %+v", c)
	}
	return nil
}

// Agent is a DQN learning agent.
type Agent struct {
	playerID, numActions int
	config               Config
	network              QNetwork
	replay               *ReplayBuffer[ai.Transition]

	muRng sync.Mutex
	src   rand.Source
	rng   *rand.Rand

	stepCounter int
	prevStep    *rlenv.TimeStep
	prevAction  int

	lastLoss float32
	hasLoss  bool
}

var (
	_ ai.Learner = (*Agent)(nil)
	_ ai.Saver   = (*Agent)(nil)
)

// New creates a DQN agent using the given network.
func New(playerID, numActions int, network QNetwork, config Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) + uint64(playerID)
	}
	src := rand.NewSource(seed)
	agent := &Agent{
		playerID:   playerID,
		numActions: numActions,
		config:     config,
		network:    network,
		replay:     NewReplayBuffer[ai.Transition](config.ReplayBufferCapacity),
		src:        src,
		rng:        rand.New(src),
	}
	network.SyncTarget()
	return agent, nil
}

// PlayerID implements ai.Agent.
func (a *Agent) PlayerID() int { return a.playerID }

// String implements ai.Agent.
func (a *Agent) String() string {
	return fmt.Sprintf("dqn[player %d, %s]", a.playerID, a.network)
}

// LastLoss implements ai.Learner. It is reset whenever a learning step is skipped because the
// replay buffer is still too small.
func (a *Agent) LastLoss() (float32, bool) { return a.lastLoss, a.hasLoss }

// StepCounter returns the number of training steps taken.
func (a *Agent) StepCounter() int { return a.stepCounter }

// ReplayBufferLen returns the number of transitions stored.
func (a *Agent) ReplayBufferLen() int { return a.replay.Len() }

// Save implements ai.Saver, if the network supports it.
func (a *Agent) Save() error {
	saver, ok := a.network.(ai.Saver)
	if !ok {
		klog.Warningf("%s: network doesn't support saving", a)
		return nil
	}
	return saver.Save()
}

// Epsilon returns the exploration rate: 0 in evaluation, otherwise decayed with the number of steps.
func (a *Agent) Epsilon(isEvaluation bool) float32 {
	if isEvaluation {
		return 0
	}
	duration := float32(a.config.EpsilonDecayDuration)
	decaySteps := min(float32(a.stepCounter), duration)
	return a.config.EpsilonEnd + (a.config.EpsilonStart-a.config.EpsilonEnd)*
		math32.Pow(1-decaySteps/duration, a.config.EpsilonPower)
}

// Step implements ai.Agent.
func (a *Agent) Step(ts *rlenv.TimeStep, isEvaluation bool) ai.StepOutput {
	output := ai.StepOutput{Action: ai.NoAction}
	if ai.IsMyTurn(ts, a.playerID) {
		output = a.epsilonGreedy(ts.Observations.InfoState[a.playerID],
			ts.Observations.LegalActions[a.playerID], a.Epsilon(isEvaluation))
	}
	if isEvaluation {
		return output
	}

	a.stepCounter++
	if a.stepCounter%a.config.LearnEvery == 0 {
		a.lastLoss, a.hasLoss = a.learn()
	}
	if a.stepCounter%a.config.UpdateTargetNetworkEvery == 0 {
		a.network.SyncTarget()
		klog.V(2).Infof("%s: target network synchronized at step %d", a, a.stepCounter)
	}
	if a.prevStep != nil {
		a.addTransition(a.prevStep, a.prevAction, ts)
	}
	if ts.Last() {
		a.prevStep = nil
		a.prevAction = ai.NoAction
		return output
	}
	if output.Action != ai.NoAction {
		a.prevStep = rlenv.CloneTimeStep(ts)
		a.prevAction = output.Action
	}
	return output
}

// addTransition from the previous step (where the agent acted) to the current one.
func (a *Agent) addTransition(prev *rlenv.TimeStep, action int, ts *rlenv.TimeStep) {
	a.replay.Add(ai.Transition{
		InfoState:        prev.Observations.InfoState[a.playerID],
		Action:           action,
		Reward:           ts.Reward(a.playerID),
		NextInfoState:    ts.Observations.InfoState[a.playerID],
		IsFinal:          ts.Last(),
		LegalActionsMask: rlenv.LegalActionsMask(ts.Observations.LegalActions[a.playerID], a.numActions),
	})
}

// epsilonGreedy picks a uniformly random legal action with probability epsilon, and otherwise the
// legal action with the highest Q-value.
func (a *Agent) epsilonGreedy(infoState []float32, legal []int, epsilon float32) ai.StepOutput {
	if len(legal) == 0 {
		return ai.StepOutput{Action: ai.NoAction}
	}
	a.muRng.Lock()
	explore := a.rng.Float32() < epsilon
	var idx int
	if explore {
		idx = a.rng.Intn(len(legal))
	}
	a.muRng.Unlock()
	if explore {
		return ai.StepOutput{Action: legal[idx], Probs: ai.UniformProbs(legal, a.numActions)}
	}
	qValues := a.network.QValues([][]float32{infoState})[0]
	action := ai.ArgmaxLegal(qValues, legal)
	return ai.StepOutput{Action: action, Probs: ai.OneHotEncoding(a.numActions, action)}
}

// learn samples a batch from the replay buffer and takes one training step.
// It returns false if there are not enough transitions yet.
func (a *Agent) learn() (loss float32, ok bool) {
	if a.replay.Len() < a.config.BatchSize || a.replay.Len() < a.config.MinBufferSizeToLearn {
		return 0, false
	}
	a.muRng.Lock()
	transitions, err := a.replay.Sample(a.config.BatchSize, a.src)
	a.muRng.Unlock()
	if err != nil {
		exceptions.Panicf("%s: %+v", a, err)
	}

	infoStates := make([][]float32, len(transitions))
	nextInfoStates := make([][]float32, len(transitions))
	actions := make([]int, len(transitions))
	for ii, t := range transitions {
		infoStates[ii] = t.InfoState
		nextInfoStates[ii] = t.NextInfoState
		actions[ii] = t.Action
	}
	targets := Targets(transitions, a.network.TargetQValues(nextInfoStates), a.config.Discount)
	loss = a.network.Learn(infoStates, actions, targets)
	return loss, true
}

// Targets computes the one-step Q-learning targets for the transitions:
//
//	target = reward + (1 - isFinal) * discount * max_a' (nextQ[a'] + (1 - legalMask[a']) * IllegalActionLogitsPenalty)
func Targets(transitions []ai.Transition, nextQValues [][]float32, discount float32) []float32 {
	targets := make([]float32, len(transitions))
	for ii, t := range transitions {
		targets[ii] = t.Reward
		if t.IsFinal {
			continue
		}
		maxNext := math32.Inf(-1)
		for action, q := range nextQValues[ii] {
			q += (1 - t.LegalActionsMask[action]) * ai.IllegalActionLogitsPenalty
			maxNext = max(maxNext, q)
		}
		targets[ii] += discount * maxNext
	}
	return targets
}
