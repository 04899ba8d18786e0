// Package rlenv wraps a game as a reinforcement learning environment: agents receive TimeStep
// observations for every player, and the environment is advanced with one action at a time.
//
// The only registered game is "gomoku".
package rlenv

import (
	"fmt"
	"slices"

	"github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GameName of the only game supported.
const GameName = "gomoku"

// TerminalPlayerID is reported as the current player once the game is over.
const TerminalPlayerID = -4

// StepType tells where in the episode a TimeStep is.
type StepType int

const (
	StepFirst StepType = iota
	StepMid
	StepLast
)

func (s StepType) String() string {
	switch s {
	case StepFirst:
		return "FIRST"
	case StepMid:
		return "MID"
	case StepLast:
		return "LAST"
	default:
		return fmt.Sprintf("StepType(%d)", int(s))
	}
}

// Observations seen by the agents, indexed by player.
type Observations struct {
	// InfoState per player: the one-hot board vector, of size state.ObservationSize.
	InfoState [][]float32

	// LegalActions per player: only the current player has legal actions.
	LegalActions [][]int

	// CurrentPlayer to act, or TerminalPlayerID.
	CurrentPlayer int
}

// TimeStep is what the environment returns on Reset and Step.
type TimeStep struct {
	Observations Observations

	// Rewards per player: nil on the first step of an episode.
	Rewards []float32

	// Discounts per player: nil on the first step of an episode.
	Discounts []float32

	StepType StepType
}

// First returns whether it is the first step of an episode.
func (ts *TimeStep) First() bool { return ts.StepType == StepFirst }

// Mid returns whether it is neither the first nor the last step.
func (ts *TimeStep) Mid() bool { return ts.StepType == StepMid }

// Last returns whether the episode is over.
func (ts *TimeStep) Last() bool { return ts.StepType == StepLast }

// CurrentPlayer to act, or TerminalPlayerID if the episode is over.
func (ts *TimeStep) CurrentPlayer() int { return ts.Observations.CurrentPlayer }

// Reward returns the reward for player, or 0 if there are no rewards (first step).
func (ts *TimeStep) Reward(player int) float32 {
	if ts.Rewards == nil {
		return 0
	}
	return ts.Rewards[player]
}

// ObservationSpec describes the observations.
type ObservationSpec struct {
	InfoStateSize    int
	LegalActionsSize int
}

// ActionSpec describes the discrete action space.
type ActionSpec struct {
	NumActions int
	Min, Max   int
}

// Environment for a 2-player sequential game.
//
// It is not safe for concurrent use: create one Environment per goroutine.
type Environment struct {
	discount float32
	board    *state.Board
}

// Option configures an Environment.
type Option func(env *Environment)

// WithDiscount sets the discount reported on non-terminal steps. Default is 1.
func WithDiscount(discount float32) Option {
	return func(env *Environment) {
		env.discount = discount
	}
}

// New creates an environment for the given game.
func New(gameName string, opts ...Option) (*Environment, error) {
	if gameName != GameName {
		return nil, errors.Errorf("unknown game %q, only %q is supported", gameName, GameName)
	}
	env := &Environment{discount: 1}
	for _, opt := range opts {
		opt(env)
	}
	klog.V(2).Infof("Created environment for %q, discount=%g", gameName, env.discount)
	return env, nil
}

// NumPlayers of the game.
func (env *Environment) NumPlayers() int { return state.NumPlayers }

// ObservationSpec returns the sizes of the observations.
func (env *Environment) ObservationSpec() ObservationSpec {
	return ObservationSpec{InfoStateSize: state.ObservationSize, LegalActionsSize: state.NumPoints}
}

// ActionSpec returns the range of actions.
func (env *Environment) ActionSpec() ActionSpec {
	return ActionSpec{NumActions: state.NumPoints, Min: 0, Max: state.NumPoints - 1}
}

// State returns the current board. It must not be modified.
func (env *Environment) State() *state.Board {
	return env.board
}

// Reset starts a new episode and returns its first TimeStep.
func (env *Environment) Reset() *TimeStep {
	env.board = state.NewBoard()
	return &TimeStep{
		Observations: env.observations(),
		StepType:     StepFirst,
	}
}

// Step applies the action of the current player. Exactly one action must be given.
func (env *Environment) Step(actions []int) (*TimeStep, error) {
	if env.board == nil {
		return nil, errors.New("Step called before Reset")
	}
	if len(actions) != 1 {
		return nil, errors.Errorf("sequential game expects exactly 1 action per step, got %d", len(actions))
	}
	if env.board.IsFinished() {
		return nil, errors.New("Step called on a finished episode, call Reset first")
	}
	if err := env.board.ApplyAction(state.Action(actions[0])); err != nil {
		return nil, errors.WithMessagef(err, "player %d", env.board.NextPlayer)
	}

	ts := &TimeStep{
		Observations: env.observations(),
		Rewards:      make([]float32, state.NumPlayers),
		Discounts:    make([]float32, state.NumPlayers),
		StepType:     StepMid,
	}
	if env.board.IsFinished() {
		ts.StepType = StepLast
		copy(ts.Rewards, env.board.Returns())
	} else {
		for ii := range ts.Discounts {
			ts.Discounts[ii] = env.discount
		}
	}
	return ts, nil
}

func (env *Environment) observations() Observations {
	obs := Observations{
		InfoState:     make([][]float32, state.NumPlayers),
		LegalActions:  make([][]int, state.NumPlayers),
		CurrentPlayer: TerminalPlayerID,
	}
	current := env.board.CurrentPlayer()
	if current != state.PlayerInvalid {
		obs.CurrentPlayer = int(current)
	}
	for player := range state.NumPlayers {
		obs.InfoState[player] = env.board.ObservationTensor(state.PlayerNum(player))
		obs.LegalActions[player] = []int{}
	}
	if current != state.PlayerInvalid {
		legal := env.board.LegalActions()
		actions := make([]int, len(legal))
		for ii, a := range legal {
			actions[ii] = int(a)
		}
		obs.LegalActions[current] = actions
	}
	return obs
}

// LegalActionsMask returns a mask with 1 for every action in legalActions.
func LegalActionsMask(legalActions []int, numActions int) []float32 {
	mask := make([]float32, numActions)
	for _, a := range legalActions {
		mask[a] = 1
	}
	return mask
}

// CloneTimeStep returns a deep copy of ts, safe to keep while the environment moves on.
func CloneTimeStep(ts *TimeStep) *TimeStep {
	c := &TimeStep{
		Observations: Observations{CurrentPlayer: ts.Observations.CurrentPlayer},
		Rewards:      slices.Clone(ts.Rewards),
		Discounts:    slices.Clone(ts.Discounts),
		StepType:     ts.StepType,
	}
	for _, s := range ts.Observations.InfoState {
		c.Observations.InfoState = append(c.Observations.InfoState, slices.Clone(s))
	}
	for _, a := range ts.Observations.LegalActions {
		c.Observations.LegalActions = append(c.Observations.LegalActions, slices.Clone(a))
	}
	return c
}
