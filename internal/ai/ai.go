// Package ai (Artificial Intelligence) defines standard interfaces that agents for the game
// have to implement, and a few helpers shared among them.
package ai

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
)

// NoAction is returned in StepOutput.Action when the agent didn't act: either it was not its
// turn, or the episode was over.
const NoAction = -1

// IllegalActionLogitsPenalty is added to the Q-values of illegal actions when taking the max.
const IllegalActionLogitsPenalty = float32(-1e9)

// StepOutput is returned by Agent.Step.
type StepOutput struct {
	// Action chosen, or NoAction.
	Action int

	// Probs is the probability the agent's policy assigned to each action, of length NumActions.
	// It is nil if Action is NoAction.
	Probs []float32
}

func (o StepOutput) String() string {
	if o.Action == NoAction {
		return "<no action>"
	}
	return fmt.Sprintf("action=%d", o.Action)
}

// Agent is anything that can play as one of the players of the environment.
type Agent interface {
	// Step observes the time step and, if it is the agent's turn, returns the action to take.
	// If isEvaluation is false, learning agents also update their model with the observation.
	//
	// Learning agents must be stepped with the final (LAST) time step of every episode, so they
	// can learn from the final rewards.
	Step(ts *rlenv.TimeStep, isEvaluation bool) StepOutput

	// PlayerID the agent plays as.
	PlayerID() int

	// String returns the agent name.
	String() string
}

// Learner is an Agent that learns, and reports its last training loss.
type Learner interface {
	Agent

	// LastLoss returns the loss of the last learning step, and false if it hasn't learned yet.
	LastLoss() (loss float32, ok bool)
}

// Saver is implemented by agents that can persist what they learned.
type Saver interface {
	// Save the model being learned -- or create a new checkpoint.
	Save() error
}

// FormatLoss formats the LastLoss of the agent, or "n/a" if it doesn't have one.
func FormatLoss(agent Agent) string {
	learner, ok := agent.(Learner)
	if !ok {
		return "n/a"
	}
	loss, ok := learner.LastLoss()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%g", loss)
}

// Transition is one step of experience, stored by learners in their replay buffers.
type Transition struct {
	InfoState        []float32
	Action           int
	Reward           float32
	NextInfoState    []float32
	IsFinal          bool
	LegalActionsMask []float32
}

// IsMyTurn returns whether the agent with playerID should act at the time step.
func IsMyTurn(ts *rlenv.TimeStep, playerID int) bool {
	return !ts.Last() && ts.CurrentPlayer() == playerID
}

// UniformProbs returns probabilities of numActions elements, evenly distributed over legalActions.
func UniformProbs(legalActions []int, numActions int) []float32 {
	probs := make([]float32, numActions)
	if len(legalActions) == 0 {
		return probs
	}
	p := 1 / float32(len(legalActions))
	for _, a := range legalActions {
		probs[a] = p
	}
	return probs
}

// OneHotEncoding returns a slice of float32 with one element set to 1, and all others to 0.
func OneHotEncoding(total, selected int) (vec []float32) {
	vec = make([]float32, total)
	if total > 0 {
		vec[selected] = 1
	}
	return
}

// ArgmaxLegal returns the legal action with the highest value. Ties are broken by the lowest action.
// It returns NoAction if there are no legal actions.
func ArgmaxLegal(values []float32, legalActions []int) int {
	best := NoAction
	bestValue := math32.Inf(-1)
	for _, a := range legalActions {
		if best == NoAction || values[a] > bestValue {
			best, bestValue = a, values[a]
		}
	}
	return best
}

// MaxLegal returns the highest value among the legal actions, or 0 if there are none.
func MaxLegal(values []float32, legalActions []int) float32 {
	if len(legalActions) == 0 {
		return 0
	}
	return values[ArgmaxLegal(values, legalActions)]
}
