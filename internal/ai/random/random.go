// Package random implements an agent that plays uniformly at random among the legal actions.
// It is the baseline trained agents are evaluated against.
package random

import (
	"fmt"
	"sync"
	"time"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"golang.org/x/exp/rand"
)

// Agent picks a uniformly random legal action.
type Agent struct {
	playerID, numActions int

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ai.Agent = (*Agent)(nil)

// New creates a random agent. If seed is 0, a time based seed is used.
func New(playerID, numActions int, seed uint64) *Agent {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) + uint64(playerID)
	}
	return &Agent{
		playerID:   playerID,
		numActions: numActions,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// PlayerID implements ai.Agent.
func (a *Agent) PlayerID() int { return a.playerID }

// String implements ai.Agent.
func (a *Agent) String() string { return fmt.Sprintf("random[player %d]", a.playerID) }

// Step implements ai.Agent.
func (a *Agent) Step(ts *rlenv.TimeStep, _ bool) ai.StepOutput {
	if !ai.IsMyTurn(ts, a.playerID) {
		return ai.StepOutput{Action: ai.NoAction}
	}
	legal := ts.Observations.LegalActions[a.playerID]
	if len(legal) == 0 {
		return ai.StepOutput{Action: ai.NoAction}
	}
	a.mu.Lock()
	idx := a.rng.Intn(len(legal))
	a.mu.Unlock()
	return ai.StepOutput{
		Action: legal[idx],
		Probs:  ai.UniformProbs(legal, a.numActions),
	}
}
