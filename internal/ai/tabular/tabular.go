// Package tabular implements a tabular Q-learning agent: action values are kept in a table
// keyed by the observed state, and updated with one-step temporal difference targets.
package tabular

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/qtable"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
	"k8s.io/klog/v2"
)

// Config holds the Q-learning hyperparameters.
type Config struct {
	StepSize float32
	Epsilon  float32
	Discount float32

	// Seed for the exploration. If 0 a time based seed is used.
	Seed uint64
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		StepSize: 0.1,
		Epsilon:  0.2,
		Discount: 1.0,
	}
}

// Agent is a tabular Q-learner.
type Agent struct {
	playerID, numActions int
	config               Config

	table     *qtable.Table
	store     qtable.Store
	storeName string

	muRng sync.Mutex
	src   rand.Source

	// Previous observation (only while training).
	hasPrev    bool
	prevKey    string
	prevAction int

	lastLoss float32
	hasLoss  bool
}

var (
	_ ai.Learner = (*Agent)(nil)
	_ ai.Saver   = (*Agent)(nil)
)

// New creates a tabular Q-learner with an empty table.
func New(playerID, numActions int, config Config) *Agent {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) + uint64(playerID)
	}
	return &Agent{
		playerID:   playerID,
		numActions: numActions,
		config:     config,
		table:      qtable.NewTable(),
		src:        rand.NewSource(seed),
	}
}

// AttachStore associates the agent to a store: the table is loaded from it if it was saved before,
// and Save will write to it.
func (a *Agent) AttachStore(ctx context.Context, store qtable.Store, name string) error {
	a.store = store
	a.storeName = name
	table, err := store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, qtable.ErrNotFound) {
			klog.V(1).Infof("%s: no q-table %q in %s, starting from scratch", a, name, store)
			return nil
		}
		return err
	}
	a.table = table
	klog.Infof("%s: loaded q-table %q with %d states from %s", a, name, table.Len(), store)
	return nil
}

// Table returns the agent's Q-table.
func (a *Agent) Table() *qtable.Table { return a.table }

// PlayerID implements ai.Agent.
func (a *Agent) PlayerID() int { return a.playerID }

// String implements ai.Agent.
func (a *Agent) String() string { return fmt.Sprintf("tabular[player %d]", a.playerID) }

// LastLoss implements ai.Learner: it is the last temporal difference error.
func (a *Agent) LastLoss() (float32, bool) { return a.lastLoss, a.hasLoss }

// Save implements ai.Saver.
func (a *Agent) Save() error {
	if a.store == nil {
		klog.Warningf("%s is not associated to a q-table store, not saving", a)
		return nil
	}
	return a.store.Save(context.Background(), a.storeName, a.table)
}

// Close releases the q-table store, if one is attached. The agent can't be saved afterwards.
func (a *Agent) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// Step implements ai.Agent.
func (a *Agent) Step(ts *rlenv.TimeStep, isEvaluation bool) ai.StepOutput {
	key := StateKey(ts.Observations.InfoState[a.playerID])
	legal := ts.Observations.LegalActions[a.playerID]
	output := ai.StepOutput{Action: ai.NoAction}
	if !ts.Last() && len(legal) > 0 {
		epsilon := a.config.Epsilon
		if isEvaluation {
			epsilon = 0
		}
		output = a.epsilonGreedy(key, legal, epsilon)
	}
	if isEvaluation || (!ts.Last() && len(legal) == 0) {
		// Not our turn: the previous state is only updated at our next turn or at the end.
		return output
	}

	if a.hasPrev {
		target := ts.Reward(a.playerID)
		if !ts.Last() {
			target += a.config.Discount * a.table.MaxOver(key, legal)
		}
		a.lastLoss = target - a.table.Get(a.prevKey, a.prevAction)
		a.hasLoss = true
		a.table.Add(a.prevKey, a.prevAction, a.config.StepSize*a.lastLoss)
	}
	if ts.Last() {
		a.hasPrev = false
		return output
	}
	if output.Action != ai.NoAction {
		a.hasPrev = true
		a.prevKey = key
		a.prevAction = output.Action
	}
	return output
}

// epsilonGreedy returns an action sampled from the epsilon-greedy policy: every legal action gets
// epsilon/|legal|, and the greedy actions (all ties) share the remaining 1-epsilon.
func (a *Agent) epsilonGreedy(key string, legal []int, epsilon float32) ai.StepOutput {
	values := make([]float32, a.numActions)
	a.table.Fill(key, legal, values)
	greedyValue := ai.MaxLegal(values, legal)
	var numGreedy int
	for _, action := range legal {
		if values[action] == greedyValue {
			numGreedy++
		}
	}

	probs := make([]float32, a.numActions)
	weights := make([]float64, len(legal))
	for ii, action := range legal {
		probs[action] = epsilon / float32(len(legal))
		if values[action] == greedyValue {
			probs[action] += (1 - epsilon) / float32(numGreedy)
		}
		weights[ii] = float64(probs[action])
	}

	a.muRng.Lock()
	idx, ok := sampleuv.NewWeighted(weights, a.src).Take()
	a.muRng.Unlock()
	if !ok {
		idx = 0
	}
	return ai.StepOutput{Action: legal[idx], Probs: probs}
}

// StateKey returns a compact string key for an observation vector. Vectors of only 0s and 1s
// (like the one-hot board) are packed as a bitset.
func StateKey(infoState []float32) string {
	binaryValues := true
	for _, v := range infoState {
		if v != 0 && v != 1 {
			binaryValues = false
			break
		}
	}
	var sb strings.Builder
	if binaryValues {
		bits := make([]byte, (len(infoState)+7)/8)
		for ii, v := range infoState {
			if v == 1 {
				bits[ii/8] |= 1 << (ii % 8)
			}
		}
		sb.WriteString("b:")
		sb.WriteString(hex.EncodeToString(bits))
		return sb.String()
	}
	buf := make([]byte, 4*len(infoState))
	for ii, v := range infoState {
		binary.LittleEndian.PutUint32(buf[4*ii:], math.Float32bits(v))
	}
	sb.WriteString("f:")
	sb.WriteString(hex.EncodeToString(buf))
	return sb.String()
}
