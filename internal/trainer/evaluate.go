package trainer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// EnvFactory creates a new environment, one per concurrent evaluation.
type EnvFactory func() (*rlenv.Environment, error)

// AgentFactory creates a baseline opponent for the given player.
type AgentFactory func(playerID int) (ai.Agent, error)

// EvalConfig configures Evaluate.
type EvalConfig struct {
	// NumEpisodes played for each position of the trained agents.
	NumEpisodes int

	// Parallelism is the max number of episode runners running concurrently.
	// Each position gets at least one runner. Defaults to 1 if <= 0.
	Parallelism int

	// Matches, if not nil, receives every evaluation match encoded with state.EncodeMatch.
	Matches state.Encoder

	// ShowProgress prints the number of finished episodes as they finish.
	ShowProgress bool
}

// Evaluate each trained agent against baseline opponents.
//
// For each position p, trained[p] plays seat p, and all other seats are taken by opponents created with
// newOpponent. config.NumEpisodes are played in evaluation mode, and the rewards of player p are summed
// over every step of each episode.
//
// It returns the mean episode reward for each position.
//
// Positions (and shards of episodes within a position) are evaluated concurrently, each runner with its
// own environment and opponents. Because of that, the trained agents must be safe for concurrent
// evaluation steps.
func Evaluate(ctx context.Context, newEnv EnvFactory, trained []ai.Agent, newOpponent AgentFactory, config EvalConfig) ([]float32, error) {
	numPositions := len(trained)
	if config.NumEpisodes <= 0 {
		return nil, errors.Errorf("evaluation requires a positive number of episodes, got %d", config.NumEpisodes)
	}
	parallelism := max(config.Parallelism, 1)
	shardsPerPosition := max(parallelism/numPositions, 1)
	shardsPerPosition = min(shardsPerPosition, config.NumEpisodes)

	sums := make([]float64, numPositions)
	var muSums, muMatches sync.Mutex
	var numFinished atomic.Int64
	start := time.Now()
	printUpdate := func() {
		fmt.Printf("\r\tEvaluating (parallelism=%d): %5d of %d episodes finished ... in %s\x1b[0K",
			parallelism, numFinished.Load(), config.NumEpisodes*numPositions, time.Since(start).Round(time.Second))
	}

	var wg errgroup.Group
	wg.SetLimit(parallelism)
	for position := range numPositions {
		for shard := range shardsPerPosition {
			// Split episodes evenly among the shards.
			numEpisodes := config.NumEpisodes / shardsPerPosition
			if shard < config.NumEpisodes%shardsPerPosition {
				numEpisodes++
			}
			wg.Go(func() error {
				env, err := newEnv()
				if err != nil {
					return err
				}
				agents, err := evaluationSeats(position, trained, newOpponent)
				if err != nil {
					return err
				}
				for range numEpisodes {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					var reward float32
					var actions []state.Action
					var returns []float32
					if exc := exceptions.TryCatch[error](func() {
						reward, actions, returns, err = runEvaluationEpisode(env, agents, position)
					}); exc != nil {
						err = exc
					}
					if err != nil {
						return errors.WithMessagef(err, "evaluating %s at position %d", trained[position], position)
					}
					muSums.Lock()
					sums[position] += float64(reward)
					muSums.Unlock()
					if config.Matches != nil {
						muMatches.Lock()
						err = state.EncodeMatch(config.Matches, actions, returns)
						muMatches.Unlock()
						if err != nil {
							return err
						}
					}
					numFinished.Add(1)
					if config.ShowProgress {
						printUpdate()
					}
				}
				return nil
			})
		}
	}
	err := wg.Wait()
	if config.ShowProgress {
		printUpdate()
		fmt.Println()
	}
	if err != nil {
		if ctx.Err() != nil {
			klog.Infof("Evaluation interrupted after %d episodes", numFinished.Load())
		}
		return nil, err
	}

	means := make([]float32, numPositions)
	for position, sum := range sums {
		means[position] = float32(sum / float64(config.NumEpisodes))
	}
	return means, nil
}

// evaluationSeats returns the agents for evaluating trained[position]: opponents in all other seats.
func evaluationSeats(position int, trained []ai.Agent, newOpponent AgentFactory) ([]ai.Agent, error) {
	agents := make([]ai.Agent, len(trained))
	for seat := range agents {
		if seat == position {
			agents[seat] = trained[position]
			continue
		}
		opponent, err := newOpponent(seat)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating opponent for player %d", seat)
		}
		agents[seat] = opponent
	}
	return agents, nil
}

// runEvaluationEpisode plays one episode in evaluation mode, and returns the summed rewards of player
// position, the actions played and the final returns.
func runEvaluationEpisode(env *rlenv.Environment, agents []ai.Agent, position int) (
	reward float32, actions []state.Action, returns []float32, err error) {
	ts := env.Reset()
	for !ts.Last() {
		player := ts.CurrentPlayer()
		output := agents[player].Step(ts, true)
		if output.Action == ai.NoAction {
			err = errors.Errorf("agent %s returned no action at its turn", agents[player])
			return
		}
		ts, err = env.Step([]int{output.Action})
		if err != nil {
			err = errors.WithMessagef(err, "agent %s", agents[player])
			return
		}
		reward += ts.Reward(position)
	}
	actions = slices.Clone(env.State().History())
	returns = slices.Clone(ts.Rewards)
	return
}
