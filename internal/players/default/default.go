// Package _default registers the default agents that can be included in any front-end:
//
//   - "dqn": Deep Q-Network agent, see dqn.Config for the parameters, plus the gomlx.QNetwork parameters.
//   - "tabular": tabular Q-learning, with parameters step_size, epsilon, discount, seed and qtable=<store uri>.
//   - "random": uniformly random legal moves, with optional parameter seed.
package _default

import (
	"context"
	"fmt"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/ai/dqn"
	"github.com/janpfeifer/gomokuGo/internal/ai/gomlx"
	"github.com/janpfeifer/gomokuGo/internal/ai/random"
	"github.com/janpfeifer/gomokuGo/internal/ai/tabular"
	"github.com/janpfeifer/gomokuGo/internal/parameters"
	"github.com/janpfeifer/gomokuGo/internal/players"
	"github.com/janpfeifer/gomokuGo/internal/qtable"
)

func init() {
	players.RegisterModule("dqn", players.ModuleFunc(NewDQN))
	players.RegisterModule("tabular", players.ModuleFunc(NewTabular))
	players.RegisterModule("random", players.ModuleFunc(NewRandom))
}

// NewDQN creates a DQN agent backed by a GoMLX network.
func NewDQN(playerID int, spec players.Spec, params parameters.Params) (ai.Agent, error) {
	config, err := dqnConfigFromParams(params)
	if err != nil {
		return nil, err
	}
	network, err := gomlx.NewQNetwork(spec.InfoStateSize, spec.NumActions, params)
	if err != nil {
		return nil, err
	}
	return dqn.New(playerID, spec.NumActions, network, config)
}

func dqnConfigFromParams(params parameters.Params) (config dqn.Config, err error) {
	config = dqn.DefaultConfig()
	ints := []struct {
		key   string
		value *int
	}{
		{"replay_capacity", &config.ReplayBufferCapacity},
		{"batch_size", &config.BatchSize},
		{"update_target_every", &config.UpdateTargetNetworkEvery},
		{"learn_every", &config.LearnEvery},
		{"min_buffer_to_learn", &config.MinBufferSizeToLearn},
		{"epsilon_decay_duration", &config.EpsilonDecayDuration},
	}
	for _, p := range ints {
		if *p.value, err = parameters.PopParamOr(params, p.key, *p.value); err != nil {
			return
		}
	}
	floats := []struct {
		key   string
		value *float32
	}{
		{"discount", &config.Discount},
		{"epsilon_start", &config.EpsilonStart},
		{"epsilon_end", &config.EpsilonEnd},
		{"epsilon_power", &config.EpsilonPower},
	}
	for _, p := range floats {
		if *p.value, err = parameters.PopParamOr(params, p.key, *p.value); err != nil {
			return
		}
	}
	config.Seed, err = popSeed(params)
	return
}

func popSeed(params parameters.Params) (uint64, error) {
	seed, err := parameters.PopParamOr(params, "seed", 0)
	return uint64(seed), err
}

// NewTabular creates a tabular Q-learning agent, optionally persisted in a q-table store.
func NewTabular(playerID int, spec players.Spec, params parameters.Params) (ai.Agent, error) {
	config := tabular.DefaultConfig()
	var err error
	if config.StepSize, err = parameters.PopParamOr(params, "step_size", config.StepSize); err != nil {
		return nil, err
	}
	if config.Epsilon, err = parameters.PopParamOr(params, "epsilon", config.Epsilon); err != nil {
		return nil, err
	}
	if config.Discount, err = parameters.PopParamOr(params, "discount", config.Discount); err != nil {
		return nil, err
	}
	if config.Seed, err = popSeed(params); err != nil {
		return nil, err
	}
	storeURI, _ := parameters.PopParamOr(params, "qtable", "")
	agent := tabular.New(playerID, spec.NumActions, config)
	if storeURI != "" {
		ctx := context.Background()
		store, err := qtable.Open(ctx, storeURI)
		if err != nil {
			return nil, err
		}
		if err = agent.AttachStore(ctx, store, fmt.Sprintf("player%d", playerID)); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return agent, nil
}

// NewRandom creates a random agent.
func NewRandom(playerID int, spec players.Spec, params parameters.Params) (ai.Agent, error) {
	seed, err := popSeed(params)
	if err != nil {
		return nil, err
	}
	return random.New(playerID, spec.NumActions, seed), nil
}
