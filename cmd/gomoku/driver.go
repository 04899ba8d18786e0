package main

import (
	"context"
	"encoding/gob"
	"os"

	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/ai/random"
	"github.com/janpfeifer/gomokuGo/internal/players"
	_ "github.com/janpfeifer/gomokuGo/internal/players/default"
	"github.com/janpfeifer/gomokuGo/internal/report"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/janpfeifer/gomokuGo/internal/trainer"
	"github.com/janpfeifer/gomokuGo/internal/ui/cli"
	"github.com/janpfeifer/gomokuGo/internal/ui/spinning"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// runDriver trains the agents, evaluates them against random agents and optionally plays against a human.
func runDriver(ctx context.Context) error {
	env, err := rlenv.New(rlenv.GameName)
	if err != nil {
		return err
	}
	spec := players.SpecFromEnv(env)
	klog.V(1).Infof("Environment %q: info_state size %d, %d actions", rlenv.GameName, spec.InfoStateSize, spec.NumActions)
	agents, err := createAgents(spec)
	if err != nil {
		return err
	}
	defer trainer.CloseAll(agents)
	rep, err := newReport()
	if err != nil {
		return err
	}

	result, err := trainer.Train(ctx, env, agents, trainer.Config{
		NumEpisodes:        numEpisodes,
		LossReportInterval: lossReportInterval,
		ShowProgress:       cli.IsInteractive(),
	})
	if result != nil {
		klog.Infof("Training: %s", result)
		if rep != nil {
			rep.AddTraining(result)
		}
	}
	if err != nil {
		return err
	}
	if err = trainer.SaveAll(agents); err != nil {
		return err
	}

	meanRewards, err := evaluate(ctx, agents)
	if err != nil {
		return err
	}
	if rep != nil {
		rep.AddEvaluation(evalEpisodes, meanRewards)
		if err = rep.Write(); err != nil {
			return err
		}
		klog.Infof("%s", rep)
	}

	if interactivePlay {
		return playInteractive(ctx, env, agents)
	}
	return nil
}

// createAgents creates one agent per player from --agent0 and --agent1.
func createAgents(spec players.Spec) ([]ai.Agent, error) {
	agents := make([]ai.Agent, len(agentConfigs))
	for playerID, config := range agentConfigs {
		s := spinning.New(globalCtx, os.Stderr, "Creating agent "+config)
		agent, err := players.New(playerID, spec, config)
		s.Done()
		if err != nil {
			trainer.CloseAll(agents[:playerID])
			return nil, err
		}
		klog.Infof("Player %d: %s", playerID, agent)
		agents[playerID] = agent
	}
	return agents, nil
}

// newReport returns nil if --report_dir is not set.
func newReport() (*report.Report, error) {
	if reportDir == "" {
		return nil, nil
	}
	return report.New(reportDir, agentConfigs[:])
}

// newRandomOpponent is the baseline agent of the evaluations.
func newRandomOpponent(playerID int) (ai.Agent, error) {
	return random.New(playerID, state.NumPoints, 0), nil
}

// evaluate the agents against random agents for --eval_episodes episodes, logging the mean episode rewards.
func evaluate(ctx context.Context, agents []ai.Agent) ([]float32, error) {
	config := trainer.EvalConfig{
		NumEpisodes:  evalEpisodes,
		Parallelism:  parallelism,
		ShowProgress: cli.IsInteractive(),
	}
	if saveMatches != "" {
		f, err := os.Create(saveMatches)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create %q to save matches", saveMatches)
		}
		defer func() {
			if err := f.Close(); err != nil {
				klog.Errorf("Failed to close %q: %v", saveMatches, err)
			}
		}()
		config.Matches = gob.NewEncoder(f)
	}
	newEnv := func() (*rlenv.Environment, error) { return rlenv.New(rlenv.GameName) }
	meanRewards, err := trainer.Evaluate(ctx, newEnv, agents, newRandomOpponent, config)
	if err != nil {
		return nil, err
	}
	klog.Infof("Mean episode rewards: %v", meanRewards)
	return meanRewards, nil
}

// playInteractive lets the human play against the agent of the other seat.
func playInteractive(ctx context.Context, env *rlenv.Environment, agents []ai.Agent) error {
	if humanPlayer < 0 || humanPlayer >= len(agents) {
		return errors.Errorf("invalid --human_player=%d", humanPlayer)
	}
	ui := cli.New(nil, nil, true, false)
	for ctx.Err() == nil {
		returns, err := ui.PlayAgainst(env, agents[1-humanPlayer], humanPlayer)
		if err != nil {
			return err
		}
		klog.V(1).Infof("Game returns: %v", returns)
		if !ui.AskYesNo("Play again?") {
			break
		}
	}
	return nil
}
