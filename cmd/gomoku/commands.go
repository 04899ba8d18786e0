package main

import (
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/players"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/janpfeifer/gomokuGo/internal/trainer"
	"github.com/janpfeifer/gomokuGo/internal/ui/web"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// EvalCommand evaluates the configured agents against random agents, without training.
func EvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the agents (e.g. loaded from their checkpoints) against random agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := createAgentsForEnv()
			if err != nil {
				return err
			}
			defer trainer.CloseAll(agents)
			rep, err := newReport()
			if err != nil {
				return err
			}
			meanRewards, err := evaluate(globalCtx, agents)
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
			return nil
		},
	}
}

// PlayCommand plays against the agent in the terminal.
func PlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play against an agent in the terminal; the agent takes the seat not given by --human_player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rlenv.New(rlenv.GameName)
			if err != nil {
				return err
			}
			agents, err := createAgents(players.SpecFromEnv(env))
			if err != nil {
				return err
			}
			defer trainer.CloseAll(agents)
			return playInteractive(globalCtx, env, agents)
		},
	}
}

// ServeCommand serves the HTTP API to play against the agents.
func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API to play against the agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := createAgentsForEnv()
			if err != nil {
				return err
			}
			defer trainer.CloseAll(agents)
			server := web.New(func(playerID int) (ai.Agent, error) {
				if playerID < 0 || playerID >= len(agents) {
					return nil, errors.Errorf("no agent for player %d", playerID)
				}
				return agents[playerID], nil
			})
			return server.ListenAndServe(globalCtx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Address to serve the API.")
	return cmd
}

func createAgentsForEnv() ([]ai.Agent, error) {
	env, err := rlenv.New(rlenv.GameName)
	if err != nil {
		return nil, err
	}
	return createAgents(players.SpecFromEnv(env))
}
