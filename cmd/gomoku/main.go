// gomoku trains two agents playing Gomoku against each other, evaluates them against random agents and
// optionally lets a human play against them.
//
// Without a subcommand it runs the full training driver. Subcommands:
//
//   - eval: load the agents (e.g. from their checkpoints) and evaluate them against random agents.
//   - play: play against an agent in the terminal.
//   - serve: serve an HTTP API to play against the agents.
//
// Agents are configured with --agent0 and --agent1, e.g. "dqn:model=~/work/gomoku/dqn0,hidden_nodes=64",
// "tabular:qtable=redis://localhost:6379/0" or "random".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/janpfeifer/gomokuGo/internal/profilers"
	"github.com/janpfeifer/gomokuGo/internal/ui/cli"
	"github.com/janpfeifer/gomokuGo/internal/ui/spinning"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	numEpisodes        int
	lossReportInterval int
	evalEpisodes       int
	agentConfigs       [2]string
	interactivePlay    bool
	humanPlayer        int
	parallelism        int
	reportDir          string
	saveMatches        string
	addr               string

	// globalCtx is cancelled on Ctrl+C.
	globalCtx    = context.Background()
	globalCancel = func() {}
)

// GetRootCommand returns the root command, with the subcommands and all the flags.
func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "gomoku",
		Short: "Train DQN agents to play Gomoku by self-play, and evaluate them against random agents",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalCtx, globalCancel = context.WithCancel(context.Background())
			spinning.SafeInterrupt(globalCancel, 5*time.Second)
			return profilers.Setup(globalCtx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			profilers.OnQuit()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDriver(globalCtx)
		},
		SilenceUsage: true,
	}
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&agentConfigs[0], "agent0", "dqn", "Configuration of the agent of player 0 (x).")
	flags.StringVar(&agentConfigs[1], "agent1", "dqn", "Configuration of the agent of player 1 (o).")
	flags.IntVar(&evalEpisodes, "eval_episodes", 1000, "Number of evaluation episodes per player against random agents.")
	flags.IntVarP(&parallelism, "parallelism", "p", runtime.NumCPU(), "Max number of evaluation episodes running in parallel.")
	flags.StringVar(&reportDir, "report_dir", "", "If set, a report (summary and plots) of the run is written to a new directory under it.")
	flags.StringVar(&saveMatches, "save_matches", "", "If set, the evaluation matches are saved to the given file.")
	flags.IntVar(&humanPlayer, "human_player", 0, "Seat (0 or 1) of the human when playing against an agent.")

	rootCommand.Flags().IntVarP(&numEpisodes, "num_episodes", "e", 50_000, "Number of training episodes.")
	rootCommand.Flags().IntVar(&lossReportInterval, "loss_report_interval", 1000, "Episodes between loss reports.")
	rootCommand.Flags().BoolVar(&interactivePlay, "interactive_play", cli.IsInteractive(), "Play against the trained agent at the end.")

	// Go flags: klog and profilers.
	flags.AddGoFlagSet(flag.CommandLine)

	rootCommand.AddCommand(EvalCommand())
	rootCommand.AddCommand(PlayCommand())
	rootCommand.AddCommand(ServeCommand())
	return rootCommand
}

func init() {
	klog.InitFlags(nil)
}

func main() {
	rootCommand := GetRootCommand()
	err := rootCommand.Execute()
	globalCancel()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
