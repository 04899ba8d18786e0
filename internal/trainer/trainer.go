// Package trainer runs the self-play training loop of the agents, and their evaluation against baseline
// opponents.
package trainer

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/ai/dqn"
	"github.com/janpfeifer/gomokuGo/internal/ai/tabular"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Config of the training loop.
type Config struct {
	// NumEpisodes to train for.
	NumEpisodes int

	// LossReportInterval is the number of episodes between logging the agents' losses.
	LossReportInterval int

	// ShowProgress displays a progress bar.
	ShowProgress bool
}

var nan = float32(math.NaN())

// LossRecord holds the losses of each agent at one report.
// Loss is NaN for agents that didn't have one.
type LossRecord struct {
	Episode int
	Losses  []float32
}

// Result of a training session.
type Result struct {
	// Episodes completed.
	Episodes int

	// Wins per player and Draws over the training episodes.
	Wins  []int
	Draws int

	LossHistory []LossRecord
	Duration    time.Duration
}

// lossLabel is the agent kind used in the loss reports.
func lossLabel(agent ai.Agent) string {
	switch agent.(type) {
	case *dqn.Agent:
		return "DQN"
	case *tabular.Agent:
		return "Tabular"
	default:
		return agent.String()
	}
}

// Train the agents by playing them against each other: agents[i] plays as player i.
//
// Every episode, the agent of the current player is stepped in training mode and its action applied,
// and once the episode is over all agents are stepped with the final time step.
// Every config.LossReportInterval episodes the losses are logged and recorded.
//
// If ctx is cancelled, training stops between episodes, returning the partial result and the context error.
// Panics of the agents (e.g.: errors in the numeric backend) are returned as errors.
func Train(ctx context.Context, env *rlenv.Environment, agents []ai.Agent, config Config) (result *Result, err error) {
	if len(agents) != env.NumPlayers() {
		return nil, errors.Errorf("training requires %d agents, got %d", env.NumPlayers(), len(agents))
	}
	result = &Result{Wins: make([]int, len(agents))}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	var bar *progressbar.ProgressBar
	if config.ShowProgress {
		bar = progressbar.NewOptions(config.NumEpisodes,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Training"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("episodes"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish())
		defer func() { _ = bar.Finish() }()
	}

	for ep := range config.NumEpisodes {
		if ctx.Err() != nil {
			klog.Infof("Training interrupted at episode %d: %v", ep, ctx.Err())
			return result, ctx.Err()
		}
		if ep > 0 && config.LossReportInterval > 0 && ep%config.LossReportInterval == 0 {
			result.LossHistory = append(result.LossHistory, reportLosses(ep, config.NumEpisodes, agents))
		}

		var returns []float32
		if exc := exceptions.TryCatch[error](func() {
			returns, err = runTrainingEpisode(env, agents)
		}); exc != nil {
			err = exc
		}
		if err != nil {
			return result, errors.WithMessagef(err, "training episode %d", ep)
		}
		result.Episodes++
		switch {
		case returns[0] > returns[1]:
			result.Wins[0]++
		case returns[1] > returns[0]:
			result.Wins[1]++
		default:
			result.Draws++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return result, nil
}

// reportLosses logs the current loss of each agent.
func reportLosses(ep, numEpisodes int, agents []ai.Agent) LossRecord {
	record := LossRecord{Episode: ep, Losses: make([]float32, len(agents))}
	for ii, agent := range agents {
		klog.Infof("[%d/%d] %s loss %d: %s", ep, numEpisodes, lossLabel(agent), ii, ai.FormatLoss(agent))
		record.Losses[ii] = nan
		if learner, ok := agent.(ai.Learner); ok {
			if loss, ok := learner.LastLoss(); ok {
				record.Losses[ii] = loss
			}
		}
	}
	return record
}

// runTrainingEpisode plays one episode stepping the agents in training mode, and returns the final rewards.
func runTrainingEpisode(env *rlenv.Environment, agents []ai.Agent) ([]float32, error) {
	ts := env.Reset()
	for !ts.Last() {
		player := ts.CurrentPlayer()
		output := agents[player].Step(ts, false)
		if output.Action == ai.NoAction {
			return nil, errors.Errorf("agent %s returned no action at its turn", agents[player])
		}
		var err error
		ts, err = env.Step([]int{output.Action})
		if err != nil {
			return nil, errors.WithMessagef(err, "agent %s", agents[player])
		}
	}
	// Episode is over: let all agents learn from the final rewards.
	for _, agent := range agents {
		agent.Step(ts, false)
	}
	if klog.V(2).Enabled() {
		klog.Infof("Episode finished in %d moves, rewards=%v:\n%s", env.State().MoveNumber(), ts.Rewards, env.State())
	}
	return ts.Rewards, nil
}

// SaveAll saves the agents that implement ai.Saver.
func SaveAll(agents []ai.Agent) error {
	for _, agent := range agents {
		if saver, ok := agent.(ai.Saver); ok {
			if err := saver.Save(); err != nil {
				return errors.WithMessagef(err, "saving %s", agent)
			}
			klog.V(1).Infof("Saved %s", agent)
		}
	}
	return nil
}

// CloseAll closes the agents that hold resources (e.g. q-table store connections).
// Errors are logged.
func CloseAll(agents []ai.Agent) {
	for _, agent := range agents {
		if closer, ok := agent.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				klog.Errorf("Failed to close %s: %+v", agent, err)
			}
		}
	}
}

// String summarizes the result.
func (r *Result) String() string {
	return fmt.Sprintf("%d episodes in %s: wins %v, %d draws", r.Episodes, r.Duration.Round(time.Millisecond), r.Wins, r.Draws)
}
