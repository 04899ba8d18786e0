// Package report writes the results of a training run into its own directory: a JSON summary, the
// loss curves of the agents and their evaluation results as PNG plots.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/janpfeifer/gomokuGo/internal/trainer"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// File names written in the run directory.
const (
	SummaryFile = "summary.json"
	LossPlot    = "loss.png"
	EvalPlot    = "eval.png"
)

// LossPoint is one loss report. A nil loss means the agent had none at that point.
type LossPoint struct {
	Episode int        `json:"episode"`
	Losses  []*float32 `json:"losses"`
}

// Summary of a run, saved as JSON.
type Summary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Agents    []string  `json:"agents"`

	TrainEpisodes int         `json:"train_episodes"`
	TrainDuration string      `json:"train_duration"`
	TrainWins     []int       `json:"train_wins"`
	TrainDraws    int         `json:"train_draws"`
	Losses        []LossPoint `json:"losses,omitempty"`

	EvalEpisodes    int       `json:"eval_episodes,omitempty"`
	EvalMeanRewards []float32 `json:"eval_mean_rewards,omitempty"`
}

// Report collects the results of one run.
type Report struct {
	Dir     string
	Summary Summary
}

// New creates the report with a new run id, and its directory under baseDir.
func New(baseDir string, agents []string) (*Report, error) {
	runID := uuid.New().String()
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create report directory %q", dir)
	}
	return &Report{
		Dir: dir,
		Summary: Summary{
			RunID:     runID,
			StartedAt: time.Now(),
			Agents:    agents,
		},
	}, nil
}

// AddTraining records the results of trainer.Train.
func (r *Report) AddTraining(result *trainer.Result) {
	s := &r.Summary
	s.TrainEpisodes = result.Episodes
	s.TrainDuration = result.Duration.Round(time.Millisecond).String()
	s.TrainWins = result.Wins
	s.TrainDraws = result.Draws
	s.Losses = make([]LossPoint, 0, len(result.LossHistory))
	for _, record := range result.LossHistory {
		point := LossPoint{Episode: record.Episode, Losses: make([]*float32, len(record.Losses))}
		for ii, loss := range record.Losses {
			if !math.IsNaN(float64(loss)) {
				point.Losses[ii] = &loss
			}
		}
		s.Losses = append(s.Losses, point)
	}
}

// AddEvaluation records the mean rewards returned by trainer.Evaluate.
func (r *Report) AddEvaluation(numEpisodes int, meanRewards []float32) {
	r.Summary.EvalEpisodes = numEpisodes
	r.Summary.EvalMeanRewards = meanRewards
}

// Write the summary and the plots to the run directory.
func (r *Report) Write() error {
	contents, err := json.MarshalIndent(&r.Summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report summary")
	}
	if err = os.WriteFile(filepath.Join(r.Dir, SummaryFile), contents, 0o644); err != nil {
		return errors.Wrap(err, "failed to write report summary")
	}
	if len(r.Summary.Losses) > 0 {
		if err = r.plotLosses(filepath.Join(r.Dir, LossPlot)); err != nil {
			return err
		}
	}
	if len(r.Summary.EvalMeanRewards) > 0 {
		if err = r.plotEvaluation(filepath.Join(r.Dir, EvalPlot)); err != nil {
			return err
		}
	}
	klog.V(1).Infof("Report written to %s", r.Dir)
	return nil
}

func (r *Report) agentName(ii int) string {
	if ii < len(r.Summary.Agents) {
		return fmt.Sprintf("%d: %s", ii, r.Summary.Agents[ii])
	}
	return fmt.Sprintf("agent %d", ii)
}

func (r *Report) plotLosses(path string) error {
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Loss"
	numAgents := len(r.Summary.Losses[0].Losses)
	for ii := range numAgents {
		var points plotter.XYs
		for _, point := range r.Summary.Losses {
			if ii < len(point.Losses) && point.Losses[ii] != nil {
				points = append(points, plotter.XY{X: float64(point.Episode), Y: float64(*point.Losses[ii])})
			}
		}
		if len(points) == 0 {
			continue
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return errors.Wrapf(err, "failed to plot losses of agent %d", ii)
		}
		line.Color = plotutil.Color(ii)
		p.Add(line)
		p.Legend.Add(r.agentName(ii), line)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save %q", path)
	}
	return nil
}

func (r *Report) plotEvaluation(path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean reward vs random over %s episodes", humanize.Comma(int64(r.Summary.EvalEpisodes)))
	p.Y.Label.Text = "Mean reward"
	p.Y.Min, p.Y.Max = -1, 1
	values := make(plotter.Values, len(r.Summary.EvalMeanRewards))
	names := make([]string, len(values))
	for ii, v := range r.Summary.EvalMeanRewards {
		values[ii] = float64(v)
		names[ii] = r.agentName(ii)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return errors.Wrap(err, "failed to plot evaluation")
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)
	if err = p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save %q", path)
	}
	return nil
}

// String returns a human-readable summary of the run.
func (r *Report) String() string {
	s := &r.Summary
	var parts []string
	parts = append(parts, fmt.Sprintf("Run %s (started %s)", s.RunID, humanize.Time(s.StartedAt)))
	if s.TrainEpisodes > 0 {
		parts = append(parts, fmt.Sprintf("  trained %s episodes in %s: wins %v, %s draws",
			humanize.Comma(int64(s.TrainEpisodes)), s.TrainDuration, s.TrainWins, humanize.Comma(int64(s.TrainDraws))))
	}
	if s.EvalEpisodes > 0 {
		parts = append(parts, fmt.Sprintf("  mean rewards vs random over %s episodes: %v",
			humanize.Comma(int64(s.EvalEpisodes)), s.EvalMeanRewards))
	}
	parts = append(parts, "  results in "+r.Dir)
	return strings.Join(parts, "\n")
}
