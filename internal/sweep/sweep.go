// Package sweep trains decision lists over a grid of hyperparameters and ranks them on a
// holdout set.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/seco"
)

// Setting is one point of the grid.
type Setting struct {
	Heuristic string
	Parameter float64
	BeamWidth int
}

func (s Setting) String() string {
	param := "default"
	if !math.IsNaN(s.Parameter) {
		param = strconv.FormatFloat(s.Parameter, 'g', -1, 64)
	}
	return fmt.Sprintf("%s(%s) beam=%d", s.Heuristic, param, s.BeamWidth)
}

// Result is the outcome of training one setting.
type Result struct {
	Rules    *model.RuleSet
	Err      error
	Setting  Setting
	Accuracy float64
	Index    int
}

// Report holds every result ranked by holdout accuracy, best first. Failed settings are
// ranked last.
type Report struct {
	Best    *Result
	Results []Result
	Train   int
	Test    int
}

// Runner trains every setting of a sweep on a shared dataset.
type Runner struct {
	logger   *slog.Logger
	progress func(Result)
	base     config.Learner
	cfg      config.Sweep
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithProgress registers a callback invoked once per finished setting. Calls are
// serialized.
func WithProgress(fn func(Result)) Option {
	return func(r *Runner) { r.progress = fn }
}

// NewRunner validates the sweep configuration. Every setting starts from base.
func NewRunner(base config.Learner, cfg config.Sweep, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{base: base, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = common.OrDefault(r.logger)
	return r, nil
}

// Settings returns the grid in a fixed order: heuristics, then parameters, then beam
// widths. No parameters means each heuristic's default; no beam widths means the base
// width.
func (r *Runner) Settings() []Setting {
	params := r.cfg.Parameters
	if len(params) == 0 {
		params = []float64{math.NaN()}
	}
	widths := r.cfg.BeamWidths
	if len(widths) == 0 {
		widths = []int{r.base.BeamWidth}
	}
	out := make([]Setting, 0, len(r.cfg.Heuristics)*len(params)*len(widths))
	for _, h := range r.cfg.Heuristics {
		for _, p := range params {
			for _, w := range widths {
				out = append(out, Setting{Heuristic: h, Parameter: p, BeamWidth: w})
			}
		}
	}
	return out
}

// Run splits data into a training and a holdout set and trains every setting on a
// bounded pool of workers. A failing setting is recorded in its Result; Run itself fails
// only when the context is canceled or the data cannot be split.
func (r *Runner) Run(ctx context.Context, data *dataset.Instances) (*Report, error) {
	if _, err := data.ClassAttribute(); err != nil {
		return nil, fmt.Errorf("failed to sweep: %w", err)
	}
	if data.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	train, test := r.split(data)

	settings := r.Settings()
	work := make(chan int, len(settings))
	for i := range settings {
		work <- i
	}
	close(work)

	var (
		mu      sync.Mutex
		results = make([]Result, len(settings))
		best    *Result
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers && w < len(settings); w++ {
		g.Go(func() error {
			for i := range work {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				res := r.train(gctx, i, settings[i], train, test)
				if res.Err != nil && gctx.Err() != nil {
					return gctx.Err()
				}

				mu.Lock()
				results[i] = res
				if res.Err == nil && (best == nil || better(&res, best)) {
					best = &results[i]
				}
				if r.progress != nil {
					r.progress(res)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{Results: results, Train: train.Len(), Test: test.Len()}
	if best != nil {
		b := *best
		rep.Best = &b
	}
	sort.SliceStable(rep.Results, func(i, j int) bool {
		return better(&rep.Results[i], &rep.Results[j])
	})
	return rep, nil
}

func (r *Runner) split(data *dataset.Instances) (train, test *dataset.Instances) {
	if r.cfg.Holdout == 0 {
		return data, data
	}
	rng := rand.New(rand.NewSource(r.base.Seed)) //nolint:gosec // reproducible split
	return data.SplitGrowPrune(1-r.cfg.Holdout, rng)
}

func (r *Runner) train(ctx context.Context, index int, s Setting, train, test *dataset.Instances) Result {
	res := Result{Setting: s, Index: index}
	cfg := r.base
	cfg.Heuristic = s.Heuristic
	cfg.HeuristicParameter = s.Parameter
	cfg.BeamWidth = s.BeamWidth

	logger := r.logger.With("setting", s.String())
	learner, err := seco.NewLearner(cfg, seco.WithLogger(logger))
	if err != nil {
		res.Err = err
		return res
	}
	rules, err := learner.SeparateAndConquer(ctx, train)
	if err != nil {
		res.Err = fmt.Errorf("failed to train %s: %w", s, err)
		return res
	}
	res.Rules = rules
	if test.Len() > 0 {
		rep, err := evaluation.Evaluate(rules, test)
		if err != nil {
			res.Err = fmt.Errorf("failed to evaluate %s: %w", s, err)
			return res
		}
		res.Accuracy = rep.Accuracy()
	}
	logger.Debug("Setting finished", "accuracy", res.Accuracy, "rules", rules.Len())
	return res
}

// better ranks successful results by accuracy, then fewer rules, then grid order.
func better(a, b *Result) bool {
	if (a.Err == nil) != (b.Err == nil) {
		return a.Err == nil
	}
	if a.Err == nil {
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.Rules.Len() != b.Rules.Len() {
			return a.Rules.Len() < b.Rules.Len()
		}
	}
	return a.Index < b.Index
}
