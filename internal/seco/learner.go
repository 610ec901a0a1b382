// Package seco implements separate-and-conquer rule learning: a best-first refinement
// search for single rules, reduced-error pruning of learned rules, the covering loop
// that assembles a decision list, and the RIPPER optimization of that list.
package seco

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/heuristic"
	"github.com/Veraticus/seco/internal/model"
)

// Learner induces decision lists.
//
// A Learner is not safe for concurrent use: it owns the random generator that drives
// tie-breaking and stratification.
type Learner struct {
	heuristic   heuristic.Heuristic
	selection   heuristic.Heuristic
	selector    Selector
	filter      Filter
	initializer Initializer
	refiner     Refiner
	ruleStop    RuleStop
	theoryStop  TheoryStop
	observer    Observer
	logger      *slog.Logger
	rng         *rand.Rand
	cfg         config.Learner
}

// Option customizes a Learner.
type Option func(*Learner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) { l.logger = logger }
}

// WithObserver sets the observer notified about covering progress.
func WithObserver(o Observer) Option {
	return func(l *Learner) { l.observer = o }
}

// WithRand replaces the generator seeded from the configuration.
func WithRand(rng *rand.Rand) Option {
	return func(l *Learner) { l.rng = rng }
}

// NewLearner validates cfg and builds its components. Configuration errors wrap
// common.ErrInvalidConfig.
func NewLearner(cfg config.Learner, opts ...Option) (*Learner, error) {
	l := &Learner{observer: nopObserver{}}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = common.OrDefault(l.logger)

	if err := cfg.Validate(l.logger); err != nil {
		return nil, err
	}
	h, err := heuristic.Parse(cfg.Heuristic, cfg.HeuristicParameter)
	if err != nil {
		return nil, err
	}
	if cfg.SelectionHeuristic != "" {
		if l.selection, err = heuristic.Parse(cfg.SelectionHeuristic, math.NaN()); err != nil {
			return nil, err
		}
	}

	l.cfg = cfg
	l.heuristic = h
	l.selector = newSelector(cfg)
	l.filter = newFilter(cfg)
	l.initializer = newInitializer(cfg)
	l.refiner = newRefiner(cfg)
	l.ruleStop = newRuleStop(cfg)
	l.theoryStop = newTheoryStop(cfg)
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible search, not security
	}
	return l, nil
}

// Config returns the validated configuration.
func (l *Learner) Config() config.Learner { return l.cfg }

// Heuristic returns the search heuristic.
func (l *Learner) Heuristic() heuristic.Heuristic { return l.heuristic }

// Evaluate computes the confusion matrix of r for the target class over data and caches
// it together with the heuristic value. Instances whose class cannot be read are logged
// and skipped.
func (l *Learner) Evaluate(r *model.Rule, p Problem) {
	l.evaluateWith(l.heuristic, r, p)
}

func (l *Learner) evaluateWith(h heuristic.Heuristic, r *model.Rule, p Problem) {
	var cm model.ConfusionMatrix
	for _, inst := range p.Data.All() {
		cls, ok, err := inst.ClassValue()
		if err != nil {
			l.logger.Warn("skipping instance without class", "error", err, "instance", inst.String())
			continue
		}
		if !ok {
			continue
		}
		cm.Record(r.Covers(inst), cls == p.Target, inst.Weight())
	}
	r.SetEvaluation(cm, heuristic.Score(h, r, cm))
}

// FindBestRule searches for the best rule predicting the target class, starting from the
// seeds of the configured initializer. It returns nil when no rule covers a positive.
func (l *Learner) FindBestRule(p Problem) *model.Rule {
	return l.findBestRuleFrom(p, l.initializer.Initialize(p, l.rng))
}

// findBestRuleFrom runs the best-first search from seeds.
func (l *Learner) findBestRuleFrom(p Problem, seeds []*model.Rule) *model.Rule {
	minCov := l.cfg.MinCoverage
	value := l.heuristic.IsValueHeuristic()
	forwardPrune := value && l.refiner.Specializes()

	cands := newCandidateSet()
	seen := make(map[string]struct{})
	var best *model.Rule
	for _, s := range seeds {
		l.Evaluate(s, p)
		seen[s.Key()] = struct{}{}
		cands.add(s)
		if s.Stats().TP >= minCov {
			best = model.Better(best, s)
		}
	}

	for cands.Len() > 0 {
		selected := l.selector.Select(cands.snapshot())
		cands.remove(selected)

		for _, c := range selected {
			if c.Stats().TP < minCov || l.ruleStop.Stop(c) {
				continue
			}
			covered := c.CoveredInstances(p.Data)
			if !l.refiner.Specializes() {
				covered = p.Data
			}
			parentKey := c.Key()
			for _, s := range l.refiner.Refine(c, covered, p) {
				k := s.Key()
				if k == parentKey {
					continue
				}
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}

				l.Evaluate(s, Problem{Data: covered, Class: p.Class, Target: p.Target})
				if l.refiner.Specializes() {
					l.restoreUncovered(s, c)
				}
				if s.Stats().TP == 0 {
					continue
				}
				if forwardPrune && best != nil {
					opt := s.Stats().Optimistic()
					if s.Virtual(opt, heuristic.Score(l.heuristic, s, opt)).Compare(best) <= 0 {
						continue
					}
				}
				if l.cfg.StrictlyGreater && s.Compare(c) <= 0 {
					continue
				}
				cands.add(s)
			}
		}

		if top := cands.best(); top != nil {
			switch {
			case value:
				if top.Stats().TP >= minCov && (best == nil || top.Compare(best) > 0) {
					best = top
				}
			case !l.theoryStop.Stop(top):
				best = top
			}
		}

		if kept := l.filter.Filter(cands.snapshot()); len(kept) < cands.Len() {
			cands.truncate(len(kept))
		}
	}
	return best
}

// restoreUncovered completes the matrix of a specialization that was evaluated only on
// the instances its parent covers: what the parent left uncovered stays uncovered.
func (l *Learner) restoreUncovered(s, parent *model.Rule) {
	cm := s.Stats()
	ps := parent.Stats()
	cm.TN += ps.TN
	cm.FN += ps.FN
	s.SetEvaluation(cm, heuristic.Score(l.heuristic, s, cm))
}

// PruneRule removes trailing conditions of r using the pruning data. Each prefix is
// rated by (tp+1)/(tp+fp+2) over the pruning instances it covers, or with useWhole by
// (tp+tn)/total over all pruning instances. The best prefix is kept; ties keep the
// shorter one and the empty rule's rating (p+1)/(total+2) is the floor.
func PruneRule(r *model.Rule, p Problem, useWhole bool) *model.Rule {
	total := p.Data.SumOfWeights()
	if total <= 0 || r.IsEmpty() {
		return r
	}

	var defAccu float64
	for _, inst := range p.Data.All() {
		if p.IsPositive(inst) {
			defAccu += inst.Weight()
		}
	}

	worth := make([]float64, r.Length())
	data := p.Data
	var tn float64
	for x := 0; x < r.Length(); x++ {
		cond := r.Condition(x)
		covered, rest := data.Partition(cond.Covers)
		var cover, tp float64
		for _, inst := range covered.All() {
			cover += inst.Weight()
			if p.IsPositive(inst) {
				tp += inst.Weight()
			}
		}
		if useWhole {
			for _, inst := range rest.All() {
				if !p.IsPositive(inst) {
					tn += inst.Weight()
				}
			}
			worth[x] = (tp + tn) / total
		} else {
			worth[x] = (tp + 1) / (cover + 2)
		}
		data = covered
	}

	n := bestPrefix(worth, (defAccu+1)/(total+2))
	if n == r.Length() {
		return r
	}
	return r.Truncate(n)
}

// bestPrefix returns the length of the best prefix given the worth of each prefix and
// the worth of the empty rule. Only a strictly better worth extends the prefix.
func bestPrefix(worth []float64, floor float64) int {
	best, maxIndex := floor, -1
	for i, w := range worth {
		if w > best {
			best, maxIndex = w, i
		}
	}
	return maxIndex + 1
}
