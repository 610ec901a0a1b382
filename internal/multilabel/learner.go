// Package multilabel learns multi-label rule sets by covering: every rule body is grown
// in a beam search and paired with the best head of label conditions for it.
package multilabel

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/heuristic"
	"github.com/Veraticus/seco/internal/model"
)

// Learner induces multi-label rule sets. It is not safe for concurrent use.
type Learner struct {
	heuristic heuristic.Heuristic
	logger    *slog.Logger
	rng       *rand.Rand
	cache     *lru.Cache
	cfg       config.MultiLabel
}

// Option customizes a Learner.
type Option func(*Learner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) { l.logger = logger }
}

// WithRand replaces the generator seeded from the configuration.
func WithRand(rng *rand.Rand) Option {
	return func(l *Learner) { l.rng = rng }
}

// NewLearner validates cfg. Configuration errors wrap common.ErrInvalidConfig.
func NewLearner(cfg config.MultiLabel, opts ...Option) (*Learner, error) {
	l := &Learner{}
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
	if cfg.CacheSize > 0 {
		if l.cache, err = lru.New(cfg.CacheSize); err != nil {
			return nil, fmt.Errorf("failed to create coverage cache: %w", err)
		}
	}
	l.cfg = cfg
	l.heuristic = h
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible search
	}
	return l, nil
}

// Config returns the validated configuration.
func (l *Learner) Config() config.MultiLabel { return l.cfg }

// run is the state of one Learn call.
type run struct {
	*Learner
	st       *state
	heads    *headSearch
	distinct map[int][]float64
	seen     map[string]struct{}
}

// Learn covers the labels of data. Rules are learned until every label of every
// instance is predicted, no rule covers a still unpredicted label, or the maximum number
// of rules is reached. The context is checked between covering iterations.
func (l *Learner) Learn(ctx context.Context, data *dataset.Instances) (*Classifier, error) {
	if data.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	labels, err := NewLabels(data, l.cfg.Labels)
	if err != nil {
		return nil, err
	}

	r := &run{Learner: l, st: newState(data, labels), distinct: make(map[int][]float64)}
	if l.cache != nil {
		l.cache.Purge()
	}
	for _, a := range data.Attributes() {
		if a.IsNumeric() && !labels.IsLabel(a.Index()) {
			r.distinct[a.Index()] = data.DistinctValues(a.Index())
		}
	}

	l.logger.Info("learning multi-label rules",
		"relation", data.Relation(),
		"instances", data.Len(),
		"labels", labels.Len(),
		"heuristic", l.heuristic.String(),
		"evaluation", string(l.cfg.Evaluation),
		"bottom_up", l.cfg.BottomUp)

	rs := model.NewRuleSet()
	learned := 0
	for l.cfg.MaxRules == 0 || learned < l.cfg.MaxRules {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if r.st.openWeight() < l.cfg.MinCoverage {
			break
		}
		r.heads = newHeadSearch(r.st, l.heuristic, l.cfg.Evaluation, l.cfg.PredictZero)
		r.seen = make(map[string]struct{})

		var best *Closure
		if l.cfg.BottomUp {
			best = r.findBestRuleBottomUp()
		} else {
			best = r.findBestGlobalRule()
		}
		if best == nil || best.Rule.Stats().TP < l.cfg.MinCoverage {
			l.logger.Debug("no rule covers enough unpredicted labels")
			break
		}

		rs.Add(best.Rule)
		learned++
		r.apply(best)
		l.logger.Debug("rule accepted", "rule", best.Rule.String(), "value", best.Rule.Value(),
			"open", r.st.open.count())

		if !l.cfg.DecisionList && r.skipWorthy(best) {
			rs.Add(model.NewRuleWithBody(model.SkipHead(), best.Rule.Body(), l.rng))
			l.logger.Debug("skip rule added", "body", best.Rule.BodyKey())
		}
	}

	rs.SetDefault(defaultRule(data, labels, l.rng))
	l.logger.Info("learned multi-label rules", "rules", learned, "open", r.st.open.count())
	return NewClassifier(labels, rs, l.cfg.DecisionList), nil
}

// apply marks the head labels of every covered instance as predicted. In decision-list
// mode covered instances are done.
func (r *run) apply(c *Closure) {
	for _, cond := range c.Rule.Head().Conditions() {
		if j, ok := r.st.labels.Position(cond.AttrIndex()); ok {
			r.st.predicted[j] = true
		}
	}
	for _, i := range c.covered {
		if r.cfg.DecisionList {
			r.st.markAll(i)
			continue
		}
		for _, cond := range c.Rule.Head().Conditions() {
			if j, ok := r.st.labels.Position(cond.AttrIndex()); ok {
				r.st.markKnown(i, j)
			}
		}
	}
}

// skipWorthy reports whether the share of covered weight that is fully predicted
// reaches the skip threshold.
func (r *run) skipWorthy(c *Closure) bool {
	var total, done float64
	for _, i := range c.covered {
		w := r.st.data.At(i).Weight()
		total += w
		if !r.st.open.test(i) {
			done += w
		}
	}
	return total > 0 && done/total >= r.cfg.SkipThreshold
}

// evaluate pairs a body with its best head. It returns nil when no head has true
// positives or the body was already evaluated this iteration.
func (r *run) evaluate(body *model.Rule, covered []int) *Closure {
	key := body.BodyKey()
	if _, ok := r.seen[key]; ok {
		return nil
	}
	r.seen[key] = struct{}{}

	res, ok := r.heads.find(body, covered)
	if !ok {
		return nil
	}
	rule := body.WithHead(res.head)
	rule.SetEvaluation(res.stats, res.value)
	return newClosure(rule, covered)
}

// coverage returns the training instances body covers. from must contain all of them.
// Results are memoized per body for the whole run since coverage does not depend on the
// covering state.
func (r *run) coverage(body *model.Rule, from []int) []int {
	if r.cache == nil {
		return coverIndices(body, r.st.data, from)
	}
	key := body.BodyKey()
	if v, ok := r.cache.Get(key); ok {
		return v.([]int)
	}
	covered := coverIndices(body, r.st.data, from)
	r.cache.Add(key, covered)
	return covered
}

// findBestGlobalRule refines the bodies in the beam one condition at a time until a
// round leaves the beam unchanged.
func (r *run) findBestGlobalRule() *Closure {
	beam := NewBeam(r.cfg.BeamWidth)
	all := make([]int, r.st.data.Len())
	for i := range all {
		all[i] = i
	}
	frontier := []*Closure{newClosure(model.NewRule(model.MultiHead(), r.rng), all)}

	for len(frontier) > 0 {
		improved := false
		for _, c := range frontier {
			c.refined = true
			for _, cond := range r.candidates(c) {
				body := c.Rule.Specialize(cond)
				covered := r.coverage(body, c.covered)
				if len(covered) == 0 {
					continue
				}
				if nc := r.evaluate(body, covered); nc != nil && beam.Offer(nc) {
					improved = true
				}
			}
		}
		if !improved {
			break
		}
		frontier = frontier[:0]
		for _, c := range beam.Sorted() {
			if !c.refined {
				frontier = append(frontier, c)
			}
		}
	}
	return beam.Best()
}

// candidates returns the conditions that may be added to a closure's body: equalities
// on unused nominal attributes, both directions of every numeric split and, if enabled,
// equalities on labels some earlier rule predicts. Prediction tests body conditions on
// labels against the labels predicted so far, so a label no earlier rule predicts could
// never satisfy one.
func (r *run) candidates(c *Closure) []model.Condition {
	open := make([]int, 0, len(c.covered))
	for _, i := range c.covered {
		if r.st.open.test(i) {
			open = append(open, i)
		}
	}
	var out []model.Condition
	add := func(cond model.Condition) {
		if !c.HasCondition(cond) {
			out = append(out, cond)
		}
	}
	for _, a := range r.st.data.Attributes() {
		idx := a.Index()
		if idx == r.st.data.ClassIndex() {
			continue
		}
		if j, isLabel := r.st.labels.Position(idx); isLabel {
			if !r.cfg.LabelConditions || !r.st.predicted[j] || c.Uses(idx) {
				continue
			}
			for v := 0; v < a.NumValues(); v++ {
				add(model.NewNominalCondition(a, v, true))
			}
			continue
		}
		if a.IsNominal() {
			if c.Uses(idx) {
				continue
			}
			for v := 0; v < a.NumValues(); v++ {
				add(model.NewNominalCondition(a, v, true))
			}
			continue
		}
		for _, split := range r.splitPoints(idx, open) {
			add(model.NewNumericCondition(a, split, true))
			add(model.NewNumericCondition(a, split, false))
		}
	}
	return out
}

// splitPoints returns the midpoints between consecutive distinct values of a numeric
// attribute over the given instances, except where both neighbouring values hold
// instances with one and the same label vector.
func (r *run) splitPoints(attr int, indices []int) []float64 {
	type group struct {
		value float64
		key   string
		mixed bool
	}
	sorted := make([]int, 0, len(indices))
	for _, i := range indices {
		if !r.st.data.At(i).IsMissing(attr) {
			sorted = append(sorted, i)
		}
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return r.st.data.At(sorted[a]).Value(attr) < r.st.data.At(sorted[b]).Value(attr)
	})

	var groups []group
	for _, i := range sorted {
		inst := r.st.data.At(i)
		v, key := inst.Value(attr), r.st.labels.vectorKey(inst)
		if len(groups) == 0 || groups[len(groups)-1].value != v {
			groups = append(groups, group{value: v, key: key})
			continue
		}
		if g := &groups[len(groups)-1]; g.key != key {
			g.mixed = true
		}
	}

	var splits []float64
	for i := 1; i < len(groups); i++ {
		prev, cur := groups[i-1], groups[i]
		if !prev.mixed && !cur.mixed && prev.key == cur.key {
			continue
		}
		splits = append(splits, (prev.value+cur.value)/2)
	}
	return splits
}

// defaultRule predicts the more frequent value of every label.
func defaultRule(data *dataset.Instances, labels *Labels, rng *rand.Rand) *model.Rule {
	conds := make([]model.Condition, labels.Len())
	for j := range conds {
		var weights [2]float64
		for _, inst := range data.All() {
			if v := labels.Value(inst, j); v >= 0 {
				weights[v] += inst.Weight()
			}
		}
		v := 0
		if weights[1] > weights[0] {
			v = 1
		}
		conds[j] = labels.Condition(j, v)
	}
	return model.NewRule(model.MultiHead(conds...), rng)
}
