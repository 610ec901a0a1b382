package seco

import (
	"math/rand"
	"sort"

	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Selector chooses the candidates that are refined in one search round. Candidates are
// passed best first.
type Selector interface {
	Select(candidates []*model.Rule) []*model.Rule
}

// SelectAll refines every live candidate.
type SelectAll struct{}

// Select implements Selector.
func (SelectAll) Select(candidates []*model.Rule) []*model.Rule { return candidates }

// SelectBestN refines only the N best candidates.
type SelectBestN struct {
	N int
}

// Select implements Selector.
func (s SelectBestN) Select(candidates []*model.Rule) []*model.Rule {
	if len(candidates) <= s.N {
		return candidates
	}
	return candidates[:s.N]
}

// Filter bounds the live candidates after a search round. Candidates are passed best
// first; the result must be a prefix of them.
type Filter interface {
	Filter(candidates []*model.Rule) []*model.Rule
}

// BeamFilter keeps the Width best candidates.
type BeamFilter struct {
	Width int
}

// Filter implements Filter.
func (f BeamFilter) Filter(candidates []*model.Rule) []*model.Rule {
	if len(candidates) <= f.Width {
		return candidates
	}
	return candidates[:f.Width]
}

// NoFilter keeps every candidate.
type NoFilter struct{}

// Filter implements Filter.
func (NoFilter) Filter(candidates []*model.Rule) []*model.Rule { return candidates }

// Problem is one binary learning task: find rules predicting Target over Data.
type Problem struct {
	Data   *dataset.Instances
	Class  *dataset.Attribute
	Target float64
}

// Head returns the rule head predicting the target class.
func (p Problem) Head() model.Head {
	return model.SingleHead(model.NewNominalCondition(p.Class, int(p.Target), true))
}

// IsPositive reports whether the instance belongs to the target class.
func (p Problem) IsPositive(inst *dataset.Instance) bool {
	cls, ok, err := inst.ClassValue()
	return err == nil && ok && cls == p.Target
}

// Initializer creates the seed rules of a search.
type Initializer interface {
	Initialize(p Problem, rng *rand.Rand) []*model.Rule
}

// TopDownInitializer seeds the search with the empty rule.
type TopDownInitializer struct{}

// Initialize implements Initializer.
func (TopDownInitializer) Initialize(p Problem, rng *rand.Rand) []*model.Rule {
	return []*model.Rule{model.NewRule(p.Head(), rng)}
}

// BottomInitializer seeds the search with the most specific rule covering one randomly
// chosen positive instance. Without positives it falls back to the empty rule.
type BottomInitializer struct{}

// Initialize implements Initializer.
func (BottomInitializer) Initialize(p Problem, rng *rand.Rand) []*model.Rule {
	positives := p.Data.Filter(p.IsPositive)
	if positives.Len() == 0 {
		return TopDownInitializer{}.Initialize(p, rng)
	}
	seed := positives.At(rng.Intn(positives.Len()))
	return []*model.Rule{BottomRule(p, seed, rng)}
}

// BottomRule returns the rule whose body fixes every non-missing, non-class value of inst.
func BottomRule(p Problem, inst *dataset.Instance, rng *rand.Rand) *model.Rule {
	var body []model.Condition
	for _, a := range p.Data.Attributes() {
		if a.Index() == p.Data.ClassIndex() || inst.IsMissing(a.Index()) {
			continue
		}
		v := inst.Value(a.Index())
		if a.IsNominal() {
			body = append(body, model.NewNominalCondition(a, int(v), true))
			continue
		}
		body = append(body,
			model.NewNumericCondition(a, v, true),
			model.NewNumericCondition(a, v, false))
	}
	return model.NewRuleWithBody(p.Head(), body, rng)
}

// Refiner generates the refinements of a rule. covered holds the instances the rule
// covers.
type Refiner interface {
	Refine(r *model.Rule, covered *dataset.Instances, p Problem) []*model.Rule
	// Specializes reports whether every refinement covers a subset of what its parent
	// covers.
	Specializes() bool
}

// TopDownRefiner adds one condition per refinement: one equality per value of every
// unused nominal attribute, optionally one inequality too, and both polarities of every
// class-boundary split point of each numeric attribute.
type TopDownRefiner struct {
	NominalInequality bool
}

// Specializes implements Refiner.
func (TopDownRefiner) Specializes() bool { return true }

// Refine implements Refiner.
func (t TopDownRefiner) Refine(r *model.Rule, covered *dataset.Instances, p Problem) []*model.Rule {
	var out []*model.Rule
	add := func(c model.Condition) {
		if !r.HasCondition(c) {
			out = append(out, r.Specialize(c))
		}
	}
	for _, a := range covered.Attributes() {
		if a.Index() == covered.ClassIndex() {
			continue
		}
		if a.IsNominal() {
			if r.UsesAttribute(a.Index()) {
				continue
			}
			for v := 0; v < a.NumValues(); v++ {
				add(model.NewNominalCondition(a, v, true))
				if t.NominalInequality {
					add(model.NewNominalCondition(a, v, false))
				}
			}
			continue
		}
		for _, split := range SplitPoints(covered, a.Index(), p.IsPositive) {
			add(model.NewNumericCondition(a, split, true))
			add(model.NewNumericCondition(a, split, false))
		}
	}
	return out
}

// BottomUpRefiner drops one body condition per refinement.
type BottomUpRefiner struct{}

// Specializes implements Refiner.
func (BottomUpRefiner) Specializes() bool { return false }

// Refine implements Refiner.
func (BottomUpRefiner) Refine(r *model.Rule, _ *dataset.Instances, _ Problem) []*model.Rule {
	out := make([]*model.Rule, 0, r.Length())
	for i := 0; i < r.Length(); i++ {
		out = append(out, r.Generalize(i, nil))
	}
	return out
}

// SplitPoints returns the midpoints between consecutive distinct values of a numeric
// attribute at which the class changes. Two neighbouring values are separated unless
// both hold only positives or both hold only negatives.
func SplitPoints(data *dataset.Instances, attr int, positive func(*dataset.Instance) bool) []float64 {
	type group struct {
		value    float64
		pos, neg bool
	}
	insts := data.Filter(func(inst *dataset.Instance) bool { return !inst.IsMissing(attr) }).All()
	sorted := make([]*dataset.Instance, len(insts))
	copy(sorted, insts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value(attr) < sorted[j].Value(attr) })

	var groups []group
	for _, inst := range sorted {
		v := inst.Value(attr)
		if len(groups) == 0 || groups[len(groups)-1].value != v {
			groups = append(groups, group{value: v})
		}
		g := &groups[len(groups)-1]
		if positive(inst) {
			g.pos = true
		} else {
			g.neg = true
		}
	}

	var splits []float64
	for i := 1; i < len(groups); i++ {
		prev, cur := groups[i-1], groups[i]
		pure := prev.pos != prev.neg && cur.pos != cur.neg
		if pure && prev.pos == cur.pos {
			continue
		}
		splits = append(splits, (prev.value+cur.value)/2)
	}
	return splits
}

// RuleStop decides whether an evaluated candidate is refined no further.
type RuleStop interface {
	Stop(r *model.Rule) bool
}

// CoverageRuleStop never stops beyond the learner's minimum coverage test.
type CoverageRuleStop struct{}

// Stop implements RuleStop.
func (CoverageRuleStop) Stop(*model.Rule) bool { return false }

// NoNegativesRuleStop stops refining rules that cover no negatives.
type NoNegativesRuleStop struct{}

// Stop implements RuleStop.
func (NoNegativesRuleStop) Stop(r *model.Rule) bool { return r.Stats().FP == 0 }

// TheoryStop decides whether a learned rule is rejected, which ends learning for a class.
type TheoryStop interface {
	Stop(r *model.Rule) bool
}

// CoverageTheoryStop rejects rules covering fewer than MinCoverage positives.
type CoverageTheoryStop struct {
	MinCoverage float64
}

// Stop implements TheoryStop.
func (s CoverageTheoryStop) Stop(r *model.Rule) bool { return r.Stats().TP < s.MinCoverage }

// PrecisionTheoryStop rejects rules whose precision is below Threshold.
type PrecisionTheoryStop struct {
	Threshold float64
}

// Stop implements TheoryStop.
func (s PrecisionTheoryStop) Stop(r *model.Rule) bool {
	return r.Stats().TP <= 0 || r.Stats().Precision() < s.Threshold
}

// NoPositivesTheoryStop rejects rules that cover no positives.
type NoPositivesTheoryStop struct{}

// Stop implements TheoryStop.
func (NoPositivesTheoryStop) Stop(r *model.Rule) bool { return r.Stats().TP <= 0 }

func newSelector(cfg config.Learner) Selector {
	if cfg.Selector == config.SelectorBestN {
		return SelectBestN{N: cfg.SelectorN}
	}
	return SelectAll{}
}

func newFilter(cfg config.Learner) Filter {
	if cfg.Filter == config.FilterNone {
		return NoFilter{}
	}
	return BeamFilter{Width: cfg.BeamWidth}
}

func newInitializer(cfg config.Learner) Initializer {
	if cfg.Initializer == config.InitializerBottom {
		return BottomInitializer{}
	}
	return TopDownInitializer{}
}

func newRefiner(cfg config.Learner) Refiner {
	if cfg.Refiner == config.RefinerBottomUp {
		return BottomUpRefiner{}
	}
	return TopDownRefiner{NominalInequality: cfg.NominalInequality}
}

func newRuleStop(cfg config.Learner) RuleStop {
	if cfg.RuleStop == config.RuleStopNoNegatives {
		return NoNegativesRuleStop{}
	}
	return CoverageRuleStop{}
}

func newTheoryStop(cfg config.Learner) TheoryStop {
	switch cfg.TheoryStop {
	case config.TheoryStopCoverage:
		return CoverageTheoryStop{MinCoverage: cfg.MinCoverage}
	case config.TheoryStopPrecision:
		return PrecisionTheoryStop{Threshold: cfg.StopThreshold}
	default:
		return NoPositivesTheoryStop{}
	}
}
