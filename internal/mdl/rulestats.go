package mdl

import (
	"math"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// RuleStats tracks the coverage statistics of an ordered rule list over a dataset.
//
// Rule i is evaluated only on the instances left uncovered by rules 0..i-1, so the
// statistics of different rules never count the same instance twice.
type RuleStats struct {
	data      *dataset.Instances
	rules     []*model.Rule
	stats     []model.ConfusionMatrix
	uncovered []*dataset.Instances
	total     float64
}

// NewRuleStats returns statistics for rules over data. Call CountData or
// CountDataFrom before querying per-rule statistics.
func NewRuleStats(data *dataset.Instances, rules []*model.Rule, numAllConditions float64) *RuleStats {
	rs := make([]*model.Rule, len(rules))
	copy(rs, rules)
	return &RuleStats{data: data, rules: rs, total: numAllConditions}
}

// Data returns the dataset the statistics are computed over.
func (s *RuleStats) Data() *dataset.Instances { return s.data }

// Rules returns a copy of the tracked rules.
func (s *RuleStats) Rules() []*model.Rule {
	out := make([]*model.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of tracked rules.
func (s *RuleStats) Len() int { return len(s.rules) }

// NumAllConditions returns the number of possible conditions used by TheoryDL.
func (s *RuleStats) NumAllConditions() float64 { return s.total }

// Stats returns the statistics of rule i.
func (s *RuleStats) Stats(i int) model.ConfusionMatrix { return s.stats[i] }

// AllStats returns a copy of the statistics of every counted rule.
func (s *RuleStats) AllStats() []model.ConfusionMatrix {
	out := make([]model.ConfusionMatrix, len(s.stats))
	copy(out, s.stats)
	return out
}

// Uncovered returns the instances covered by none of the rules 0..i.
func (s *RuleStats) Uncovered(i int) *dataset.Instances { return s.uncovered[i] }

// CountData recomputes the statistics of every rule.
func (s *RuleStats) CountData() {
	s.CountDataFrom(0, s.data, nil)
}

// CountDataFrom recomputes the statistics of rules index and later, starting from the
// instances left uncovered by the first index rules. prev holds the statistics of those
// first index rules.
func (s *RuleStats) CountDataFrom(index int, uncovered *dataset.Instances, prev []model.ConfusionMatrix) {
	s.stats = make([]model.ConfusionMatrix, 0, len(s.rules))
	s.uncovered = make([]*dataset.Instances, 0, len(s.rules))
	for i := 0; i < index; i++ {
		s.stats = append(s.stats, prev[i])
		if i == index-1 {
			s.uncovered = append(s.uncovered, uncovered)
		} else {
			s.uncovered = append(s.uncovered, nil)
		}
	}
	data := uncovered
	for j := index; j < len(s.rules); j++ {
		st, rest := simpleStats(s.rules[j], data)
		s.stats = append(s.stats, st)
		s.uncovered = append(s.uncovered, rest)
		data = rest
	}
}

// AddAndUpdate appends a rule and computes its statistics on the remaining instances.
func (s *RuleStats) AddAndUpdate(r *model.Rule) {
	data := s.data
	if n := len(s.uncovered); n > 0 {
		data = s.uncovered[n-1]
	}
	s.rules = append(s.rules, r)
	st, rest := simpleStats(r, data)
	s.stats = append(s.stats, st)
	s.uncovered = append(s.uncovered, rest)
}

// RemoveLast drops the last rule and its statistics.
func (s *RuleStats) RemoveLast() {
	if len(s.rules) == 0 {
		return
	}
	s.rules = s.rules[:len(s.rules)-1]
	if len(s.stats) > len(s.rules) {
		s.stats = s.stats[:len(s.rules)]
		s.uncovered = s.uncovered[:len(s.rules)]
	}
}

// TheoryDL returns the theory description length of rule i.
func (s *RuleStats) TheoryDL(i int) float64 {
	return TheoryDL(s.rules[i].Length(), s.total)
}

// totals aggregates the statistics of every rule: covered weights add up and uncovered
// weights are those left by the last rule.
func (s *RuleStats) totals() model.ConfusionMatrix {
	var t model.ConfusionMatrix
	for j, st := range s.stats {
		t.TP += st.TP
		t.FP += st.FP
		if j == len(s.stats)-1 {
			t.TN, t.FN = st.TN, st.FN
		}
	}
	return t
}

// Potential returns how many bits deleting rule i would save given the statistics of
// the whole rule set. When deletion does not lose bits, or when checkErr is set and the
// rule's error rate is at least one half, ruleset is updated as if the rule were deleted
// and the saving is returned. Otherwise NaN is returned and ruleset is untouched.
func (s *RuleStats) Potential(i int, expFPOverErr float64, ruleset *model.ConfusionMatrix, rule model.ConfusionMatrix, checkErr bool) float64 {
	without := model.ConfusionMatrix{
		TP: ruleset.TP - rule.TP,
		FP: ruleset.FP - rule.FP,
		TN: ruleset.TN + rule.FP,
		FN: ruleset.FN + rule.TP,
	}
	dataWith := StatsDL(expFPOverErr, *ruleset)
	dataWithout := StatsDL(expFPOverErr, without)
	potential := dataWith + s.TheoryDL(i) - dataWithout

	overErr := checkErr && rule.ErrorRate() >= 0.5
	if potential >= 0 || overErr {
		*ruleset = without
		return potential
	}
	return math.NaN()
}

// MinDataDLIfDeleted returns the smallest data description length reachable when rule
// index is deleted and every later rule is deleted wherever that saves bits.
func (s *RuleStats) MinDataDLIfDeleted(index int, expFPOverErr float64, checkErr bool) float64 {
	var ruleset model.ConfusionMatrix
	for j := 0; j < index; j++ {
		ruleset.TP += s.stats[j].TP
		ruleset.FP += s.stats[j].FP
	}

	data := s.data
	if index > 0 {
		data = s.uncovered[index-1]
	}
	later := make([]model.ConfusionMatrix, 0, len(s.rules)-index-1)
	for j := index + 1; j < len(s.rules); j++ {
		st, rest := simpleStats(s.rules[j], data)
		later = append(later, st)
		ruleset.TP += st.TP
		ruleset.FP += st.FP
		data = rest
	}

	switch {
	case len(later) > 0:
		last := later[len(later)-1]
		ruleset.TN, ruleset.FN = last.TN, last.FN
	case index > 0:
		prev := s.stats[index-1]
		ruleset.TN, ruleset.FN = prev.TN, prev.FN
	default:
		first := s.stats[0]
		ruleset.TN = first.TN + first.FP
		ruleset.FN = first.FN + first.TP
	}

	var potential float64
	for k := index + 1; k < len(s.rules); k++ {
		if p := s.Potential(k, expFPOverErr, &ruleset, later[k-index-1], checkErr); !math.IsNaN(p) {
			potential += p
		}
	}
	return StatsDL(expFPOverErr, ruleset) - potential
}

// MinDataDLIfExists returns the smallest data description length reachable when rule
// index is kept and every later rule is deleted wherever that saves bits.
func (s *RuleStats) MinDataDLIfExists(index int, expFPOverErr float64, checkErr bool) float64 {
	ruleset := s.totals()
	var potential float64
	for k := index + 1; k < len(s.stats); k++ {
		if p := s.Potential(k, expFPOverErr, &ruleset, s.stats[k], checkErr); !math.IsNaN(p) {
			potential += p
		}
	}
	return StatsDL(expFPOverErr, ruleset) - potential
}

// RelativeDL returns the description length rule index adds to the rule set: its theory
// length plus the data length with it, minus the data length without it.
func (s *RuleStats) RelativeDL(index int, expFPOverErr float64, checkErr bool) float64 {
	return s.MinDataDLIfExists(index, expFPOverErr, checkErr) +
		s.TheoryDL(index) -
		s.MinDataDLIfDeleted(index, expFPOverErr, checkErr)
}

// ReduceDL scans the rules from last to first and deletes every rule whose deletion does
// not increase the description length. Statistics are recounted afterwards when a rule
// other than the last one was deleted.
func (s *RuleStats) ReduceDL(expFPOverErr float64, checkErr bool) {
	ruleset := s.totals()
	recount := false
	for k := len(s.stats) - 1; k >= 0; k-- {
		if p := s.Potential(k, expFPOverErr, &ruleset, s.stats[k], checkErr); math.IsNaN(p) {
			continue
		}
		if k == len(s.stats)-1 {
			s.RemoveLast()
			continue
		}
		s.rules = append(s.rules[:k:k], s.rules[k+1:]...)
		recount = true
	}
	if recount {
		s.CountData()
	}
}

// CombinedDL returns the data length plus the theory length of the whole rule set.
// classValue is the class predicted by the rules; it is needed for an empty rule set.
func (s *RuleStats) CombinedDL(expFPOverErr, classValue float64) float64 {
	var dl float64
	if len(s.stats) > 0 {
		dl = StatsDL(expFPOverErr, s.totals())
	} else {
		dl = DefaultDL(expFPOverErr, s.data.SumOfWeights(), s.data.CountClass(classValue))
	}
	for i := range s.rules {
		dl += s.TheoryDL(i)
	}
	return dl
}

// RemoveCoveredBySuccessors returns the instances of data that none of the rules after
// position index cover.
func RemoveCoveredBySuccessors(data *dataset.Instances, rules []*model.Rule, index int) *dataset.Instances {
	return data.Filter(func(inst *dataset.Instance) bool {
		for _, r := range rules[index+1:] {
			if r.Covers(inst) {
				return false
			}
		}
		return true
	})
}

// simpleStats evaluates a rule on data and splits off the instances it does not cover.
// An instance counts as positive when its class equals the class the rule predicts.
func simpleStats(r *model.Rule, data *dataset.Instances) (model.ConfusionMatrix, *dataset.Instances) {
	predicted := math.NaN()
	if c, ok := r.Head().Single(); ok {
		predicted = c.Value
	}
	covered, rest := data.Partition(r.Covers)

	var st model.ConfusionMatrix
	for _, inst := range covered.All() {
		st.Record(true, isClass(inst, predicted), inst.Weight())
	}
	for _, inst := range rest.All() {
		st.Record(false, isClass(inst, predicted), inst.Weight())
	}
	return st, rest
}

func isClass(inst *dataset.Instance, v float64) bool {
	cls, ok, err := inst.ClassValue()
	return err == nil && ok && cls == v
}
