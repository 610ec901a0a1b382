package multilabel

import (
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/heuristic"
	"github.com/Veraticus/seco/internal/model"
)

// state tracks which labels of which training instances are already predicted by the
// rules learned so far.
type state struct {
	data      *dataset.Instances
	labels    *Labels
	known     []bitset
	open      bitset
	predicted map[int]bool
}

func newState(data *dataset.Instances, labels *Labels) *state {
	s := &state{
		data:      data,
		labels:    labels,
		known:     make([]bitset, labels.Len()),
		open:      newBitset(data.Len()),
		predicted: make(map[int]bool),
	}
	for j := range s.known {
		s.known[j] = newBitset(data.Len())
	}
	for i := 0; i < data.Len(); i++ {
		s.open.set(i)
	}
	return s
}

func (s *state) isKnown(i, j int) bool { return s.known[j].test(i) }

// markKnown records that label j of instance i is predicted.
func (s *state) markKnown(i, j int) {
	s.known[j].set(i)
	for k := range s.known {
		if !s.known[k].test(i) {
			return
		}
	}
	s.open.clear(i)
}

// markAll records that every label of instance i is predicted.
func (s *state) markAll(i int) {
	for j := range s.known {
		s.known[j].set(i)
	}
	s.open.clear(i)
}

// openIndices returns the instances with at least one unpredicted label.
func (s *state) openIndices() []int {
	out := make([]int, 0, s.open.count())
	for i := 0; i < s.data.Len(); i++ {
		if s.open.test(i) {
			out = append(out, i)
		}
	}
	return out
}

func (s *state) openWeight() float64 {
	var w float64
	for i := 0; i < s.data.Len(); i++ {
		if s.open.test(i) {
			w += s.data.At(i).Weight()
		}
	}
	return w
}

// headResult is the best head found for one body.
type headResult struct {
	head  model.Head
	stats model.ConfusionMatrix
	value float64
}

type labelValue struct {
	j, v int
}

// headSearch finds the best head for a body given the current covering state. Label
// totals over unpredicted instances are computed once per covering iteration.
type headSearch struct {
	st          *state
	h           heuristic.Heuristic
	evaluation  config.Evaluation
	values      []int
	positives   [][2]float64
	unpredicted []float64
}

func newHeadSearch(st *state, h heuristic.Heuristic, evaluation config.Evaluation, predictZero bool) *headSearch {
	hs := &headSearch{
		st:          st,
		h:           h,
		evaluation:  evaluation,
		values:      []int{1},
		positives:   make([][2]float64, st.labels.Len()),
		unpredicted: make([]float64, st.labels.Len()),
	}
	if predictZero {
		hs.values = []int{1, 0}
	}
	for i := 0; i < st.data.Len(); i++ {
		inst := st.data.At(i)
		for j := 0; j < st.labels.Len(); j++ {
			if st.isKnown(i, j) {
				continue
			}
			hs.unpredicted[j] += inst.Weight()
			if v := st.labels.Value(inst, j); v >= 0 {
				hs.positives[j][v] += inst.Weight()
			}
		}
	}
	return hs
}

// find returns the best head for a body. Labels the body tests are excluded.
func (hs *headSearch) find(body *model.Rule, covered []int) (headResult, bool) {
	var avail []int
	for j := 0; j < hs.st.labels.Len(); j++ {
		if !body.UsesAttribute(hs.st.labels.Attr(j).Index()) {
			avail = append(avail, j)
		}
	}
	if hs.evaluation == config.EvaluationAntiMonotonic {
		return hs.prunedSearch(covered, avail)
	}
	return hs.decomposable(covered, avail)
}

// labelStats evaluates the single head condition label j = v in isolation. Instances
// whose label j is already predicted do not count.
func (hs *headSearch) labelStats(covered []int, j, v int) model.ConfusionMatrix {
	var tp, cover float64
	for _, i := range covered {
		if hs.st.isKnown(i, j) {
			continue
		}
		inst := hs.st.data.At(i)
		cover += inst.Weight()
		if hs.st.labels.Value(inst, j) == v {
			tp += inst.Weight()
		}
	}
	fp := cover - tp
	return model.ConfusionMatrix{
		TP: tp,
		FP: fp,
		FN: hs.positives[j][v] - tp,
		TN: hs.unpredicted[j] - hs.positives[j][v] - fp,
	}
}

// decomposable picks the best label condition and merges every other label whose
// independent score ties with it into the head.
func (hs *headSearch) decomposable(covered []int, avail []int) (headResult, bool) {
	type scored struct {
		labelValue
		stats model.ConfusionMatrix
		value float64
	}
	var per []scored
	for _, j := range avail {
		var best *scored
		for _, v := range hs.values {
			cm := hs.labelStats(covered, j, v)
			if cm.TP <= 0 {
				continue
			}
			if val := hs.h.Evaluate(cm); best == nil || val > best.value {
				best = &scored{labelValue: labelValue{j, v}, stats: cm, value: val}
			}
		}
		if best != nil {
			per = append(per, *best)
		}
	}
	if len(per) == 0 {
		return headResult{}, false
	}

	top := per[0].value
	for _, s := range per[1:] {
		if s.value > top {
			top = s.value
		}
	}
	var conds []model.Condition
	var stats model.ConfusionMatrix
	for _, s := range per {
		if s.value == top {
			conds = append(conds, hs.st.labels.Condition(s.j, s.v))
			stats.Add(s.stats)
		}
	}
	return headResult{head: model.MultiHead(conds...), stats: stats, value: top}, true
}

// jointStats evaluates a head example-based: an instance counts as correct only if every
// head label is. Instances whose head labels are all predicted already do not count.
func (hs *headSearch) jointStats(covered bitset, head []labelValue) model.ConfusionMatrix {
	var cm model.ConfusionMatrix
	for i := 0; i < hs.st.data.Len(); i++ {
		inst := hs.st.data.At(i)
		relevant, correct := false, true
		for _, lv := range head {
			if !hs.st.isKnown(i, lv.j) {
				relevant = true
			}
			if hs.st.labels.Value(inst, lv.j) != lv.v {
				correct = false
			}
		}
		if relevant {
			cm.Record(covered.test(i), correct, inst.Weight())
		}
	}
	return cm
}

// prunedSearch explores label subsets in canonical order. A head without true positives
// is recorded and its supersets are never evaluated; a head scoring below the best found
// is not extended. Ties prefer the larger head.
func (hs *headSearch) prunedSearch(covered []int, avail []int) (headResult, bool) {
	mask := newBitset(hs.st.data.Len())
	for _, i := range covered {
		mask.set(i)
	}

	var (
		best   headResult
		found  bool
		pruned []model.Head
	)
	var search func(head []labelValue, start int)
	search = func(head []labelValue, start int) {
		for idx := start; idx < len(avail); idx++ {
			for _, v := range hs.values {
				next := append(head[:len(head):len(head)], labelValue{avail[idx], v})
				h := hs.toHead(next)
				if supersetOfAny(h, pruned) {
					continue
				}
				cm := hs.jointStats(mask, next)
				if cm.TP <= 0 {
					pruned = append(pruned, h)
					continue
				}
				val := hs.h.Evaluate(cm)
				if !found || val > best.value || (val == best.value && h.Len() > best.head.Len()) {
					best, found = headResult{head: h, stats: cm, value: val}, true
				}
				if val < best.value {
					continue
				}
				search(next, idx+1)
			}
		}
	}
	search(nil, 0)
	return best, found
}

func (hs *headSearch) toHead(lvs []labelValue) model.Head {
	conds := make([]model.Condition, len(lvs))
	for i, lv := range lvs {
		conds[i] = hs.st.labels.Condition(lv.j, lv.v)
	}
	return model.MultiHead(conds...)
}

func supersetOfAny(h model.Head, heads []model.Head) bool {
	for _, p := range heads {
		if h.IsSupersetOf(p) {
			return true
		}
	}
	return false
}
