package multilabel

import (
	"sort"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// findBestRuleBottomUp seeds the beam with the most specific bodies of open instances
// and generalizes them until a round leaves the beam unchanged. A generalization drops a
// nominal condition or widens a numeric threshold by NStep distinct values, dropping it
// once no value is left.
func (r *run) findBestRuleBottomUp() *Closure {
	open := r.st.openIndices()
	if len(open) == 0 {
		return nil
	}
	if r.cfg.Randomize {
		r.rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })
	}
	all := make([]int, r.st.data.Len())
	for i := range all {
		all[i] = i
	}

	beam := NewBeam(r.cfg.BeamWidth)
	for _, i := range open[:min(r.cfg.BeamWidth, len(open))] {
		body := r.bottomBody(r.st.data.At(i))
		if c := r.evaluate(body, r.coverage(body, all)); c != nil {
			beam.Offer(c)
		}
	}

	for {
		improved := false
		for _, c := range beam.Sorted() {
			if c.refined {
				continue
			}
			c.refined = true
			for _, g := range r.generalizations(c.Rule) {
				if nc := r.evaluate(g, r.coverage(g, all)); nc != nil && beam.Offer(nc) {
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return beam.Best()
}

// bottomBody returns the body fixing every defined attribute value of inst except the
// labels.
func (r *run) bottomBody(inst *dataset.Instance) *model.Rule {
	var body []model.Condition
	for _, a := range r.st.data.Attributes() {
		idx := a.Index()
		if idx == r.st.data.ClassIndex() || r.st.labels.IsLabel(idx) || inst.IsMissing(idx) {
			continue
		}
		v := inst.Value(idx)
		if a.IsNominal() {
			body = append(body, model.NewNominalCondition(a, int(v), true))
			continue
		}
		body = append(body,
			model.NewNumericCondition(a, v, true),
			model.NewNumericCondition(a, v, false))
	}
	return model.NewRuleWithBody(model.MultiHead(), body, r.rng)
}

// generalizations returns one generalization per body condition, in random order when
// configured.
func (r *run) generalizations(rule *model.Rule) []*model.Rule {
	order := make([]int, rule.Length())
	for i := range order {
		order[i] = i
	}
	if r.cfg.Randomize {
		r.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	out := make([]*model.Rule, 0, len(order))
	for _, i := range order {
		out = append(out, rule.Generalize(i, r.widen(rule.Condition(i))))
	}
	return out
}

// widen moves a numeric threshold NStep distinct values outwards. It returns nil for
// nominal conditions and when the attribute has no such value.
func (r *run) widen(c model.Condition) *model.Condition {
	if c.IsNominal() {
		return nil
	}
	values := r.distinct[c.AttrIndex()]
	step := r.cfg.NStep
	if c.Polarity {
		k := sort.Search(len(values), func(i int) bool { return values[i] > c.Value }) + step - 1
		if k >= len(values) {
			return nil
		}
		w := model.NewNumericCondition(c.Attr, values[k], true)
		return &w
	}
	k := sort.Search(len(values), func(i int) bool { return values[i] >= c.Value }) - step
	if k < 0 {
		return nil
	}
	w := model.NewNumericCondition(c.Attr, values[k], false)
	return &w
}
