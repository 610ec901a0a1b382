package model

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/Veraticus/seco/internal/dataset"
)

// Parent is an immutable snapshot of the rule a specialization was derived from. Gain
// heuristics read it; it never owns or keeps the parent rule alive.
type Parent struct {
	Stats  ConfusionMatrix
	Value  float64
	Length int
}

// tieBreaker is a value drawn once, on first read, from the run's generator.
type tieBreaker struct {
	rng   *rand.Rand
	value float64
	set   bool
}

func (t *tieBreaker) get() float64 {
	if !t.set {
		if t.rng != nil {
			t.value = t.rng.Float64()
		}
		t.set = true
	}
	return t.value
}

// Rule is a conjunction of body conditions implying a head.
//
// Rules are copy-on-specialize: once a rule has been handed to a search structure its
// conditions never change. Evaluation results are cached on the rule.
type Rule struct {
	parent          *Parent
	tie             *tieBreaker
	head            Head
	body            []Condition
	stats           ConfusionMatrix
	value           float64
	generalizations int
	evaluated       bool
}

// NewRule returns an empty-body rule predicting head. rng feeds the tie-breaker and is
// shared by every rule derived from this one.
func NewRule(head Head, rng *rand.Rand) *Rule {
	return &Rule{head: head, value: math.NaN(), tie: &tieBreaker{rng: rng}}
}

// NewRuleWithBody returns a rule with the given body conditions.
func NewRuleWithBody(head Head, body []Condition, rng *rand.Rand) *Rule {
	r := NewRule(head, rng)
	r.body = append(r.body, body...)
	return r
}

// Head returns the rule head.
func (r *Rule) Head() Head { return r.head }

// Body returns a copy of the body conditions.
func (r *Rule) Body() []Condition {
	out := make([]Condition, len(r.body))
	copy(out, r.body)
	return out
}

// Length returns the number of body conditions.
func (r *Rule) Length() int { return len(r.body) }

// Condition returns body condition i.
func (r *Rule) Condition(i int) Condition { return r.body[i] }

// IsEmpty reports whether the body is empty, i.e. the rule covers everything.
func (r *Rule) IsEmpty() bool { return len(r.body) == 0 }

// UsesAttribute reports whether any body condition tests attr.
func (r *Rule) UsesAttribute(attr int) bool {
	for _, c := range r.body {
		if c.AttrIndex() == attr {
			return true
		}
	}
	return false
}

// HasCondition reports whether the body contains c.
func (r *Rule) HasCondition(c Condition) bool {
	for _, b := range r.body {
		if b.Equal(c) {
			return true
		}
	}
	return false
}

// Covers reports whether the instance satisfies every body condition.
func (r *Rule) Covers(inst *dataset.Instance) bool {
	for _, c := range r.body {
		if !c.Covers(inst) {
			return false
		}
	}
	return true
}

// CoveredInstances returns the instances of data the rule covers.
func (r *Rule) CoveredInstances(data *dataset.Instances) *dataset.Instances {
	return data.Filter(r.Covers)
}

// UncoveredInstances returns the instances of data the rule does not cover.
func (r *Rule) UncoveredInstances(data *dataset.Instances) *dataset.Instances {
	return data.Filter(func(inst *dataset.Instance) bool { return !r.Covers(inst) })
}

// Stats returns the cached confusion matrix.
func (r *Rule) Stats() ConfusionMatrix { return r.stats }

// Value returns the cached heuristic value, NaN until evaluated.
func (r *Rule) Value() float64 { return r.value }

// IsEvaluated reports whether an evaluation has been recorded.
func (r *Rule) IsEvaluated() bool { return r.evaluated }

// SetEvaluation records the confusion matrix and heuristic value of the rule.
func (r *Rule) SetEvaluation(stats ConfusionMatrix, value float64) {
	r.stats = stats
	r.value = value
	r.evaluated = true
}

// Parent returns the snapshot of the rule this one was derived from, if any.
func (r *Rule) Parent() *Parent { return r.parent }

// Generalizations returns how often a condition of this rule was widened or dropped.
func (r *Rule) Generalizations() int { return r.generalizations }

// TieBreaker returns the rule's random tie-breaker. The value is drawn on first read and
// frozen afterwards.
func (r *Rule) TieBreaker() float64 {
	if r.tie == nil {
		return 0
	}
	return r.tie.get()
}

func (r *Rule) snapshot() *Parent {
	return &Parent{Stats: r.stats, Value: r.value, Length: len(r.body)}
}

func (r *Rule) derive() *Rule {
	var rng *rand.Rand
	if r.tie != nil {
		rng = r.tie.rng
	}
	return &Rule{
		head:            r.head,
		body:            make([]Condition, 0, len(r.body)+1),
		value:           math.NaN(),
		tie:             &tieBreaker{rng: rng},
		parent:          r.parent,
		generalizations: r.generalizations,
	}
}

// Clone returns an independent copy with the same evaluation and tie-breaker.
func (r *Rule) Clone() *Rule {
	c := r.derive()
	c.body = append(c.body, r.body...)
	c.stats, c.value, c.evaluated = r.stats, r.value, r.evaluated
	if r.tie != nil {
		t := *r.tie
		c.tie = &t
	}
	return c
}

// Specialize returns a new, unevaluated rule with c appended to the body and this rule
// as its parent.
func (r *Rule) Specialize(c Condition) *Rule {
	s := r.derive()
	s.body = append(s.body, r.body...)
	s.body = append(s.body, c)
	s.parent = r.snapshot()
	return s
}

// Generalize returns a new rule in which body condition i is replaced by widened, or
// dropped when widened is nil. The generalization counter is incremented.
func (r *Rule) Generalize(i int, widened *Condition) *Rule {
	g := r.derive()
	for k, c := range r.body {
		if k == i {
			if widened != nil {
				g.body = append(g.body, *widened)
			}
			continue
		}
		g.body = append(g.body, c)
	}
	g.parent = r.snapshot()
	g.generalizations++
	return g
}

// WithoutCondition returns a new rule with body condition i removed.
func (r *Rule) WithoutCondition(i int) *Rule {
	w := r.derive()
	w.body = append(w.body, r.body[:i]...)
	w.body = append(w.body, r.body[i+1:]...)
	return w
}

// Truncate returns a new rule with only the first n body conditions.
func (r *Rule) Truncate(n int) *Rule {
	if n > len(r.body) {
		n = len(r.body)
	}
	t := r.derive()
	t.body = append(t.body, r.body[:n]...)
	return t
}

// WithHead returns a new, unevaluated rule with the same body and another head.
func (r *Rule) WithHead(h Head) *Rule {
	w := r.derive()
	w.body = append(w.body, r.body...)
	w.head = h
	return w
}

// Virtual returns a view of the rule carrying a hypothetical evaluation. It shares the
// rule's tie-breaker so that comparisons against it behave like the rule itself.
func (r *Rule) Virtual(stats ConfusionMatrix, value float64) *Rule {
	v := *r
	v.stats, v.value, v.evaluated = stats, value, true
	return &v
}

// Compare orders rules by heuristic value, then true positives, then generalization
// count, then tie-breaker. It returns a positive number when r is the better rule.
func (r *Rule) Compare(o *Rule) int {
	if c := compareFloat(r.value, o.value); c != 0 {
		return c
	}
	if c := compareFloat(r.stats.TP, o.stats.TP); c != 0 {
		return c
	}
	if r.generalizations != o.generalizations {
		if r.generalizations > o.generalizations {
			return 1
		}
		return -1
	}
	if r == o || r.tie == o.tie {
		return 0
	}
	return compareFloat(r.TieBreaker(), o.TieBreaker())
}

// Better returns the better of two rules; nil rules lose.
func Better(a, b *Rule) *Rule {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Compare(a) > 0:
		return b
	default:
		return a
	}
}

// compareFloat orders NaN below every number.
func compareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Key returns a canonical structural key: the sorted body plus the head. Rules with
// equal keys cover and predict the same instances.
func (r *Rule) Key() string {
	conds := r.Body()
	sort.Slice(conds, func(i, j int) bool { return conds[i].Compare(conds[j]) < 0 })
	var b strings.Builder
	for _, c := range conds {
		b.WriteString(c.key())
		b.WriteByte('&')
	}
	b.WriteString("=>")
	b.WriteString(r.head.key())
	return b.String()
}

// BodyKey is Key without the head.
func (r *Rule) BodyKey() string {
	conds := r.Body()
	sort.Slice(conds, func(i, j int) bool { return conds[i].Compare(conds[j]) < 0 })
	var b strings.Builder
	for _, c := range conds {
		b.WriteString(c.key())
		b.WriteByte('&')
	}
	return b.String()
}

// Equal reports structural equality of body (as a set) and head.
func (r *Rule) Equal(o *Rule) bool {
	return r.Key() == o.Key()
}

func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString(r.head.String())
	b.WriteString(" :- ")
	if len(r.body) == 0 {
		b.WriteString("true")
	}
	for i, c := range r.body {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte('.')
	return b.String()
}
