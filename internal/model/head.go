package model

import (
	"sort"
	"strings"
)

// HeadKind tags the variants of a rule head.
type HeadKind int

// Head kinds.
const (
	// HeadNormal heads predict the values of their conditions.
	HeadNormal HeadKind = iota
	// HeadSkip heads predict nothing and end the scan of a rule set for the instances
	// their rule covers.
	HeadSkip
)

func (k HeadKind) String() string {
	if k == HeadSkip {
		return "skip"
	}
	return "normal"
}

// Head is the consequent of a rule: a set of conditions over distinct attributes. A
// single-head rule predicts one condition (the class); multi-head rules predict several
// labels at once.
type Head struct {
	conds []Condition
	kind  HeadKind
}

// SingleHead returns a head predicting exactly one condition.
func SingleHead(c Condition) Head {
	return Head{conds: []Condition{c}}
}

// MultiHead returns a head over the given conditions. When two conditions test the same
// attribute the later one wins.
func MultiHead(conds ...Condition) Head {
	var h Head
	for _, c := range conds {
		h = h.With(c)
	}
	return h
}

// SkipHead returns the head of a skip rule.
func SkipHead() Head {
	return Head{kind: HeadSkip}
}

// Kind returns the head variant.
func (h Head) Kind() HeadKind { return h.kind }

// IsSkip reports whether this is a skip head.
func (h Head) IsSkip() bool { return h.kind == HeadSkip }

// Len returns the number of predicted conditions.
func (h Head) Len() int { return len(h.conds) }

// IsEmpty reports whether the head predicts nothing.
func (h Head) IsEmpty() bool { return len(h.conds) == 0 }

// Conditions returns the head conditions ordered by attribute index.
func (h Head) Conditions() []Condition {
	out := make([]Condition, len(h.conds))
	copy(out, h.conds)
	return out
}

// Single returns the only condition of a single-condition head.
func (h Head) Single() (Condition, bool) {
	if len(h.conds) != 1 {
		return Condition{}, false
	}
	return h.conds[0], true
}

// Get returns the condition predicted for an attribute.
func (h Head) Get(attr int) (Condition, bool) {
	i := h.search(attr)
	if i < len(h.conds) && h.conds[i].AttrIndex() == attr {
		return h.conds[i], true
	}
	return Condition{}, false
}

// Has reports whether the head predicts the attribute.
func (h Head) Has(attr int) bool {
	_, ok := h.Get(attr)
	return ok
}

// With returns a copy of the head predicting c, replacing any condition on c's attribute.
func (h Head) With(c Condition) Head {
	out := Head{kind: h.kind, conds: make([]Condition, 0, len(h.conds)+1)}
	out.conds = append(out.conds, h.conds...)
	i := out.search(c.AttrIndex())
	if i < len(out.conds) && out.conds[i].AttrIndex() == c.AttrIndex() {
		out.conds[i] = c
		return out
	}
	out.conds = append(out.conds, Condition{})
	copy(out.conds[i+1:], out.conds[i:])
	out.conds[i] = c
	return out
}

// Contains reports whether the head holds exactly c.
func (h Head) Contains(c Condition) bool {
	got, ok := h.Get(c.AttrIndex())
	return ok && got.Equal(c)
}

// IsSupersetOf reports whether every condition of o is also in h.
func (h Head) IsSupersetOf(o Head) bool {
	for _, c := range o.conds {
		if !h.Contains(c) {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (h Head) Equal(o Head) bool {
	if h.kind != o.kind || len(h.conds) != len(o.conds) {
		return false
	}
	for i := range h.conds {
		if !h.conds[i].Equal(o.conds[i]) {
			return false
		}
	}
	return true
}

func (h Head) search(attr int) int {
	return sort.Search(len(h.conds), func(i int) bool {
		return h.conds[i].AttrIndex() >= attr
	})
}

func (h Head) String() string {
	if h.kind == HeadSkip {
		return "<skip>"
	}
	parts := make([]string, len(h.conds))
	for i, c := range h.conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func (h Head) key() string {
	var b strings.Builder
	b.WriteString(h.kind.String())
	for _, c := range h.conds {
		b.WriteByte('|')
		b.WriteString(c.key())
	}
	return b.String()
}
