// Package model defines the rule model: conditions, confusion matrices, rules and rule sets.
package model

import (
	"fmt"

	"github.com/Veraticus/seco/internal/dataset"
)

// Condition is a predicate over a single attribute.
//
// For nominal attributes Value is the index of a domain value and Polarity selects
// equality (true) or inequality (false). For numeric attributes Value is a threshold and
// Polarity selects "<=" (true) or ">=" (false). A condition never covers a missing value.
type Condition struct {
	Attr     *dataset.Attribute
	Value    float64
	Polarity bool
}

// NewNominalCondition returns attr == value (equal) or attr != value.
func NewNominalCondition(attr *dataset.Attribute, valueIndex int, equal bool) Condition {
	return Condition{Attr: attr, Value: float64(valueIndex), Polarity: equal}
}

// NewNumericCondition returns attr <= threshold (lessOrEqual) or attr >= threshold.
func NewNumericCondition(attr *dataset.Attribute, threshold float64, lessOrEqual bool) Condition {
	return Condition{Attr: attr, Value: threshold, Polarity: lessOrEqual}
}

// AttrIndex returns the index of the tested attribute.
func (c Condition) AttrIndex() int {
	return c.Attr.Index()
}

// IsNominal reports whether the condition tests a nominal attribute.
func (c Condition) IsNominal() bool {
	return c.Attr.IsNominal()
}

// Covers reports whether the instance satisfies the condition.
func (c Condition) Covers(inst *dataset.Instance) bool {
	return c.CoversValue(inst.Value(c.Attr.Index()))
}

// CoversValue reports whether a raw attribute value satisfies the condition.
func (c Condition) CoversValue(v float64) bool {
	if dataset.IsMissing(v) {
		return false
	}
	if c.Attr.IsNominal() {
		return (v == c.Value) == c.Polarity
	}
	if c.Polarity {
		return v <= c.Value
	}
	return v >= c.Value
}

// Compare orders conditions by attribute index, then value, then polarity.
func (c Condition) Compare(o Condition) int {
	switch {
	case c.Attr.Index() < o.Attr.Index():
		return -1
	case c.Attr.Index() > o.Attr.Index():
		return 1
	case c.Value < o.Value:
		return -1
	case c.Value > o.Value:
		return 1
	case c.Polarity == o.Polarity:
		return 0
	case !c.Polarity:
		return -1
	default:
		return 1
	}
}

// Equal reports structural equality over (attribute, value, polarity).
func (c Condition) Equal(o Condition) bool {
	return c.Compare(o) == 0
}

// Operator returns the textual comparison operator.
func (c Condition) Operator() string {
	switch {
	case c.Attr.IsNominal() && c.Polarity:
		return "="
	case c.Attr.IsNominal():
		return "!="
	case c.Polarity:
		return "<="
	default:
		return ">="
	}
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Attr.Name(), c.Operator(), c.Attr.Format(c.Value))
}

func (c Condition) key() string {
	return fmt.Sprintf("%d%s%v", c.Attr.Index(), c.Operator(), c.Value)
}
