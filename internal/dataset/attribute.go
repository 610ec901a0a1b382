// Package dataset provides the tabular data that rule sets are learned from and applied to.
//
// A dataset is a list of weighted instances over a fixed, ordered list of attributes.
// Nominal values are stored as the index of the value in the attribute domain, numeric
// values as-is, and missing values as NaN.
package dataset

import (
	"fmt"
	"math"
	"strconv"
)

// AttributeType tells nominal attributes from numeric ones.
type AttributeType int

// Attribute types.
const (
	Nominal AttributeType = iota
	Numeric
)

func (t AttributeType) String() string {
	switch t {
	case Nominal:
		return "nominal"
	case Numeric:
		return "numeric"
	default:
		return fmt.Sprintf("AttributeType(%d)", int(t))
	}
}

// ParseAttributeType is the inverse of AttributeType.String.
func ParseAttributeType(s string) (AttributeType, error) {
	switch s {
	case "nominal":
		return Nominal, nil
	case "numeric":
		return Numeric, nil
	default:
		return Nominal, fmt.Errorf("%w: attribute type %q", ErrInvalidValue, s)
	}
}

// Attribute identifies a column of a dataset. Attributes are immutable once the dataset
// holding them has been built and are shared by every instance of that dataset.
type Attribute struct {
	valueIndex map[string]int
	name       string
	values     []string
	index      int
	kind       AttributeType
}

// NewNominalAttribute returns a nominal attribute with the given ordered value domain.
func NewNominalAttribute(name string, values []string) *Attribute {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	vs := make([]string, len(values))
	copy(vs, values)
	return &Attribute{name: name, kind: Nominal, values: vs, valueIndex: idx, index: -1}
}

// NewNumericAttribute returns a numeric attribute.
func NewNumericAttribute(name string) *Attribute {
	return &Attribute{name: name, kind: Numeric, index: -1}
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// Index returns the position of the attribute in its dataset.
func (a *Attribute) Index() int { return a.index }

// Type returns whether the attribute is nominal or numeric.
func (a *Attribute) Type() AttributeType { return a.kind }

// IsNominal reports whether the attribute is nominal.
func (a *Attribute) IsNominal() bool { return a.kind == Nominal }

// IsNumeric reports whether the attribute is numeric.
func (a *Attribute) IsNumeric() bool { return a.kind == Numeric }

// NumValues returns the size of a nominal domain, 0 for numeric attributes.
func (a *Attribute) NumValues() int { return len(a.values) }

// Values returns a copy of the nominal domain.
func (a *Attribute) Values() []string {
	vs := make([]string, len(a.values))
	copy(vs, a.values)
	return vs
}

// Value returns the nominal value with index i.
func (a *Attribute) Value(i int) string {
	if i < 0 || i >= len(a.values) {
		return "?"
	}
	return a.values[i]
}

// IndexOfValue returns the index of a nominal value.
func (a *Attribute) IndexOfValue(v string) (int, bool) {
	i, ok := a.valueIndex[v]
	return i, ok
}

// Format renders a stored value of this attribute.
func (a *Attribute) Format(v float64) string {
	if IsMissing(v) {
		return "?"
	}
	if a.kind == Nominal {
		return a.Value(int(v))
	}
	return formatNumber(v)
}

func (a *Attribute) String() string {
	return a.name
}

// Spec returns a serializable description of the attribute.
func (a *Attribute) Spec() AttributeSpec {
	return AttributeSpec{Name: a.name, Type: a.kind.String(), Values: a.Values()}
}

// AttributeSpec is the serializable form of an Attribute.
type AttributeSpec struct {
	Name   string   `json:"name" yaml:"name"`
	Type   string   `json:"type" yaml:"type"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Attribute builds the attribute described by s.
func (s AttributeSpec) Attribute() (*Attribute, error) {
	kind, err := ParseAttributeType(s.Type)
	if err != nil {
		return nil, err
	}
	if kind == Numeric {
		return NewNumericAttribute(s.Name), nil
	}
	return NewNominalAttribute(s.Name, s.Values), nil
}

// Missing is the sentinel stored for unknown values.
var Missing = math.NaN()

// IsMissing reports whether v is the missing-value sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
