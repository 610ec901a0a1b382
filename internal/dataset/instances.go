package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// Dataset errors.
var (
	// ErrClassUnassigned is returned when the class of an instance is queried but its
	// dataset has no class attribute. It is never used to signal a missing class value.
	ErrClassUnassigned  = errors.New("class attribute not assigned")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidValue     = errors.New("invalid value")
	ErrSchemaMismatch   = errors.New("instance does not belong to dataset schema")
)

// schema is shared by a dataset, all of its filtered copies and all of their instances.
type schema struct {
	byName     map[string]*Attribute
	relation   string
	attributes []*Attribute
	classIndex int
}

// Instance is a single weighted row.
type Instance struct {
	schema *schema
	values []float64
	weight float64
}

// Value returns the stored value for the attribute at index attr. Missing values are NaN.
func (i *Instance) Value(attr int) float64 {
	return i.values[attr]
}

// IsMissing reports whether the value for attr is missing.
func (i *Instance) IsMissing(attr int) bool {
	return IsMissing(i.values[attr])
}

// NumValues returns the number of attribute values of the instance.
func (i *Instance) NumValues() int {
	return len(i.values)
}

// Weight returns the instance weight.
func (i *Instance) Weight() float64 {
	return i.weight
}

// ClassValue returns the class value of the instance. The boolean result is false when
// the class value is missing; ErrClassUnassigned is returned when there is no class.
func (i *Instance) ClassValue() (float64, bool, error) {
	if i.schema == nil || i.schema.classIndex < 0 {
		return Missing, false, ErrClassUnassigned
	}
	v := i.values[i.schema.classIndex]
	return v, !IsMissing(v), nil
}

// WithWeight returns a copy of the instance carrying a different weight.
func (i *Instance) WithWeight(w float64) *Instance {
	return &Instance{schema: i.schema, values: i.values, weight: w}
}

// WithValue returns a copy of the instance with one value replaced.
func (i *Instance) WithValue(attr int, v float64) *Instance {
	vs := make([]float64, len(i.values))
	copy(vs, i.values)
	vs[attr] = v
	return &Instance{schema: i.schema, values: vs, weight: i.weight}
}

func (i *Instance) String() string {
	parts := make([]string, len(i.values))
	for k, v := range i.values {
		if i.schema != nil && k < len(i.schema.attributes) {
			parts[k] = i.schema.attributes[k].Format(v)
		} else {
			parts[k] = formatNumber(v)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Instances is an ordered collection of instances sharing one schema.
type Instances struct {
	schema *schema
	items  []*Instance
}

// New returns an empty dataset over the given attributes. Attribute indices are assigned
// in order; attributes must not be shared with another dataset definition.
func New(relation string, attributes []*Attribute) (*Instances, error) {
	s := &schema{
		relation:   relation,
		attributes: make([]*Attribute, len(attributes)),
		byName:     make(map[string]*Attribute, len(attributes)),
		classIndex: -1,
	}
	for i, a := range attributes {
		if a == nil {
			return nil, fmt.Errorf("%w: attribute %d is nil", ErrInvalidValue, i)
		}
		if _, dup := s.byName[a.name]; dup {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidValue, a.name)
		}
		a.index = i
		s.attributes[i] = a
		s.byName[a.name] = a
	}
	return &Instances{schema: s}, nil
}

// NewFromSpecs rebuilds an empty dataset from serialized attribute specs.
func NewFromSpecs(relation string, specs []AttributeSpec, classIndex int) (*Instances, error) {
	attrs := make([]*Attribute, 0, len(specs))
	for _, spec := range specs {
		a, err := spec.Attribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	d, err := New(relation, attrs)
	if err != nil {
		return nil, err
	}
	if classIndex >= 0 {
		if err := d.SetClassIndex(classIndex); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Relation returns the dataset name.
func (d *Instances) Relation() string { return d.schema.relation }

// SetClassIndex designates the class attribute. The class must be nominal.
func (d *Instances) SetClassIndex(i int) error {
	if i < 0 || i >= len(d.schema.attributes) {
		return fmt.Errorf("%w: class index %d", ErrUnknownAttribute, i)
	}
	if !d.schema.attributes[i].IsNominal() {
		return fmt.Errorf("%w: class attribute %q must be nominal", ErrInvalidValue, d.schema.attributes[i].name)
	}
	d.schema.classIndex = i
	return nil
}

// SetClass designates the class attribute by name.
func (d *Instances) SetClass(name string) error {
	a, err := d.AttributeByName(name)
	if err != nil {
		return err
	}
	return d.SetClassIndex(a.index)
}

// ClassIndex returns the index of the class attribute, or -1 when unassigned.
func (d *Instances) ClassIndex() int { return d.schema.classIndex }

// ClassAttribute returns the class attribute.
func (d *Instances) ClassAttribute() (*Attribute, error) {
	if d.schema.classIndex < 0 {
		return nil, ErrClassUnassigned
	}
	return d.schema.attributes[d.schema.classIndex], nil
}

// NumClasses returns the size of the class domain, 0 when no class is assigned.
func (d *Instances) NumClasses() int {
	if d.schema.classIndex < 0 {
		return 0
	}
	return d.schema.attributes[d.schema.classIndex].NumValues()
}

// Attributes returns the attributes in index order.
func (d *Instances) Attributes() []*Attribute {
	attrs := make([]*Attribute, len(d.schema.attributes))
	copy(attrs, d.schema.attributes)
	return attrs
}

// Attribute returns the attribute at index i.
func (d *Instances) Attribute(i int) *Attribute { return d.schema.attributes[i] }

// AttributeByName looks an attribute up by name.
func (d *Instances) AttributeByName(name string) (*Attribute, error) {
	a, ok := d.schema.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return a, nil
}

// NumAttributes returns the number of attributes including the class.
func (d *Instances) NumAttributes() int { return len(d.schema.attributes) }

// Add validates values against the schema and appends a new instance.
func (d *Instances) Add(values []float64, weight float64) (*Instance, error) {
	if len(values) != len(d.schema.attributes) {
		return nil, fmt.Errorf("%w: got %d values for %d attributes", ErrInvalidValue, len(values), len(d.schema.attributes))
	}
	if weight < 0 || math.IsNaN(weight) {
		return nil, fmt.Errorf("%w: weight %v", ErrInvalidValue, weight)
	}
	vs := make([]float64, len(values))
	for i, v := range values {
		a := d.schema.attributes[i]
		if a.IsNominal() && !IsMissing(v) && (v != math.Trunc(v) || v < 0 || int(v) >= a.NumValues()) {
			return nil, fmt.Errorf("%w: %v for nominal attribute %q", ErrInvalidValue, v, a.name)
		}
		vs[i] = v
	}
	inst := &Instance{schema: d.schema, values: vs, weight: weight}
	d.items = append(d.items, inst)
	return inst, nil
}

// Append adds an existing instance of the same schema.
func (d *Instances) Append(inst *Instance) error {
	if inst.schema != d.schema {
		return ErrSchemaMismatch
	}
	d.items = append(d.items, inst)
	return nil
}

// Len returns the number of instances.
func (d *Instances) Len() int { return len(d.items) }

// At returns the instance at position i.
func (d *Instances) At(i int) *Instance { return d.items[i] }

// All returns the instances. The slice must not be modified.
func (d *Instances) All() []*Instance { return d.items }

// SumOfWeights returns the total instance weight.
func (d *Instances) SumOfWeights() float64 {
	var total float64
	for _, inst := range d.items {
		total += inst.weight
	}
	return total
}

// CountClass returns the total weight of instances whose class equals v.
func (d *Instances) CountClass(v float64) float64 {
	var total float64
	for _, inst := range d.items {
		cls, ok, err := inst.ClassValue()
		if err != nil || !ok {
			continue
		}
		if cls == v {
			total += inst.weight
		}
	}
	return total
}

// ClassCounts returns the weighted class distribution.
func (d *Instances) ClassCounts() ([]float64, error) {
	if d.schema.classIndex < 0 {
		return nil, ErrClassUnassigned
	}
	counts := make([]float64, d.NumClasses())
	for _, inst := range d.items {
		cls, ok, _ := inst.ClassValue()
		if !ok {
			continue
		}
		counts[int(cls)] += inst.weight
	}
	return counts, nil
}

// EmptyCopy returns an empty dataset with the same schema.
func (d *Instances) EmptyCopy() *Instances {
	return &Instances{schema: d.schema}
}

// Copy returns a dataset holding the same instances in a new slice.
func (d *Instances) Copy() *Instances {
	items := make([]*Instance, len(d.items))
	copy(items, d.items)
	return &Instances{schema: d.schema, items: items}
}

// Filter returns the instances for which keep returns true.
func (d *Instances) Filter(keep func(*Instance) bool) *Instances {
	out := &Instances{schema: d.schema, items: make([]*Instance, 0, len(d.items))}
	for _, inst := range d.items {
		if keep(inst) {
			out.items = append(out.items, inst)
		}
	}
	return out
}

// Reweight returns a copy of the dataset in which every instance carries the weight fn
// assigns to it. Instances whose weight does not change are shared.
func (d *Instances) Reweight(fn func(*Instance) float64) *Instances {
	out := &Instances{schema: d.schema, items: make([]*Instance, len(d.items))}
	for i, inst := range d.items {
		if w := fn(inst); w != inst.weight {
			inst = inst.WithWeight(w)
		}
		out.items[i] = inst
	}
	return out
}

// Partition splits the dataset into the instances that match pred and the rest.
// Every instance ends up in exactly one of the two results.
func (d *Instances) Partition(pred func(*Instance) bool) (matching, rest *Instances) {
	matching = d.EmptyCopy()
	rest = d.EmptyCopy()
	for _, inst := range d.items {
		if pred(inst) {
			matching.items = append(matching.items, inst)
		} else {
			rest.items = append(rest.items, inst)
		}
	}
	return matching, rest
}

// Shuffle returns a copy of the dataset in random order.
func (d *Instances) Shuffle(rng *rand.Rand) *Instances {
	out := d.Copy()
	rng.Shuffle(len(out.items), func(i, j int) {
		out.items[i], out.items[j] = out.items[j], out.items[i]
	})
	return out
}

// Stratify reorders the dataset so that every consecutive block of folds instances
// follows the class distribution. Instances are bagged by class, each bag shuffled with
// rng, and the folds interleaved.
func (d *Instances) Stratify(folds int, rng *rand.Rand) *Instances {
	if d.schema.classIndex < 0 || folds < 2 {
		return d.Shuffle(rng)
	}
	bags := make([][]*Instance, d.NumClasses()+1)
	for _, inst := range d.items {
		cls, ok, _ := inst.ClassValue()
		b := len(bags) - 1
		if ok {
			b = int(cls)
		}
		bags[b] = append(bags[b], inst)
	}
	for _, bag := range bags {
		rng.Shuffle(len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })
	}

	out := &Instances{schema: d.schema, items: make([]*Instance, 0, len(d.items))}
	for k := 0; k < folds; k++ {
		offset, bag := k, 0
	fold:
		for {
			for offset >= len(bags[bag]) {
				offset -= len(bags[bag])
				bag++
				if bag >= len(bags) {
					break fold
				}
			}
			out.items = append(out.items, bags[bag][offset])
			offset += folds
		}
	}
	return out
}

// SplitGrowPrune stratifies the dataset and splits it into a growing set holding the
// given fraction of the instances and a pruning set with the remainder.
func (d *Instances) SplitGrowPrune(fraction float64, rng *rand.Rand) (grow, prune *Instances) {
	if fraction >= 1 {
		return d.Copy(), d.EmptyCopy()
	}
	folds := int(math.Round(1 / (1 - fraction)))
	if folds < 2 {
		folds = 2
	}
	s := d.Stratify(folds, rng)
	split := int(float64(s.Len()) * fraction)
	grow = &Instances{schema: d.schema, items: s.items[:split:split]}
	prune = &Instances{schema: d.schema, items: s.items[split:]}
	return grow, prune
}

// DistinctValues returns the sorted distinct non-missing values of an attribute.
func (d *Instances) DistinctValues(attr int) []float64 {
	seen := make(map[float64]struct{})
	for _, inst := range d.items {
		v := inst.values[attr]
		if IsMissing(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// NumDistinctValues returns the number of distinct non-missing values of an attribute.
func (d *Instances) NumDistinctValues(attr int) int {
	return len(d.DistinctValues(attr))
}

// SameSchema reports whether both datasets share one schema.
func (d *Instances) SameSchema(o *Instances) bool {
	return d.schema == o.schema
}
