package multilabel

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Labels is the label space of a multi-label dataset: binary nominal attributes whose
// value index is the label value.
type Labels struct {
	attrs []*dataset.Attribute
	pos   map[int]int
}

// NewLabels resolves the named label attributes of data.
func NewLabels(data *dataset.Instances, names []string) (*Labels, error) {
	if len(names) == 0 {
		return nil, common.InvalidConfig("multilabel.labels", "at least one label attribute is required")
	}
	l := &Labels{pos: make(map[int]int, len(names))}
	for _, name := range names {
		a, err := data.AttributeByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve label: %w", err)
		}
		if !a.IsNominal() || a.NumValues() != 2 {
			return nil, common.InvalidConfig("multilabel.labels", "label %q must be a binary nominal attribute", name)
		}
		if _, dup := l.pos[a.Index()]; dup {
			return nil, common.InvalidConfig("multilabel.labels", "label %q listed twice", name)
		}
		l.pos[a.Index()] = len(l.attrs)
		l.attrs = append(l.attrs, a)
	}
	return l, nil
}

// Len returns the number of labels.
func (l *Labels) Len() int { return len(l.attrs) }

// Attr returns the attribute of label j.
func (l *Labels) Attr(j int) *dataset.Attribute { return l.attrs[j] }

// Attributes returns the label attributes in label order.
func (l *Labels) Attributes() []*dataset.Attribute {
	out := make([]*dataset.Attribute, len(l.attrs))
	copy(out, l.attrs)
	return out
}

// Position returns the label number of an attribute index.
func (l *Labels) Position(attr int) (int, bool) {
	j, ok := l.pos[attr]
	return j, ok
}

// IsLabel reports whether the attribute index is a label.
func (l *Labels) IsLabel(attr int) bool {
	_, ok := l.pos[attr]
	return ok
}

// Value returns the value index of label j for inst, or -1 when missing.
func (l *Labels) Value(inst *dataset.Instance, j int) int {
	v := inst.Value(l.attrs[j].Index())
	if dataset.IsMissing(v) {
		return -1
	}
	return int(v)
}

// Condition returns the head condition setting label j to value v.
func (l *Labels) Condition(j, v int) model.Condition {
	return model.NewNominalCondition(l.attrs[j], v, true)
}

// vectorKey renders the label vector of inst.
func (l *Labels) vectorKey(inst *dataset.Instance) string {
	var b strings.Builder
	for j := range l.attrs {
		if v := l.Value(inst, j); v >= 0 {
			b.WriteByte(byte('0' + v))
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

// bitset marks instances by index.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)       { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) clear(i int)     { b[i/64] &^= 1 << (uint(i) % 64) }
func (b bitset) test(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}
