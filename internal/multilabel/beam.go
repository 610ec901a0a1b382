package multilabel

import (
	"container/heap"
	"sort"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Closure is a partially built multi-head rule together with the training instances its
// body covers and the body conditions used per attribute.
type Closure struct {
	Rule    *model.Rule
	covered []int
	used    map[int][]model.Condition
	refined bool
}

func newClosure(r *model.Rule, covered []int) *Closure {
	c := &Closure{Rule: r, covered: covered, used: make(map[int][]model.Condition)}
	for _, cond := range r.Body() {
		a := cond.AttrIndex()
		c.used[a] = append(c.used[a], cond)
	}
	return c
}

// Covered returns the indices of the covered training instances.
func (c *Closure) Covered() []int { return c.covered }

// Uses reports whether the body holds a condition on attr.
func (c *Closure) Uses(attr int) bool { return len(c.used[attr]) > 0 }

// HasCondition reports whether the body holds cond.
func (c *Closure) HasCondition(cond model.Condition) bool {
	for _, u := range c.used[cond.AttrIndex()] {
		if u.Equal(cond) {
			return true
		}
	}
	return false
}

// coverIndices returns the indices in from whose instance r covers.
func coverIndices(r *model.Rule, data *dataset.Instances, from []int) []int {
	out := make([]int, 0, len(from))
	for _, i := range from {
		if r.Covers(data.At(i)) {
			out = append(out, i)
		}
	}
	return out
}

// closureHeap is a min-heap by Rule.Compare.
type closureHeap []*Closure

func (h closureHeap) Len() int           { return len(h) }
func (h closureHeap) Less(i, j int) bool { return h[i].Rule.Compare(h[j].Rule) < 0 }
func (h closureHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *closureHeap) Push(x any) { *h = append(*h, x.(*Closure)) }

func (h *closureHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Beam is a bounded priority queue of closures. When full, an offered closure replaces
// the current minimum only if it compares greater. Closures with an already held rule key
// are rejected.
type Beam struct {
	items    closureHeap
	keys     map[string]struct{}
	capacity int
}

// NewBeam returns an empty beam holding at most capacity closures.
func NewBeam(capacity int) *Beam {
	if capacity < 1 {
		capacity = 1
	}
	return &Beam{keys: make(map[string]struct{}), capacity: capacity}
}

// Len returns the number of held closures.
func (b *Beam) Len() int { return len(b.items) }

// Capacity returns the maximum number of held closures.
func (b *Beam) Capacity() int { return b.capacity }

// Offer inserts c if there is room or c beats the current minimum, and reports whether
// the beam changed.
func (b *Beam) Offer(c *Closure) bool {
	k := c.Rule.Key()
	if _, ok := b.keys[k]; ok {
		return false
	}
	if len(b.items) < b.capacity {
		heap.Push(&b.items, c)
		b.keys[k] = struct{}{}
		return true
	}
	if c.Rule.Compare(b.items[0].Rule) <= 0 {
		return false
	}
	evicted := heap.Pop(&b.items).(*Closure)
	delete(b.keys, evicted.Rule.Key())
	heap.Push(&b.items, c)
	b.keys[k] = struct{}{}
	return true
}

// Sorted returns the held closures best first.
func (b *Beam) Sorted() []*Closure {
	out := make([]*Closure, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rule.Compare(out[j].Rule) > 0 })
	return out
}

// Best returns the best held closure, nil when empty.
func (b *Beam) Best() *Closure {
	var best *Closure
	for _, c := range b.items {
		if best == nil || c.Rule.Compare(best.Rule) > 0 {
			best = c
		}
	}
	return best
}
