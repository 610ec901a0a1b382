package seco

import (
	"sort"

	"github.com/Veraticus/seco/internal/model"
)

// candidateSet holds live search candidates ordered best first. Structurally equal
// rules are collapsed.
type candidateSet struct {
	keys  map[string]struct{}
	rules []*model.Rule
}

func newCandidateSet() *candidateSet {
	return &candidateSet{keys: make(map[string]struct{})}
}

func (s *candidateSet) Len() int { return len(s.rules) }

// add inserts r unless an equal rule is present.
func (s *candidateSet) add(r *model.Rule) bool {
	k := r.Key()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	i := sort.Search(len(s.rules), func(i int) bool { return s.rules[i].Compare(r) < 0 })
	s.rules = append(s.rules, nil)
	copy(s.rules[i+1:], s.rules[i:])
	s.rules[i] = r
	return true
}

// best returns the best live candidate, nil when empty.
func (s *candidateSet) best() *model.Rule {
	if len(s.rules) == 0 {
		return nil
	}
	return s.rules[0]
}

// snapshot returns the candidates best first.
func (s *candidateSet) snapshot() []*model.Rule {
	out := make([]*model.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// remove drops the given rules.
func (s *candidateSet) remove(rs []*model.Rule) {
	if len(rs) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		drop[r.Key()] = struct{}{}
	}
	kept := s.rules[:0]
	for _, r := range s.rules {
		k := r.Key()
		if _, ok := drop[k]; ok {
			delete(s.keys, k)
			continue
		}
		kept = append(kept, r)
	}
	s.rules = kept
}

// truncate keeps the n best candidates.
func (s *candidateSet) truncate(n int) {
	for _, r := range s.rules[n:] {
		delete(s.keys, r.Key())
	}
	s.rules = s.rules[:n]
}
