package seco

import (
	"context"
	"fmt"
	"sort"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/mdl"
	"github.com/Veraticus/seco/internal/model"
)

// SeparateAndConquer learns a decision list for the class attribute of data.
//
// Classes are learned in order of increasing frequency; the most frequent class becomes
// the default rule. Rules for a class are learned on the instances no rule of an
// earlier class covers. The context is checked between covering iterations.
func (l *Learner) SeparateAndConquer(ctx context.Context, data *dataset.Instances) (*model.RuleSet, error) {
	classAttr, err := data.ClassAttribute()
	if err != nil {
		return nil, fmt.Errorf("failed to learn rules: %w", err)
	}
	data = data.Filter(func(inst *dataset.Instance) bool {
		_, ok, _ := inst.ClassValue()
		return ok
	})
	if data.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	counts, err := data.ClassCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}
	order := OrderClasses(counts)
	numConds := mdl.NumAllConditions(data)

	l.logger.Info("learning decision list",
		"relation", data.Relation(),
		"instances", data.Len(),
		"classes", len(order),
		"heuristic", l.heuristic.String())

	rs := model.NewRuleSet()
	work := data
	for y, cls := range order[:len(order)-1] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p := Problem{Data: work, Class: classAttr, Target: float64(cls)}
		name := classAttr.Value(cls)
		positives := work.CountClass(p.Target)
		if positives <= 0 {
			l.logger.Debug("no positives left for class", "class", name)
			continue
		}
		l.observer.ClassStarted(name, positives)

		var rules []*model.Rule
		if l.cfg.MDL {
			var rest float64
			for _, c := range order[y:] {
				rest += counts[c]
			}
			expFP := counts[cls] / rest
			defDL := mdl.DefaultDL(expFP, work.SumOfWeights(), positives)
			rules, err = l.ripper(ctx, p, numConds, expFP, defDL)
		} else {
			rules, err = l.cover(ctx, p)
		}
		if err != nil {
			return nil, err
		}

		l.observer.ClassFinished(name, rules)
		l.logger.Info("learned rules for class", "class", name, "rules", len(rules))
		rs.AddAll(rules)
		work = work.Filter(func(inst *dataset.Instance) bool { return !coveredByAny(rules, inst) })
	}

	def := Problem{Data: data, Class: classAttr, Target: float64(order[len(order)-1])}
	defRule := model.NewRule(def.Head(), l.rng)
	l.Evaluate(defRule, def)
	rs.SetDefault(defRule)
	return rs, nil
}

// cover is the plain covering loop for one class. Covered instances are removed, or
// their weight multiplied by the configured covered weight.
func (l *Learner) cover(ctx context.Context, p Problem) ([]*model.Rule, error) {
	var rules []*model.Rule
	seen := make(map[string]struct{})
	work := p.Data
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		positives := work.CountClass(p.Target)
		if positives < l.cfg.MinCoverage {
			break
		}

		grow, prune := work, work.EmptyCopy()
		if l.cfg.Prune {
			grow, prune = work.SplitGrowPrune(l.cfg.GrowingFraction, l.rng)
		}
		r := l.FindBestRule(p.on(grow))
		if r == nil {
			break
		}
		if l.cfg.Prune && prune.Len() > 0 {
			r = PruneRule(r, p.on(prune), l.cfg.PruneUseWhole)
		}

		l.Evaluate(r, p.on(work))
		if r.Stats().TP < l.cfg.MinCoverage || l.theoryStop.Stop(r) {
			l.logger.Debug("rule rejected", "rule", r.String(), "stats", r.Stats().String())
			break
		}

		if _, dup := seen[r.Key()]; !dup {
			seen[r.Key()] = struct{}{}
			rules = append(rules, r)
			l.observer.RuleAccepted(p.Class.Value(int(p.Target)), r)
			l.logger.Debug("rule accepted", "rule", r.String(), "value", r.Value())
		}

		if w := l.cfg.CoveredWeight; w > 0 {
			work = work.Reweight(func(inst *dataset.Instance) float64 {
				if r.Covers(inst) && p.IsPositive(inst) {
					return inst.Weight() * w
				}
				return inst.Weight()
			})
		} else {
			work = r.UncoveredInstances(work)
		}
	}
	return rules, nil
}

// on returns the problem restricted to other data.
func (p Problem) on(data *dataset.Instances) Problem {
	return Problem{Data: data, Class: p.Class, Target: p.Target}
}

// OrderClasses returns class indices by ascending weight; ties keep index order.
func OrderClasses(counts []float64) []int {
	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] < counts[order[j]] })
	return order
}

func coveredByAny(rules []*model.Rule, inst *dataset.Instance) bool {
	for _, r := range rules {
		if r.Covers(inst) {
			return true
		}
	}
	return false
}
