package seco

import (
	"context"
	"math"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/mdl"
	"github.com/Veraticus/seco/internal/model"
)

// ripper learns the rules of one class RIPPER style: rules are grown and pruned until
// the description length stops improving, then the rule list is optimized.
func (l *Learner) ripper(ctx context.Context, p Problem, numConds, expFP, defDL float64) ([]*model.Rule, error) {
	rules, err := l.buildMDL(ctx, p, numConds, expFP, defDL)
	if err != nil {
		return nil, err
	}
	for z := 0; z < l.cfg.Optimizations; z++ {
		if rules, err = l.optimize(ctx, p, rules, numConds, expFP, defDL); err != nil {
			return nil, err
		}
		l.logger.Debug("optimization pass finished", "pass", z+1, "rules", len(rules))
	}
	return rules, nil
}

// buildMDL is the building stage: accept grown and pruned rules while the description
// length stays within reach of the best seen and rules keep covering positives.
func (l *Learner) buildMDL(ctx context.Context, p Problem, numConds, expFP, defDL float64) ([]*model.Rule, error) {
	var rules []*model.Rule
	stats := mdl.NewRuleStats(p.Data, nil, numConds)
	dl, minDL := defDL, defDL
	work := p.Data
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		grow, prune := work.SplitGrowPrune(l.cfg.GrowingFraction, l.rng)
		r := l.growAndPrune(p.on(grow), p.on(prune), l.cfg.PruneUseWhole)
		if r == nil {
			break
		}

		stats.AddAndUpdate(r)
		last := stats.Len() - 1
		dl += stats.RelativeDL(last, expFP, l.cfg.CheckError)
		if math.IsNaN(dl) || math.IsInf(dl, 0) {
			l.logger.Warn("description length is not finite, stopping", "rule", r.String())
			stats.RemoveLast()
			break
		}
		if dl < minDL {
			minDL = dl
		}

		st := stats.Stats(last)
		if mdl.CheckStop(st, minDL, dl) {
			l.logger.Debug("rule rejected", "rule", r.String(), "dl", dl, "min_dl", minDL)
			stats.RemoveLast()
			break
		}

		l.Evaluate(r, p.on(work))
		rules = append(rules, r)
		l.observer.RuleAccepted(p.Class.Value(int(p.Target)), r)
		l.logger.Debug("rule accepted", "rule", r.String(), "dl", dl)

		work = stats.Uncovered(last)
		if st.FN <= 0 {
			break
		}
	}
	return rules, nil
}

// optimize runs one optimization pass over rules. Every rule is compared with a
// replacement grown from scratch, a revision grown from the rule itself and, when
// enabled, an abridgment; the variant with the smallest description length is kept.
// Positives left uncovered are covered by residual rules, and rules that do not pay
// for themselves are deleted at the end.
func (l *Learner) optimize(ctx context.Context, p Problem, rules []*model.Rule, numConds, expFP, defDL float64) ([]*model.Rule, error) {
	rules = append([]*model.Rule(nil), rules...)
	final := mdl.NewRuleStats(p.Data, nil, numConds)
	work := p.Data
	dl, minDL := defDL, defDL
	position := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		residual := position >= len(rules)
		grow, prune := work.SplitGrowPrune(l.cfg.GrowingFraction, l.rng)

		var chosen *model.Rule
		if residual {
			chosen = l.growAndPrune(p.on(grow), p.on(prune), false)
			if chosen == nil {
				break
			}
		} else {
			old := rules[position]
			if !coversAny(old, work) {
				l.logger.Debug("deleting rule without coverage", "rule", old.String())
				rules = append(rules[:position], rules[position+1:]...)
				continue
			}
			chosen = l.bestVariant(p, rules, position, work, grow, prune, final, expFP)
		}

		final.AddAndUpdate(chosen)
		st := final.Stats(position)
		if residual {
			dl += final.RelativeDL(position, expFP, l.cfg.CheckError)
			if dl < minDL {
				minDL = dl
			}
			if math.IsNaN(dl) || mdl.CheckStop(st, minDL, dl) {
				final.RemoveLast()
				break
			}
			l.Evaluate(chosen, p.on(work))
			rules = append(rules, chosen)
		} else {
			l.Evaluate(chosen, p.on(work))
			rules[position] = chosen
		}

		work = final.Uncovered(position)
		position++
		if st.FN <= 0 {
			break
		}
	}

	for k := final.Len(); k < len(rules); k++ {
		final.AddAndUpdate(rules[k])
	}
	final.ReduceDL(expFP, l.cfg.CheckError)
	return final.Rules(), nil
}

// bestVariant picks the variant of rules[position] with the smallest relative
// description length, or the highest selection heuristic value when one is configured.
// Ties keep the first variant in the order old, revision, replacement, abridgment.
func (l *Learner) bestVariant(p Problem, rules []*model.Rule, position int, work, grow, prune *dataset.Instances, final *mdl.RuleStats, expFP float64) *model.Rule {
	old := rules[position]
	pruneRest := mdl.RemoveCoveredBySuccessors(prune, rules, position)

	variants := []*model.Rule{old}
	revisionData := grow.Filter(old.Covers)
	if revision := l.findBestRuleFrom(p.on(revisionData), []*model.Rule{old.Clone()}); revision != nil {
		variants = append(variants, PruneRule(revision, p.on(pruneRest), true))
	}
	if replacement := l.FindBestRule(p.on(grow)); replacement != nil {
		variants = append(variants, PruneRule(replacement, p.on(pruneRest), true))
	}
	if l.cfg.Abridge {
		variants = append(variants, abridge(old, p.on(pruneRest)))
	}

	if l.selection != nil {
		best, bestValue := old, math.Inf(-1)
		for _, v := range variants {
			c := v.Clone()
			l.evaluateWith(l.selection, c, p.on(pruneRest))
			if c.Value() > bestValue {
				best, bestValue = v, c.Value()
			}
		}
		return best
	}

	prev := final.AllStats()
	best, bestDL := old, math.Inf(1)
	for _, v := range variants {
		trial := append([]*model.Rule(nil), rules...)
		trial[position] = v
		stats := mdl.NewRuleStats(p.Data, trial, final.NumAllConditions())
		stats.CountDataFrom(position, work, prev)
		d := stats.RelativeDL(position, expFP, l.cfg.CheckError)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			l.logger.Warn("skipping variant with non-finite description length", "rule", v.String())
			continue
		}
		if d < bestDL {
			best, bestDL = v, d
		}
	}
	return best
}

// growAndPrune grows a rule on grow and prunes it on prune.
func (l *Learner) growAndPrune(grow, prune Problem, useWhole bool) *model.Rule {
	r := l.FindBestRule(grow)
	if r == nil {
		return nil
	}
	if prune.Data.Len() > 0 {
		r = PruneRule(r, prune, useWhole)
	}
	return r
}

// abridge greedily drops the condition whose removal yields the lowest error rate on
// the pruning data, as long as the error rate does not grow. At least one condition is
// kept.
func abridge(r *model.Rule, p Problem) *model.Rule {
	current := r
	currentErr := errorRate(current, p)
	for current.Length() > 1 {
		var best *model.Rule
		bestErr := math.Inf(1)
		for i := 0; i < current.Length(); i++ {
			cand := current.WithoutCondition(i)
			if e := errorRate(cand, p); e < bestErr {
				best, bestErr = cand, e
			}
		}
		if best == nil || bestErr > currentErr {
			break
		}
		current, currentErr = best, bestErr
	}
	return current
}

// errorRate is the weighted fraction of covered instances that are negatives; 1 when
// the rule covers nothing.
func errorRate(r *model.Rule, p Problem) float64 {
	var cm model.ConfusionMatrix
	for _, inst := range p.Data.All() {
		if !r.Covers(inst) {
			continue
		}
		if p.IsPositive(inst) {
			cm.TP += inst.Weight()
		} else {
			cm.FP += inst.Weight()
		}
	}
	if cm.Predicted() == 0 {
		return 1
	}
	return cm.ErrorRate()
}

func coversAny(r *model.Rule, data *dataset.Instances) bool {
	for _, inst := range data.All() {
		if r.Covers(inst) {
			return true
		}
	}
	return false
}
