// Package mdl implements the minimum description length model used to build and
// optimize RIPPER rule sets.
//
// All lengths are in bits. Rule statistics are kept as confusion matrices where TP and FP
// are the weights a rule covers (correctly and incorrectly), and TN and FN the weights
// left uncovered.
package mdl

import (
	"math"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// MaxDLSurplus is how many bits the description length may grow beyond the best value
// seen before rule building stops.
const MaxDLSurplus = 64.0

const (
	theoryWeight     = 1.0
	redundancyFactor = 0.5
)

// SubsetDL returns the bits needed to encode which k of t items are selected when p is
// the expected fraction of selected items.
func SubsetDL(t, k, p float64) float64 {
	var dl float64
	if p > 0 {
		dl = -k * math.Log2(p)
	}
	if t > k {
		dl -= (t - k) * math.Log2(1-p)
	}
	return dl
}

// TheoryDL returns the bits needed to encode a rule of k conditions chosen from total
// possible conditions.
func TheoryDL(k int, total float64) float64 {
	if k == 0 {
		return 0
	}
	fk := float64(k)
	dl := math.Log2(fk)
	if k > 1 {
		dl += 2 * math.Log2(dl)
	}
	dl += SubsetDL(total, fk, fk/total)
	return theoryWeight * redundancyFactor * dl
}

// DataDL returns the bits needed to encode the errors of a rule set that covers cover and
// leaves uncover weight, with fp false positives and fn false negatives.
// expFPOverErr is the expected fraction of errors that are false positives.
func DataDL(expFPOverErr, cover, uncover, fp, fn float64) float64 {
	totalBits := math.Log2(cover + uncover + 1)
	var coverBits, uncoverBits float64
	if cover > uncover {
		expErr := expFPOverErr * (fp + fn)
		coverBits = SubsetDL(cover, fp, expErr/cover)
		if uncover > 0 {
			uncoverBits = SubsetDL(uncover, fn, fn/uncover)
		}
	} else {
		expErr := (1 - expFPOverErr) * (fp + fn)
		if cover > 0 {
			coverBits = SubsetDL(cover, fp, fp/cover)
		}
		if uncover > 0 {
			uncoverBits = SubsetDL(uncover, fn, expErr/uncover)
		}
	}
	return totalBits + coverBits + uncoverBits
}

// StatsDL is DataDL for the statistics of a whole rule set.
func StatsDL(expFPOverErr float64, s model.ConfusionMatrix) float64 {
	return DataDL(expFPOverErr, s.Predicted(), s.TN+s.FN, s.FP, s.FN)
}

// DefaultDL is the data description length of the empty rule set for a class of weight
// classWeight within total weight.
func DefaultDL(expFPOverErr, total, classWeight float64) float64 {
	return DataDL(expFPOverErr, 0, total, 0, classWeight)
}

// NumAllConditions counts the conditions that could be formed over the non-class
// attributes of data: one per nominal value and two per distinct numeric value.
func NumAllConditions(data *dataset.Instances) float64 {
	var total float64
	for _, a := range data.Attributes() {
		if a.Index() == data.ClassIndex() {
			continue
		}
		if a.IsNominal() {
			total += float64(a.NumValues())
		} else {
			total += 2 * float64(data.NumDistinctValues(a.Index()))
		}
	}
	return total
}

// CheckStop reports whether rule building must stop: the description length grew more
// than MaxDLSurplus beyond minDL, the rule covers no positives, or its error rate on the
// covered weight reached one half.
func CheckStop(s model.ConfusionMatrix, minDL, dl float64) bool {
	switch {
	case dl > minDL+MaxDLSurplus:
		return true
	case s.TP <= 0:
		return true
	case s.ErrorRate() >= 0.5:
		return true
	default:
		return false
	}
}
