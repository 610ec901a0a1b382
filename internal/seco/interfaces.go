package seco

import "github.com/Veraticus/seco/internal/model"

// Observer receives covering progress. Implementations must be cheap; they are called
// synchronously from the covering loop.
type Observer interface {
	// ClassStarted is called before rules for a class are learned.
	ClassStarted(class string, positives float64)
	// RuleAccepted is called for every rule added to the theory of the current class.
	RuleAccepted(class string, r *model.Rule)
	// ClassFinished is called with the final rules of a class.
	ClassFinished(class string, rules []*model.Rule)
}

type nopObserver struct{}

func (nopObserver) ClassStarted(string, float64)        {}
func (nopObserver) RuleAccepted(string, *model.Rule)    {}
func (nopObserver) ClassFinished(string, []*model.Rule) {}
