// Package eligibility computes which categories remain possible for an
// answer log. Every function here is pure: no I/O, inputs are never
// mutated and the same log always yields the same result.
package eligibility

import (
	"fmt"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// Result is the outcome of replaying an answer log against the catalog.
type Result struct {
	// Remaining holds the still-possible categories, sorted by code.
	Remaining interview.CategorySet
	// Terminal is set when an applied option short-circuits the interview.
	Terminal bool
	// Steps records the remaining count after each effective answer.
	Steps []int
	// Effective is the answer sequence that produced Remaining.
	Effective []interview.Answer
}

// EffectiveAnswers folds the append-only log into the answers in force.
//
// A re-answered key keeps its original position and takes the new value.
// When the value actually changes, answers given after that position are
// dropped: they were chosen in a context that no longer exists and will be
// asked again if still relevant.
func EffectiveAnswers(log []interview.Answer) []interview.Answer {
	out := make([]interview.Answer, 0, len(log))
	for _, a := range log {
		idx := -1
		for i := range out {
			if out[i].Key == a.Key {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			out = append(out, a)
		case out[idx].Value == a.Value:
			// same value again: nothing to reset
		default:
			out = append(out[:idx], a)
		}
	}
	return out
}

// AnswerMap indexes effective answers by key.
func AnswerMap(effective []interview.Answer) catalog.Answers {
	m := make(catalog.Answers, len(effective))
	for _, a := range effective {
		m[a.Key] = a.Value
	}
	return m
}

// Evaluate intersects the category universe with the constraint of every
// effective answer, in order.
func Evaluate(cat *catalog.Catalog, log []interview.Answer) (Result, error) {
	effective := EffectiveAnswers(log)
	remaining := cat.Universe()
	prior := make(catalog.Answers, len(effective))
	steps := make([]int, 0, len(effective))
	terminal := false

	for _, a := range effective {
		q, ok := cat.Lookup(a.Key)
		if !ok {
			return Result{}, fmt.Errorf("answer %d (%s): %w", a.Step, a.Key, interview.ErrUnknownQuestion)
		}

		remaining = remaining.Intersect(q.PossibleCategoriesGiven(a.Value, prior))
		if remaining.IsEmpty() {
			return Result{}, fmt.Errorf("after %s=%s: %w", a.Key, a.Value, interview.ErrNoCandidates)
		}
		if q.IsRelevant(prior) {
			if opt, ok := q.Option(a.Value); ok && opt.Terminal {
				terminal = true
			}
		}

		prior[a.Key] = a.Value
		steps = append(steps, remaining.Len())
	}

	return Result{
		Remaining: remaining,
		Terminal:  terminal,
		Steps:     steps,
		Effective: effective,
	}, nil
}

// SelectNext returns the highest-priority question that is unanswered,
// relevant and still separates remaining, or nil when none is left.
func SelectNext(cat *catalog.Catalog, effective []interview.Answer, remaining interview.CategorySet) *catalog.Question {
	return cat.FirstDiscriminating(AnswerMap(effective), remaining)
}

// Decision is what the interview should do after an evaluation.
type Decision struct {
	Next      *catalog.Question
	Complete  bool
	Category  interview.Category
	Ambiguous bool
}

// Decide applies the termination rule: stop when a single category is
// left, when a terminal option was chosen, or when no question can
// separate the remaining categories. Ties go to the lowest code.
func Decide(cat *catalog.Catalog, res Result) Decision {
	if res.Remaining.Len() == 1 || res.Terminal {
		code, _ := res.Remaining.Lowest()
		return Decision{Complete: true, Category: code, Ambiguous: res.Remaining.Len() > 1}
	}
	if next := SelectNext(cat, res.Effective, res.Remaining); next != nil {
		return Decision{Next: next}
	}
	code, _ := res.Remaining.Lowest()
	return Decision{Complete: true, Category: code, Ambiguous: true}
}
