package catalog

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// Report summarises the exhaustive replay performed at load time.
type Report struct {
	// Paths is the number of distinct answer paths that end the interview.
	Paths int
	// Ambiguous lists the leaves where more than one category survives.
	Ambiguous []AmbiguousLeaf
}

// AmbiguousLeaf is an answer path after which no question separates the
// remaining categories.
type AmbiguousLeaf struct {
	Path       string               `json:"path"`
	Candidates []interview.Category `json:"candidates"`
}

func (c *Catalog) checkQuestion(q *Question) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("question %s: "+format, append([]any{q.Key}, args...)...))
	}

	if q.Type != interview.QuestionTypeSingleChoice {
		fail("unsupported type %q", q.Type)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		fail("empty prompt")
	}
	if len(q.Options) < 2 {
		fail("needs at least two options, has %d", len(q.Options))
	}

	seen := make(map[interview.AnswerValue]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if opt.Value == "" {
			fail("option with empty value")
			continue
		}
		if _, dup := seen[opt.Value]; dup {
			fail("option %s listed twice", opt.Value)
		}
		seen[opt.Value] = struct{}{}

		if len(opt.Allow) > 0 && len(opt.Exclude) > 0 {
			fail("option %s sets both allow and exclude", opt.Value)
		}
		for _, code := range append(append([]interview.Category(nil), opt.Allow...), opt.Exclude...) {
			if _, ok := c.byCode[code]; !ok {
				fail("option %s references unknown category %s", opt.Value, code)
			}
		}
	}

	for key, values := range q.Requires {
		if key == q.Key {
			fail("requires itself")
			continue
		}
		dep, ok := c.byKey[key]
		if !ok {
			fail("requires unknown question %s", key)
			continue
		}
		if len(values) == 0 {
			fail("requires %s with no accepted values", key)
		}
		for _, v := range values {
			if _, ok := dep.Option(v); !ok {
				fail("requires %s=%s which is not an option", key, v)
			}
		}
	}
	return errs
}

// replay walks every path the interview can take from an empty answer set,
// asking questions exactly the way sessions do. It fails when a path empties
// the candidate set or when some category can never be recommended.
func (c *Catalog) replay() (Report, error) {
	var report Report
	reached := make(map[interview.Category]bool, c.universe.Len())

	var walk func(answers Answers, path []string, remaining interview.CategorySet) error
	leaf := func(path []string, remaining interview.CategorySet) {
		report.Paths++
		winner, _ := remaining.Lowest()
		reached[winner] = true
		if remaining.Len() > 1 {
			report.Ambiguous = append(report.Ambiguous, AmbiguousLeaf{
				Path:       strings.Join(path, " > "),
				Candidates: remaining.Codes(),
			})
		}
	}

	walk = func(answers Answers, path []string, remaining interview.CategorySet) error {
		if remaining.Len() == 1 {
			leaf(path, remaining)
			return nil
		}
		q := c.FirstDiscriminating(answers, remaining)
		if q == nil {
			leaf(path, remaining)
			return nil
		}
		for _, opt := range q.Options {
			step := fmt.Sprintf("%s=%s", q.Key, opt.Value)
			next := remaining.Intersect(q.PossibleCategoriesGiven(opt.Value, answers))
			if next.IsEmpty() {
				return fmt.Errorf("path %q: %w", strings.Join(append(path, step), " > "), interview.ErrNoCandidates)
			}
			nextPath := append(append([]string(nil), path...), step)
			if opt.Terminal {
				leaf(nextPath, next)
				continue
			}
			answers[q.Key] = opt.Value
			err := walk(answers, nextPath, next)
			delete(answers, q.Key)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(Answers{}, nil, c.universe); err != nil {
		return Report{}, fmt.Errorf("invalid catalog: %w", err)
	}

	var missing []string
	for _, code := range c.universe.Codes() {
		if !reached[code] {
			missing = append(missing, string(code))
		}
	}
	if len(missing) > 0 {
		return Report{}, fmt.Errorf("invalid catalog: categories never recommended: %s", strings.Join(missing, ", "))
	}
	return report, nil
}
