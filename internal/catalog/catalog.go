package catalog

import (
	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// Answers maps a question key to the value currently in effect for it.
type Answers map[interview.QuestionKey]interview.AnswerValue

// Option is one selectable answer of a question. At most one of Allow and
// Exclude is set; an option with neither does not narrow the candidates.
type Option struct {
	Value    interview.AnswerValue `json:"value" yaml:"value"`
	Label    string                `json:"label" yaml:"label"`
	Allow    []interview.Category  `json:"allow,omitempty" yaml:"allow"`
	Exclude  []interview.Category  `json:"exclude,omitempty" yaml:"exclude"`
	Terminal bool                  `json:"terminal,omitempty" yaml:"terminal"`

	allowSet   interview.CategorySet
	excludeSet interview.CategorySet
}

// Question is a read-only catalog entry.
type Question struct {
	Key      interview.QuestionKey                             `json:"key" yaml:"key"`
	Prompt   string                                            `json:"question" yaml:"prompt"`
	Type     interview.QuestionType                            `json:"type" yaml:"type"`
	Options  []Option                                          `json:"options" yaml:"options"`
	Requires map[interview.QuestionKey][]interview.AnswerValue `json:"requires,omitempty" yaml:"requires"`

	universe interview.CategorySet
}

// Option returns the option carrying value.
func (q *Question) Option(value interview.AnswerValue) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].Value == value {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// IsRelevant reports whether every precondition of q is satisfied by prior.
func (q *Question) IsRelevant(prior Answers) bool {
	for key, accepted := range q.Requires {
		got, ok := prior[key]
		if !ok || !containsValue(accepted, got) {
			return false
		}
	}
	return true
}

// PossibleCategoriesGiven returns the categories compatible with answering
// value. Unmet preconditions and unknown values leave the universe intact.
func (q *Question) PossibleCategoriesGiven(value interview.AnswerValue, prior Answers) interview.CategorySet {
	if !q.IsRelevant(prior) {
		return q.universe
	}
	opt, ok := q.Option(value)
	if !ok {
		return q.universe
	}
	return opt.categories(q.universe)
}

// Discriminates reports whether some option narrows remaining to a strict,
// non-empty subset.
func (q *Question) Discriminates(remaining interview.CategorySet) bool {
	for i := range q.Options {
		narrowed := remaining.Intersect(q.Options[i].categories(q.universe))
		if !narrowed.IsEmpty() && narrowed.Len() < remaining.Len() {
			return true
		}
	}
	return false
}

func (o *Option) categories(universe interview.CategorySet) interview.CategorySet {
	switch {
	case len(o.Allow) > 0:
		return o.allowSet
	case len(o.Exclude) > 0:
		return universe.Without(o.excludeSet)
	default:
		return universe
	}
}

// Catalog is the immutable question registry. It is safe for concurrent use.
type Catalog struct {
	categories []interview.CategoryInfo
	byCode     map[interview.Category]interview.CategoryInfo
	universe   interview.CategorySet
	questions  []*Question
	byKey      map[interview.QuestionKey]*Question
	report     Report
}

// Lookup returns the question registered under key.
func (c *Catalog) Lookup(key interview.QuestionKey) (*Question, bool) {
	q, ok := c.byKey[key]
	return q, ok
}

// Questions returns the questions in priority order.
func (c *Catalog) Questions() []*Question {
	return append([]*Question(nil), c.questions...)
}

// Universe returns every category the catalog knows.
func (c *Catalog) Universe() interview.CategorySet {
	return c.universe
}

// Categories returns category metadata in catalog order.
func (c *Catalog) Categories() []interview.CategoryInfo {
	return append([]interview.CategoryInfo(nil), c.categories...)
}

// Category returns metadata for code.
func (c *Catalog) Category(code interview.Category) (interview.CategoryInfo, bool) {
	info, ok := c.byCode[code]
	return info, ok
}

// Report returns what load-time validation found.
func (c *Catalog) Report() Report {
	out := c.report
	out.Ambiguous = append([]AmbiguousLeaf(nil), c.report.Ambiguous...)
	return out
}

// FirstDiscriminating returns the first question in priority order that is
// not yet answered, is relevant and still separates remaining. It returns
// nil when no such question is left.
func (c *Catalog) FirstDiscriminating(answered Answers, remaining interview.CategorySet) *Question {
	for _, q := range c.questions {
		if _, done := answered[q.Key]; done {
			continue
		}
		if !q.IsRelevant(answered) {
			continue
		}
		if q.Discriminates(remaining) {
			return q
		}
	}
	return nil
}

func containsValue(values []interview.AnswerValue, v interview.AnswerValue) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
