package interview

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Answer is one entry of the append-only answer log.
type Answer struct {
	Key        QuestionKey `json:"questionKey"`
	Value      AnswerValue `json:"answerValue"`
	Step       int         `json:"stepNumber"`
	AnsweredAt time.Time   `json:"answeredAt"`
}

// Recommendation is fixed when the session completes.
type Recommendation struct {
	Category   Category   `json:"visaType"`
	Ambiguous  bool       `json:"ambiguous"`
	Candidates []Category `json:"candidates"`
	DecidedAt  time.Time  `json:"decidedAt"`
}

// Session is the per-applicant interview state.
type Session struct {
	ID             string          `json:"sessionId"`
	CaseID         string          `json:"caseId"`
	Status         Status          `json:"status"`
	Answers        []Answer        `json:"answers"`
	PendingKey     QuestionKey     `json:"pendingQuestion,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsComplete reports whether a recommendation has been fixed.
func (s *Session) IsComplete() bool {
	return s.Status == StatusComplete
}

// Answered reports whether key appears anywhere in the answer log.
func (s *Session) Answered(key QuestionKey) bool {
	for _, a := range s.Answers {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with the store.
func (s Session) Clone() Session {
	out := s
	out.Answers = append([]Answer(nil), s.Answers...)
	if s.Recommendation != nil {
		rec := *s.Recommendation
		rec.Candidates = append([]Category(nil), s.Recommendation.Candidates...)
		out.Recommendation = &rec
	}
	return out
}
