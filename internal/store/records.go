package store

import (
	"strings"
	"time"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// SessionRecord is the interview_sessions row.
type SessionRecord struct {
	ID                  string         `gorm:"primaryKey;column:id;type:varchar(64)"`
	CaseID              string         `gorm:"column:case_id;type:varchar(128);index;not null"`
	Status              string         `gorm:"column:status;type:varchar(20);not null"`
	PendingKey          string         `gorm:"column:pending_key;type:varchar(64)"`
	RecommendedCategory string         `gorm:"column:recommended_category;type:varchar(16)"`
	Ambiguous           bool           `gorm:"column:ambiguous;not null;default:false"`
	Candidates          string         `gorm:"column:candidates;type:text"`
	DecidedAt           *time.Time     `gorm:"column:decided_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime:false;not null"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime:false;index;not null"`
	Answers             []AnswerRecord `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (SessionRecord) TableName() string { return "interview_sessions" }

// AnswerRecord is one interview_answers row; the log is ordered by Step.
type AnswerRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	SessionID   string    `gorm:"column:session_id;type:varchar(64);not null;uniqueIndex:idx_answer_session_step"`
	Step        int       `gorm:"column:step;not null;uniqueIndex:idx_answer_session_step"`
	QuestionKey string    `gorm:"column:question_key;type:varchar(64);not null"`
	AnswerValue string    `gorm:"column:answer_value;type:varchar(128);not null"`
	AnsweredAt  time.Time `gorm:"column:answered_at;not null"`
}

func (AnswerRecord) TableName() string { return "interview_answers" }

func toRecord(s interview.Session) SessionRecord {
	rec := SessionRecord{
		ID:         s.ID,
		CaseID:     s.CaseID,
		Status:     string(s.Status),
		PendingKey: string(s.PendingKey),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		Answers:    make([]AnswerRecord, 0, len(s.Answers)),
	}
	if r := s.Recommendation; r != nil {
		decided := r.DecidedAt
		rec.RecommendedCategory = string(r.Category)
		rec.Ambiguous = r.Ambiguous
		rec.DecidedAt = &decided
		codes := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			codes[i] = string(c)
		}
		rec.Candidates = strings.Join(codes, ",")
	}
	for _, a := range s.Answers {
		rec.Answers = append(rec.Answers, AnswerRecord{
			SessionID:   s.ID,
			Step:        a.Step,
			QuestionKey: string(a.Key),
			AnswerValue: string(a.Value),
			AnsweredAt:  a.AnsweredAt,
		})
	}
	return rec
}

func fromRecord(rec SessionRecord) interview.Session {
	s := interview.Session{
		ID:         rec.ID,
		CaseID:     rec.CaseID,
		Status:     interview.Status(rec.Status),
		PendingKey: interview.QuestionKey(rec.PendingKey),
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
	if rec.RecommendedCategory != "" {
		r := &interview.Recommendation{
			Category:  interview.Category(rec.RecommendedCategory),
			Ambiguous: rec.Ambiguous,
		}
		if rec.DecidedAt != nil {
			r.DecidedAt = rec.DecidedAt.UTC()
		}
		if rec.Candidates != "" {
			for _, code := range strings.Split(rec.Candidates, ",") {
				r.Candidates = append(r.Candidates, interview.Category(code))
			}
		}
		s.Recommendation = r
	}
	for _, a := range rec.Answers {
		s.Answers = append(s.Answers, interview.Answer{
			Key:        interview.QuestionKey(a.QuestionKey),
			Value:      interview.AnswerValue(a.AnswerValue),
			Step:       a.Step,
			AnsweredAt: a.AnsweredAt.UTC(),
		})
	}
	return s
}
