package interview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	model "github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/service/eligibility"
	"github.com/zhouzirui/visa-interview/backend/internal/store"
)

// Step is what NextQuestion hands back: either the question to ask or the
// recommendation that ended the interview.
type Step struct {
	SessionID      string
	Question       *catalog.Question
	Recommendation *model.Recommendation
	Remaining      model.CategorySet
}

// Complete reports whether the step carries a final recommendation.
func (s Step) Complete() bool {
	return s.Recommendation != nil
}

// Progress is a read-only snapshot of a session.
type Progress struct {
	Session   model.Session
	Effective []model.Answer
	Remaining model.CategorySet
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionTTL makes sessions idle for longer than ttl unreachable.
// Zero disables expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service drives interviews. All mutations of one session are serialised;
// different sessions proceed in parallel.
type Service struct {
	catalog *catalog.Catalog
	store   store.Store
	locks   *keyedMutex
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewService wires the orchestrator.
func NewService(cat *catalog.Catalog, st store.Store, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		store:   st,
		locks:   newKeyedMutex(),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog exposes the catalog the service was built with.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Start creates an active session with no answers. An empty sessionID gets
// a generated one.
func (s *Service) Start(ctx context.Context, sessionID, caseID string) (model.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	now := s.clock()
	session := model.Session{
		ID:        sessionID,
		CaseID:    caseID,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, model.ErrDuplicateSession) {
			return model.Session{}, err
		}
		return model.Session{}, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	s.logger.Info("interview started", zap.String("session_id", sessionID), zap.String("case_id", caseID))
	return session, nil
}

// NextQuestion runs the filter and either returns the next question or
// completes the session. Calling it again without a new answer returns the
// same question.
func (s *Service) NextQuestion(ctx context.Context, sessionID string) (Step, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return Step{}, err
	}
	if session.IsComplete() {
		return Step{}, model.ErrSessionAlreadyComplete
	}

	res, err := eligibility.Evaluate(s.catalog, session.Answers)
	if err != nil {
		s.logger.Error("evaluate answers", zap.String("session_id", sessionID), zap.Error(err))
		return Step{}, fmt.Errorf("session %s: %w", sessionID, err)
	}

	decision := eligibility.Decide(s.catalog, res)
	if decision.Complete {
		now := s.clock()
		session.Status = model.StatusComplete
		session.PendingKey = ""
		session.Recommendation = &model.Recommendation{
			Category:   decision.Category,
			Ambiguous:  decision.Ambiguous,
			Candidates: res.Remaining.Codes(),
			DecidedAt:  now,
		}
		session.UpdatedAt = now
		if err := s.store.Put(ctx, session); err != nil {
			return Step{}, fmt.Errorf("save session %s: %w", sessionID, err)
		}

		fields := []zap.Field{
			zap.String("session_id", sessionID),
			zap.String("category", string(decision.Category)),
			zap.Int("answers", len(res.Effective)),
		}
		if decision.Ambiguous {
			s.logger.Warn("interview complete with ambiguous result",
				append(fields, zap.Strings("candidates", res.Remaining.Strings()))...)
		} else {
			s.logger.Info("interview complete", fields...)
		}

		rec := *session.Recommendation
		return Step{SessionID: sessionID, Recommendation: &rec, Remaining: res.Remaining}, nil
	}

	if session.PendingKey != decision.Next.Key {
		session.PendingKey = decision.Next.Key
		session.UpdatedAt = s.clock()
		if err := s.store.Put(ctx, session); err != nil {
			return Step{}, fmt.Errorf("save session %s: %w", sessionID, err)
		}
	}

	s.logger.Debug("next question",
		zap.String("session_id", sessionID),
		zap.String("question_key", string(decision.Next.Key)),
		zap.Int("remaining", res.Remaining.Len()),
	)
	return Step{SessionID: sessionID, Question: decision.Next, Remaining: res.Remaining}, nil
}

// SubmitAnswer appends an answer to the session log. The key must be the
// question last returned by NextQuestion or one that is already answered.
// Completion is left to the next NextQuestion call.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID string, key model.QuestionKey, value model.AnswerValue) (model.Answer, error) {
	q, ok := s.catalog.Lookup(key)
	if !ok {
		return model.Answer{}, fmt.Errorf("%q: %w", key, model.ErrUnknownQuestion)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return model.Answer{}, err
	}
	if session.IsComplete() {
		return model.Answer{}, model.ErrSessionAlreadyComplete
	}

	effective := eligibility.EffectiveAnswers(session.Answers)
	if session.PendingKey != key && !containsKey(effective, key) {
		return model.Answer{}, fmt.Errorf("%q: %w", key, model.ErrQuestionNotAsked)
	}
	if _, ok := q.Option(value); !ok {
		return model.Answer{}, fmt.Errorf("%q for %s: %w", value, key, model.ErrInvalidAnswerValue)
	}

	now := s.clock()
	answer := model.Answer{
		Key:        key,
		Value:      value,
		Step:       len(session.Answers) + 1,
		AnsweredAt: now,
	}
	session.Answers = append(session.Answers, answer)

	if _, err := eligibility.Evaluate(s.catalog, session.Answers); err != nil {
		s.logger.Error("answer rejected by filter",
			zap.String("session_id", sessionID),
			zap.String("question_key", string(key)),
			zap.Error(err),
		)
		return model.Answer{}, fmt.Errorf("session %s: %w", sessionID, err)
	}

	session.PendingKey = ""
	session.UpdatedAt = now
	if err := s.store.Put(ctx, session); err != nil {
		return model.Answer{}, fmt.Errorf("save session %s: %w", sessionID, err)
	}

	s.logger.Debug("answer recorded",
		zap.String("session_id", sessionID),
		zap.String("question_key", string(key)),
		zap.String("answer", string(value)),
		zap.Int("step", answer.Step),
	)
	return answer, nil
}

// Progress returns the session with its current candidate set.
func (s *Service) Progress(ctx context.Context, sessionID string) (Progress, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}

	res, err := eligibility.Evaluate(s.catalog, session.Answers)
	if err != nil {
		return Progress{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return Progress{Session: session, Effective: res.Effective, Remaining: res.Remaining}, nil
}

// History lists the live sessions of a case, oldest first.
func (s *Service) History(ctx context.Context, caseID string) ([]model.Session, error) {
	sessions, err := s.store.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("history of case %s: %w", caseID, err)
	}

	out := sessions[:0]
	for _, session := range sessions {
		if !s.expired(session) {
			out = append(out, session)
		}
	}
	return out, nil
}

// Reset wipes the answer log and the recommendation, returning the session
// to active. It is the only way out of the complete state.
func (s *Service) Reset(ctx context.Context, sessionID string) (model.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return model.Session{}, err
	}

	cleared := len(session.Answers)
	session.Answers = nil
	session.PendingKey = ""
	session.Recommendation = nil
	session.Status = model.StatusActive
	session.UpdatedAt = s.clock()
	if err := s.store.Put(ctx, session); err != nil {
		return model.Session{}, fmt.Errorf("save session %s: %w", sessionID, err)
	}

	s.logger.Info("interview reset", zap.String("session_id", sessionID), zap.Int("cleared_answers", cleared))
	return session, nil
}

// PurgeExpired deletes sessions idle for longer than the configured TTL.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	removed, err := s.store.DeleteExpired(ctx, s.clock().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired sessions purged", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *Service) load(ctx context.Context, sessionID string) (model.Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return model.Session{}, err
		}
		return model.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if s.expired(session) {
		return model.Session{}, model.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) expired(session model.Session) bool {
	return s.ttl > 0 && s.clock().Sub(session.UpdatedAt) > s.ttl
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func containsKey(answers []model.Answer, key model.QuestionKey) bool {
	for _, a := range answers {
		if a.Key == key {
			return true
		}
	}
	return false
}
