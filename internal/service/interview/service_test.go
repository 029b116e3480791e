package interview_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	model "github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	interview "github.com/zhouzirui/visa-interview/backend/internal/service/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, opts ...interview.Option) *interview.Service {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return interview.NewService(cat, store.NewMemoryStore(), opts...)
}

// answerFlow asks for the next question until the session completes,
// answering each one from script. It fails if a question outside the
// script is asked.
func answerFlow(t *testing.T, svc *interview.Service, sessionID string, script map[model.QuestionKey]model.AnswerValue) (interview.Step, []model.QuestionKey) {
	t.Helper()
	ctx := context.Background()

	var asked []model.QuestionKey
	for i := 0; i < len(model.AllQuestionKeys())+1; i++ {
		step, err := svc.NextQuestion(ctx, sessionID)
		require.NoError(t, err)
		if step.Complete() {
			return step, asked
		}

		key := step.Question.Key
		value, ok := script[key]
		require.Truef(t, ok, "unexpected question %s (asked so far %v)", key, asked)
		asked = append(asked, key)

		_, err = svc.SubmitAnswer(ctx, sessionID, key, value)
		require.NoError(t, err)
	}
	t.Fatalf("interview %s did not complete", sessionID)
	return interview.Step{}, nil
}

func TestStartCreatesEmptySession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	session, err := svc.Start(ctx, "", "case-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, model.StatusActive, session.Status)
	assert.Empty(t, session.Answers)

	step, err := svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, step.Complete())
	assert.Equal(t, model.KeyPurpose, step.Question.Key)
	assert.Equal(t, svc.Catalog().Universe().Len(), step.Remaining.Len())
}

func TestStartDuplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, "fixed", "case")
	require.NoError(t, err)
	_, err = svc.Start(ctx, "fixed", "case")
	assert.True(t, errors.Is(err, model.ErrDuplicateSession))
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name      string
		script    map[model.QuestionKey]model.AnswerValue
		want      model.Category
		ambiguous bool
		asked     []model.QuestionKey
	}{
		{
			name: "business visitor",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "business", model.KeyEmployerSponsor: "no", model.KeyTreatyCountry: "no",
			},
			want:  "B-1",
			asked: []model.QuestionKey{model.KeyPurpose, model.KeyEmployerSponsor, model.KeyTreatyCountry},
		},
		{
			name: "treaty trader",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "business", model.KeyEmployerSponsor: "no", model.KeyTreatyCountry: "yes",
				model.KeyTradeActivity: "yes",
			},
			want: "E-1",
		},
		{
			name: "treaty investor",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "business", model.KeyEmployerSponsor: "no", model.KeyTreatyCountry: "yes",
				model.KeyTradeActivity: "no", model.KeyInvestment: "yes",
			},
			want: "E-2",
		},
		{
			name:   "tourist completes after one answer",
			script: map[model.QuestionKey]model.AnswerValue{model.KeyPurpose: "tourism"},
			want:   "B-2",
			asked:  []model.QuestionKey{model.KeyPurpose},
		},
		{
			name: "specialty worker",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "employment", model.KeyEmployerSponsor: "yes", model.KeyWorkType: "professional",
				model.KeySameCompany: "no", model.KeyExtraordinaryAbility: "no", model.KeyPermanentIntent: "no",
				model.KeyAustralian: "no",
			},
			want: "H-1B",
		},
		{
			name: "intracompany manager",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "employment", model.KeyEmployerSponsor: "yes", model.KeyWorkType: "professional",
				model.KeySameCompany: "yes", model.KeyManagerial: "yes",
			},
			want: "L-1A",
		},
		{
			name: "crew member short-circuits",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "transit", model.KeyCrewMember: "yes",
			},
			want:  "C-1/D",
			asked: []model.QuestionKey{model.KeyPurpose, model.KeyCrewMember},
		},
		{
			name: "foreign official in transit",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "transit", model.KeyCrewMember: "no", model.KeyUNRelated: "no",
				model.KeyGovernmentOfficial: "yes",
			},
			want: "C-3",
		},
		{
			name: "diplomatic staff",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "diplomatic", model.KeyInternationalOrg: "no", model.KeyDiplomat: "no",
				model.KeyGovernmentOfficial: "no",
			},
			want: "A-3",
		},
		{
			name: "adoption in process is ambiguous",
			script: map[model.QuestionKey]model.AnswerValue{
				model.KeyPurpose: "adoption", model.KeyAdoptionCompleted: "in_process",
			},
			want:      "IR-3",
			ambiguous: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t)
			session, err := svc.Start(context.Background(), "", "case")
			require.NoError(t, err)

			step, asked := answerFlow(t, svc, session.ID, tt.script)
			require.NotNil(t, step.Recommendation)
			assert.Equal(t, tt.want, step.Recommendation.Category)
			assert.Equal(t, tt.ambiguous, step.Recommendation.Ambiguous)
			if tt.asked != nil {
				assert.Equal(t, tt.asked, asked)
			}

			progress, err := svc.Progress(context.Background(), session.ID)
			require.NoError(t, err)
			assert.True(t, progress.Session.IsComplete())
			assert.Equal(t, tt.want, progress.Session.Recommendation.Category)
		})
	}
}

func TestNextQuestionIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)

	_, err = svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "business")
	require.NoError(t, err)

	first, err := svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	before, err := svc.Progress(ctx, session.ID)
	require.NoError(t, err)

	second, err := svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	after, err := svc.Progress(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Question.Key, second.Question.Key)
	assert.True(t, first.Remaining.Equal(second.Remaining))
	assert.Equal(t, before.Session, after.Session)
}

func TestSubmitAnswerRejectsQuestionNotAsked(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "business")
	assert.True(t, errors.Is(err, model.ErrQuestionNotAsked), "purpose was never returned: %v", err)
	assert.True(t, errors.Is(err, model.ErrUnknownQuestion))

	_, err = svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyTreatyCountry, "no")
	assert.True(t, errors.Is(err, model.ErrQuestionNotAsked))
}

func TestSubmitAnswerValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)
	_, err = svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, session.ID, "favouriteColour", "blue")
	assert.True(t, errors.Is(err, model.ErrUnknownQuestion))
	assert.False(t, errors.Is(err, model.ErrQuestionNotAsked))

	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "space")
	assert.True(t, errors.Is(err, model.ErrInvalidAnswerValue))

	_, err = svc.SubmitAnswer(ctx, "missing", model.KeyPurpose, "study")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))

	answer, err := svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "study")
	require.NoError(t, err)
	assert.Equal(t, 1, answer.Step)
}

func TestCompleteSessionRejectsEverythingButReset(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)

	step, _ := answerFlow(t, svc, session.ID, map[model.QuestionKey]model.AnswerValue{model.KeyPurpose: "medical"})
	require.True(t, step.Complete())

	_, err = svc.NextQuestion(ctx, session.ID)
	assert.True(t, errors.Is(err, model.ErrSessionAlreadyComplete))
	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "study")
	assert.True(t, errors.Is(err, model.ErrSessionAlreadyComplete))

	reset, err := svc.Reset(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, reset.Status)
	assert.Empty(t, reset.Answers)
	assert.Nil(t, reset.Recommendation)

	next, err := svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyPurpose, next.Question.Key)
}

func TestReanswerResetsNarrowing(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)

	for _, a := range []struct {
		key   model.QuestionKey
		value model.AnswerValue
	}{
		{model.KeyPurpose, "business"},
		{model.KeyEmployerSponsor, "no"},
		{model.KeyTreatyCountry, "no"},
	} {
		step, err := svc.NextQuestion(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, a.key, step.Question.Key)
		_, err = svc.SubmitAnswer(ctx, session.ID, a.key, a.value)
		require.NoError(t, err)
	}

	progress, err := svc.Progress(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-1"}, progress.Remaining.Strings())

	// change of mind before the interview is closed
	answer, err := svc.SubmitAnswer(ctx, session.ID, model.KeyTreatyCountry, "yes")
	require.NoError(t, err)
	assert.Equal(t, 4, answer.Step)

	progress, err = svc.Progress(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-1", "E-1", "E-2"}, progress.Remaining.Strings())
	assert.Len(t, progress.Session.Answers, 4, "log stays append-only")
	assert.Len(t, progress.Effective, 3)

	step, err := svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KeyTradeActivity, step.Question.Key)
}

func TestRemainingNeverGrowsDuringInterview(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)

	script := map[model.QuestionKey]model.AnswerValue{
		model.KeyPurpose: "immigration", model.KeyExtraordinaryAbility: "no",
		model.KeyAdvancedDegree: "no", model.KeyInvestorCapital: "no",
	}

	prev := svc.Catalog().Universe().Len()
	for {
		step, err := svc.NextQuestion(ctx, session.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, step.Remaining.Len(), prev)
		prev = step.Remaining.Len()
		if step.Complete() {
			assert.Equal(t, model.Category("EB-3"), step.Recommendation.Category)
			return
		}
		_, err = svc.SubmitAnswer(ctx, session.ID, step.Question.Key, script[step.Question.Key])
		require.NoError(t, err)
	}
}

func TestConcurrentSubmissionsAreSerialised(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	session, err := svc.Start(ctx, "", "case")
	require.NoError(t, err)
	_, err = svc.NextQuestion(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, "study")
	require.NoError(t, err)

	const writers = 16
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		value := model.AnswerValue("study")
		if i%2 == 1 {
			value = "exchange"
		}
		g.Go(func() error {
			_, err := svc.SubmitAnswer(ctx, session.ID, model.KeyPurpose, value)
			return err
		})
	}
	require.NoError(t, g.Wait())

	progress, err := svc.Progress(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, progress.Session.Answers, writers+1)
	for i, a := range progress.Session.Answers {
		assert.Equal(t, i+1, a.Step, "steps must be gap free")
	}
}

func TestConcurrentSessionsProceedIndependently(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("parallel-%d", i)
		g.Go(func() error {
			if _, err := svc.Start(gctx, id, "case-parallel"); err != nil {
				return err
			}
			for {
				step, err := svc.NextQuestion(gctx, id)
				if err != nil {
					return err
				}
				if step.Complete() {
					if step.Recommendation.Category != "F-1" {
						return fmt.Errorf("%s: got %s", id, step.Recommendation.Category)
					}
					return nil
				}
				value := model.AnswerValue("study")
				if step.Question.Key == model.KeyStudyLevel {
					value = "academic"
				}
				if _, err := svc.SubmitAnswer(gctx, id, step.Question.Key, value); err != nil {
					return err
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	history, err := svc.History(ctx, "case-parallel")
	require.NoError(t, err)
	assert.Len(t, history, 8)
}

func TestExpiredSessionsDisappear(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newService(t, interview.WithClock(clock.Now), interview.WithSessionTTL(time.Hour))
	ctx := context.Background()

	old, err := svc.Start(ctx, "old", "case-ttl")
	require.NoError(t, err)
	clock.Advance(50 * time.Minute)
	_, err = svc.Start(ctx, "young", "case-ttl")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)

	_, err = svc.NextQuestion(ctx, old.ID)
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))

	history, err := svc.History(ctx, "case-ttl")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "young", history[0].ID)

	removed, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestResetUnknownSession(t *testing.T) {
	_, err := newService(t).Reset(context.Background(), "nope")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
}
