package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/store"
)

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := store.NewGormStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemoryStore()) })
	t.Run("gorm-sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func sampleSession(id, caseID string, at time.Time) interview.Session {
	return interview.Session{
		ID:        id,
		CaseID:    caseID,
		Status:    interview.StatusActive,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestCreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.Create(ctx, sampleSession("s-1", "case-1", now)))

		got, err := s.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, "case-1", got.CaseID)
		assert.Equal(t, interview.StatusActive, got.Status)
		assert.Empty(t, got.Answers)
		assert.Nil(t, got.Recommendation)
		assert.True(t, now.Equal(got.CreatedAt))
	})
}

func TestCreateDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		require.NoError(t, s.Create(ctx, sampleSession("dup", "case", now)))
		err := s.Create(ctx, sampleSession("dup", "other", now))
		assert.True(t, errors.Is(err, interview.ErrDuplicateSession), "got %v", err)
	})
}

func TestGetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		_, err := s.Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, interview.ErrSessionNotFound))
	})
}

func TestPutRoundTripsAnswersAndRecommendation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)
		session := sampleSession("s-2", "case-2", now)
		require.NoError(t, s.Create(ctx, session))

		session.Answers = []interview.Answer{
			{Key: interview.KeyPurpose, Value: "adoption", Step: 1, AnsweredAt: now},
			{Key: interview.KeyAdoptionCompleted, Value: "in_process", Step: 2, AnsweredAt: now.Add(time.Second)},
		}
		session.Status = interview.StatusComplete
		session.Recommendation = &interview.Recommendation{
			Category:   "IR-3",
			Ambiguous:  true,
			Candidates: []interview.Category{"IR-3", "IR-4"},
			DecidedAt:  now.Add(2 * time.Second),
		}
		session.UpdatedAt = now.Add(2 * time.Second)
		require.NoError(t, s.Put(ctx, session))

		got, err := s.Get(ctx, "s-2")
		require.NoError(t, err)
		require.Len(t, got.Answers, 2)
		assert.Equal(t, interview.KeyPurpose, got.Answers[0].Key)
		assert.Equal(t, interview.AnswerValue("in_process"), got.Answers[1].Value)
		assert.Equal(t, 2, got.Answers[1].Step)
		require.NotNil(t, got.Recommendation)
		assert.Equal(t, interview.Category("IR-3"), got.Recommendation.Category)
		assert.True(t, got.Recommendation.Ambiguous)
		assert.Equal(t, []interview.Category{"IR-3", "IR-4"}, got.Recommendation.Candidates)
		assert.True(t, got.IsComplete())

		// a reset clears the log and the recommendation
		session.Answers = nil
		session.Recommendation = nil
		session.Status = interview.StatusActive
		require.NoError(t, s.Put(ctx, session))

		got, err = s.Get(ctx, "s-2")
		require.NoError(t, err)
		assert.Empty(t, got.Answers)
		assert.Nil(t, got.Recommendation)
		assert.False(t, got.IsComplete())
	})
}

func TestPutUnknownSession(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		err := s.Put(context.Background(), sampleSession("ghost", "case", time.Now().UTC()))
		assert.True(t, errors.Is(err, interview.ErrSessionNotFound))
	})
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	session := sampleSession("copy", "case", time.Now().UTC())
	session.Answers = []interview.Answer{{Key: interview.KeyPurpose, Value: "study", Step: 1}}
	require.NoError(t, s.Create(ctx, session))

	session.Answers[0].Value = "tourism"
	got, err := s.Get(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, interview.AnswerValue("study"), got.Answers[0].Value)

	got.Answers[0].Value = "family"
	again, err := s.Get(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, interview.AnswerValue("study"), again.Answers[0].Value)
}

func TestDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, sampleSession("gone", "case", time.Now().UTC())))

		require.NoError(t, s.Delete(ctx, "gone"))
		_, err := s.Get(ctx, "gone")
		assert.True(t, errors.Is(err, interview.ErrSessionNotFound))
		assert.True(t, errors.Is(s.Delete(ctx, "gone"), interview.ErrSessionNotFound))
	})
}

func TestListByCaseOrdersByCreation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.Create(ctx, sampleSession("b", "case-a", base.Add(time.Minute))))
		require.NoError(t, s.Create(ctx, sampleSession("a", "case-a", base)))
		require.NoError(t, s.Create(ctx, sampleSession("c", "case-b", base)))

		got, err := s.ListByCase(ctx, "case-a")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)

		none, err := s.ListByCase(ctx, "case-z")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestDeleteExpired(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Second)

		stale := sampleSession("stale", "case", now.Add(-2*time.Hour))
		stale.Answers = []interview.Answer{{Key: interview.KeyPurpose, Value: "study", Step: 1, AnsweredAt: stale.UpdatedAt}}
		require.NoError(t, s.Create(ctx, stale))
		require.NoError(t, s.Create(ctx, sampleSession("fresh", "case", now)))

		removed, err := s.DeleteExpired(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.Get(ctx, "stale")
		assert.True(t, errors.Is(err, interview.ErrSessionNotFound))
		_, err = s.Get(ctx, "fresh")
		assert.NoError(t, err)
	})
}
