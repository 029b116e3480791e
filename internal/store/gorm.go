package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// GormStore implements Store on top of a relational database. Every write
// runs in its own transaction.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection pool.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the session tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&SessionRecord{}, &AnswerRecord{}); err != nil {
		return fmt.Errorf("migrate interview tables: %w", err)
	}
	return nil
}

func (s *GormStore) Create(ctx context.Context, session interview.Session) error {
	rec := toRecord(session)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SessionRecord{}).Where("id = ?", rec.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check session %s: %w", rec.ID, err)
		}
		if count > 0 {
			return interview.ErrDuplicateSession
		}
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return interview.ErrDuplicateSession
			}
			return fmt.Errorf("insert session %s: %w", rec.ID, err)
		}
		return insertAnswers(tx, rec.Answers)
	})
}

func (s *GormStore) Get(ctx context.Context, id string) (interview.Session, error) {
	var rec SessionRecord
	err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("step ASC") }).
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return interview.Session{}, interview.ErrSessionNotFound
		}
		return interview.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return fromRecord(rec), nil
}

func (s *GormStore) Put(ctx context.Context, session interview.Session) error {
	rec := toRecord(session)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SessionRecord{}).
			Where("id = ?", rec.ID).
			Select("*").
			Omit(clause.Associations).
			Updates(&rec)
		if res.Error != nil {
			return fmt.Errorf("update session %s: %w", rec.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return interview.ErrSessionNotFound
		}
		if err := tx.Where("session_id = ?", rec.ID).Delete(&AnswerRecord{}).Error; err != nil {
			return fmt.Errorf("clear answers of %s: %w", rec.ID, err)
		}
		return insertAnswers(tx, rec.Answers)
	})
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&AnswerRecord{}).Error; err != nil {
			return fmt.Errorf("delete answers of %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&SessionRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete session %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return interview.ErrSessionNotFound
		}
		return nil
	})
}

func (s *GormStore) ListByCase(ctx context.Context, caseID string) ([]interview.Session, error) {
	var recs []SessionRecord
	err := s.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("step ASC") }).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions of case %s: %w", caseID, err)
	}

	out := make([]interview.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	var removed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&SessionRecord{}).Where("updated_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("find expired sessions: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("session_id IN ?", ids).Delete(&AnswerRecord{}).Error; err != nil {
			return fmt.Errorf("delete expired answers: %w", err)
		}
		res := tx.Where("id IN ?", ids).Delete(&SessionRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete expired sessions: %w", res.Error)
		}
		removed = int(res.RowsAffected)
		return nil
	})
	return removed, err
}

func insertAnswers(tx *gorm.DB, answers []AnswerRecord) error {
	if len(answers) == 0 {
		return nil
	}
	if err := tx.Create(&answers).Error; err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	return nil
}
