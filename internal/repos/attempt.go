package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/brightpath/onboardhub-backend/internal/pkg/errors"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

type AttemptRepo interface {
	// NextNumber returns the attempt number the next submission would get.
	NextNumber(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) (int, error)
	// Append writes the attempt and its decision record in one transaction.
	// The attempt number is re-derived inside the transaction; a concurrent
	// submission that claimed the same number yields ErrConflict.
	Append(ctx context.Context, attempt *types.QuizAttempt, decision *types.DecisionRecord) error
	ListByUserModule(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) ([]*types.QuizAttempt, error)
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRepo {
	return &attemptRepo{db: db, log: baseLog.With("repo", "AttemptRepo")}
}

func (r *attemptRepo) NextNumber(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.QuizAttempt{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *attemptRepo) Append(ctx context.Context, attempt *types.QuizAttempt, decision *types.DecisionRecord) error {
	if attempt == nil {
		return fmt.Errorf("attempt required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := r.NextNumber(ctx, tx, attempt.UserID, attempt.ModuleID)
		if err != nil {
			return err
		}
		if attempt.AttemptNumber != next {
			return fmt.Errorf("attempt %d already claimed for user %s module %s: %w",
				attempt.AttemptNumber, attempt.UserID, attempt.ModuleID, apperrors.ErrConflict)
		}
		if attempt.ID == uuid.Nil {
			attempt.ID = uuid.New()
		}
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		if decision != nil {
			if decision.ID == uuid.Nil {
				decision.ID = uuid.New()
			}
			decision.AttemptID = attempt.ID
			if err := tx.Create(decision).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *attemptRepo) ListByUserModule(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) ([]*types.QuizAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.QuizAttempt
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("attempt_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
