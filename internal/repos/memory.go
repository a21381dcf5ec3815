package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

type AgentMemoryRepo interface {
	// GetByUserModule returns nil (no error) when no summary exists yet.
	GetByUserModule(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) (*types.AgentMemorySummary, error)
}

type agentMemoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentMemoryRepo(db *gorm.DB, baseLog *logger.Logger) AgentMemoryRepo {
	return &agentMemoryRepo{db: db, log: baseLog.With("repo", "AgentMemoryRepo")}
}

func (r *agentMemoryRepo) GetByUserModule(ctx context.Context, tx *gorm.DB, userID, moduleID uuid.UUID) (*types.AgentMemorySummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.AgentMemorySummary
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("updated_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
