package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

type DepartmentSettingsRepo interface {
	// GetByDepartment returns nil (no error) when the department has no
	// settings row; callers treat that as all capabilities off.
	GetByDepartment(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) (*types.DepartmentSettings, error)
}

type departmentSettingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDepartmentSettingsRepo(db *gorm.DB, baseLog *logger.Logger) DepartmentSettingsRepo {
	return &departmentSettingsRepo{db: db, log: baseLog.With("repo", "DepartmentSettingsRepo")}
}

func (r *departmentSettingsRepo) GetByDepartment(ctx context.Context, tx *gorm.DB, departmentID uuid.UUID) (*types.DepartmentSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.DepartmentSettings
	if err := transaction.WithContext(ctx).
		Where("department_id = ?", departmentID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
