package types

import (
	"time"

	"github.com/google/uuid"
)

// TrainingModule is one unit of a learner's roadmap. The record itself is
// owned by the out-of-scope roadmap pipeline; this engine only mutates the
// status flags.
type TrainingModule struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID         uuid.UUID `gorm:"type:uuid;not null;index:idx_module_path" json:"company_id"`
	DepartmentID      uuid.UUID `gorm:"type:uuid;not null;index:idx_module_path" json:"department_id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index:idx_module_path" json:"user_id"`
	Title             string    `gorm:"not null" json:"title"`
	Description       string    `json:"description"`
	EstimatedDuration string    `json:"estimated_duration"`
	Completed         bool      `gorm:"not null;default:false" json:"completed"`
	QuizGenerated     bool      `gorm:"not null;default:false" json:"quiz_generated"`
	Locked            bool      `gorm:"not null;default:false" json:"locked"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TrainingModule) TableName() string {
	return "training_module"
}
