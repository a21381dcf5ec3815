package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Quiz is the generated assessment artifact for a module. Immutable once
// persisted; grading never touches it. Sections are stored as JSON so the
// row is written all-or-nothing.
type Quiz struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	CompanyID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	DepartmentID     uuid.UUID      `gorm:"type:uuid;not null" json:"department_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ModuleTitle      string         `gorm:"not null" json:"module_title"`
	Kind             string         `gorm:"not null" json:"kind"`
	MCQ              datatypes.JSON `gorm:"type:jsonb;not null" json:"mcq"`
	OneLiners        datatypes.JSON `gorm:"type:jsonb;not null" json:"one_liners"`
	Coding           datatypes.JSON `gorm:"type:jsonb" json:"coding"`
	CritiqueScore    int            `gorm:"not null;default:0" json:"critique_score"`
	CritiquePassed   bool           `gorm:"not null;default:false" json:"critique_passed"`
	GenerateAttempts int            `gorm:"not null;default:1" json:"generate_attempts"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (Quiz) TableName() string {
	return "quiz"
}
