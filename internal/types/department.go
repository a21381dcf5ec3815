package types

import (
	"time"

	"github.com/google/uuid"
)

// DepartmentSettings carries per-department capabilities. Written by the
// out-of-scope settings CRUD; read-only here.
type DepartmentSettings struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CompanyID            uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	DepartmentID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"department_id"`
	AllowCodingQuestions bool      `gorm:"not null;default:false" json:"allow_coding_questions"`
	CreatedAt            time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DepartmentSettings) TableName() string {
	return "department_settings"
}
