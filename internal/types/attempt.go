package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuizAttempt is one scored submission. Append-only; AttemptNumber is
// 1-based and gapless per (user, module).
type QuizAttempt struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuizID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	ModuleID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_attempt_user_module" json:"module_id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_attempt_user_module" json:"user_id"`
	AttemptNumber   int            `gorm:"not null" json:"attempt_number"`
	Answers         datatypes.JSON `gorm:"type:jsonb;not null" json:"answers"`
	MCQPercent      float64        `gorm:"not null;default:0" json:"mcq_percent"`
	OneLinerPercent float64        `gorm:"not null;default:0" json:"one_liner_percent"`
	CodingPercent   float64        `gorm:"not null;default:0" json:"coding_percent"`
	HasCoding       bool           `gorm:"not null;default:false" json:"has_coding"`
	CompositeScore  int            `gorm:"not null" json:"composite_score"`
	Passed          bool           `gorm:"not null" json:"passed"`
	Breakdown       datatypes.JSON `gorm:"type:jsonb" json:"breakdown"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempt"
}

// DecisionRecord is the policy outcome persisted alongside an attempt.
type DecisionRecord struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AttemptID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"attempt_id"`
	AllowRetry           bool           `gorm:"not null" json:"allow_retry"`
	RetriesGranted       int            `gorm:"not null;default:0" json:"retries_granted"`
	RequiresRegeneration bool           `gorm:"not null;default:false" json:"requires_regeneration"`
	UnlockedResources    datatypes.JSON `gorm:"type:jsonb" json:"unlocked_resources"`
	LockModule           bool           `gorm:"not null;default:false" json:"lock_module"`
	ContactAdmin         bool           `gorm:"not null;default:false" json:"contact_admin"`
	Message              string         `json:"message"`
	Recommendations      datatypes.JSON `gorm:"type:jsonb" json:"recommendations"`
	FromFallback         bool           `gorm:"not null;default:false" json:"from_fallback"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DecisionRecord) TableName() string {
	return "decision_record"
}
