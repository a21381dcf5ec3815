package types

import (
	"time"

	"github.com/google/uuid"
)

// AICallLog is a per-invocation audit row for model calls.
type AICallLog struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Purpose   string    `gorm:"not null;index" json:"purpose"`
	Model     string    `gorm:"not null" json:"model"`
	Success   bool      `gorm:"not null" json:"success"`
	Fallback  bool      `gorm:"not null;default:false" json:"fallback"`
	LatencyMS int64     `gorm:"not null;default:0" json:"latency_ms"`
	Error     string    `json:"error"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (AICallLog) TableName() string {
	return "ai_call_log"
}
