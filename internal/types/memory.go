package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AgentMemorySummary is the chat subsystem's learning summary for a
// (user, module). Advisory context only; this engine never writes it.
type AgentMemorySummary struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_memory_user_module" json:"user_id"`
	ModuleID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_memory_user_module" json:"module_id"`
	Summary   string         `json:"summary"`
	Topics    datatypes.JSON `gorm:"type:jsonb" json:"topics"`
	Struggles datatypes.JSON `gorm:"type:jsonb" json:"struggles"`
	Masteries datatypes.JSON `gorm:"type:jsonb" json:"masteries"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AgentMemorySummary) TableName() string {
	return "agent_memory_summary"
}
