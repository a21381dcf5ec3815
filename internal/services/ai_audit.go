package services

import (
	"context"
	"time"

	"github.com/brightpath/onboardhub-backend/internal/clients/openai"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/repos"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

// aiAuditService persists one AICallLog row per model invocation. Writes
// happen on a detached context so a slow insert never blocks the request
// path.
type aiAuditService struct {
	callLogs repos.AICallLogRepo
	log      *logger.Logger
}

func NewAIAuditService(callLogs repos.AICallLogRepo, baseLog *logger.Logger) openai.Auditor {
	return &aiAuditService{callLogs: callLogs, log: baseLog.With("service", "AIAuditService")}
}

func (s *aiAuditService) Audit(_ context.Context, entry openai.AuditEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		row := &types.AICallLog{
			Purpose:   entry.Purpose,
			Model:     entry.Model,
			Success:   entry.Success,
			Fallback:  entry.Fallback,
			LatencyMS: entry.LatencyMS,
			Error:     entry.Err,
		}
		if err := s.callLogs.Create(ctx, nil, row); err != nil {
			s.log.Warn("failed to persist ai call log", "purpose", entry.Purpose, "error", err)
		}
	}()
}
