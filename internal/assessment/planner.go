package assessment

import (
	"context"
	"strings"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// RetrievalPlan is what the planner wants searched before quiz synthesis.
type RetrievalPlan struct {
	Queries    []string
	FocusAreas []string
	Difficulty string
}

// Planner decides what to search for, given the module title and any prior
// personalized context. Planning failures never stall the pipeline: a
// deterministic template plan is used instead.
type Planner struct {
	ai  TextAI
	log *logger.Logger
}

func NewPlanner(ai TextAI, log *logger.Logger) *Planner {
	return &Planner{ai: ai, log: log.With("component", "Planner")}
}

func (p *Planner) Plan(ctx context.Context, moduleTitle, baselineContext, memorySummary string) RetrievalPlan {
	if p.ai == nil {
		return fallbackPlan(moduleTitle)
	}

	system, user := promptPlanRetrieval(moduleTitle, baselineContext, memorySummary)
	obj, err := p.ai.GenerateJSON(ctx, system, user, "retrieval_plan_v1", schemaRetrievalPlanV1())
	if err != nil {
		p.log.Warn("retrieval planning failed, using template plan", "module", moduleTitle, "error", err)
		return fallbackPlan(moduleTitle)
	}

	plan := RetrievalPlan{
		Queries:    anyStringSlice(obj["queries"]),
		FocusAreas: anyStringSlice(obj["focusAreas"]),
		Difficulty: strings.ToLower(strings.TrimSpace(anyString(obj["difficulty"]))),
	}
	if len(plan.Queries) > 4 {
		plan.Queries = plan.Queries[:4]
	}
	switch plan.Difficulty {
	case "easy", "mixed", "hard":
	default:
		plan.Difficulty = "mixed"
	}

	if len(plan.Queries) < 2 {
		p.log.Warn("retrieval plan too small, using template plan",
			"module", moduleTitle, "queries", len(plan.Queries))
		return fallbackPlan(moduleTitle)
	}
	return plan
}

func fallbackPlan(moduleTitle string) RetrievalPlan {
	title := strings.TrimSpace(moduleTitle)
	return RetrievalPlan{
		Queries: []string{
			title + " policies and procedures",
			title + " key concepts and definitions",
			title + " practical examples and best practices",
		},
		FocusAreas: []string{title},
		Difficulty: "mixed",
	}
}
