package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/brightpath/onboardhub-backend/internal/assessment"
	"github.com/brightpath/onboardhub-backend/internal/clients/openai"
	"github.com/brightpath/onboardhub-backend/internal/clients/pinecone"
	"github.com/brightpath/onboardhub-backend/internal/clients/redislock"
	apperrors "github.com/brightpath/onboardhub-backend/internal/pkg/errors"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/repos"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

const submitLockTTL = 30 * time.Second

type GenerateQuizInput struct {
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
	UserID       uuid.UUID
	ModuleID     uuid.UUID
	ModuleTitle  string
}

type GenerateQuizResult struct {
	QuizID      uuid.UUID                   `json:"quizId"`
	ModuleTitle string                      `json:"moduleTitle"`
	Kind        assessment.QuizKind         `json:"kind"`
	MCQ         []assessment.ClientMCQ      `json:"mcq"`
	OneLiners   []assessment.ClientOneLiner `json:"oneLiners"`
	Coding      []assessment.ClientCoding   `json:"coding,omitempty"`
	HasCoding   bool                        `json:"hasCoding"`
}

func clientQuizResult(quizID uuid.UUID, title string, quiz assessment.QuizContent) *GenerateQuizResult {
	sanitized := assessment.SanitizeForClient(quiz)
	return &GenerateQuizResult{
		QuizID:      quizID,
		ModuleTitle: title,
		Kind:        sanitized.Kind,
		MCQ:         sanitized.MCQ,
		OneLiners:   sanitized.OneLiners,
		Coding:      sanitized.Coding,
		HasCoding:   len(quiz.Coding) > 0,
	}
}

type SubmitQuizInput struct {
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
	UserID       uuid.UUID
	ModuleID     uuid.UUID
	QuizID       uuid.UUID
	Answers      assessment.AnswerSet
}

type SubmitQuizResult struct {
	Score                       int                         `json:"score"`
	Passed                      bool                        `json:"passed"`
	Message                     string                      `json:"message"`
	AllowRetry                  bool                        `json:"allowRetry"`
	AttemptNumber               int                         `json:"attemptNumber"`
	MaxAttempts                 int                         `json:"maxAttempts"`
	RetriesGranted              int                         `json:"retriesGranted"`
	RequiresRoadmapRegeneration bool                        `json:"requiresRoadmapRegeneration"`
	UnlockResources             []string                    `json:"unlockResources"`
	LockModule                  bool                        `json:"lockModule"`
	ContactAdmin                bool                        `json:"contactAdmin"`
	Recommendations             []string                    `json:"recommendations"`
	MCQ                         []assessment.GradedMCQ      `json:"mcq"`
	OneLiners                   []assessment.GradedOneLiner `json:"oneLiners"`
	Coding                      []assessment.GradedCoding   `json:"coding"`
	ScoreBreakdown              assessment.CategoryScores   `json:"scoreBreakdown"`
}

type AttemptView struct {
	AttemptNumber  int                       `json:"attemptNumber"`
	CompositeScore int                       `json:"compositeScore"`
	Passed         bool                      `json:"passed"`
	Breakdown      assessment.CategoryScores `json:"breakdown"`
	CreatedAt      time.Time                 `json:"createdAt"`
}

type AssessmentService interface {
	GenerateQuiz(ctx context.Context, in GenerateQuizInput) (*GenerateQuizResult, error)
	SubmitQuiz(ctx context.Context, in SubmitQuizInput) (*SubmitQuizResult, error)
	// GetQuiz re-fetches a persisted quiz; it never regenerates.
	GetQuiz(ctx context.Context, quizID uuid.UUID) (*GenerateQuizResult, error)
	ListAttempts(ctx context.Context, quizID uuid.UUID) ([]AttemptView, error)
}

type assessmentService struct {
	ai          openai.Client
	planner     *assessment.Planner
	builder     *assessment.ContextBuilder
	synthesizer *assessment.Synthesizer
	evaluator   *assessment.Evaluator
	policy      *assessment.PolicyEngine
	modules     repos.ModuleRepo
	quizzes     repos.QuizRepo
	attempts    repos.AttemptRepo
	departments repos.DepartmentSettingsRepo
	memories    repos.AgentMemoryRepo
	locker      redislock.Locker
	cfg         assessment.Config
	log         *logger.Logger
}

func NewAssessmentService(
	ai openai.Client,
	vectors pinecone.VectorStore,
	modules repos.ModuleRepo,
	quizzes repos.QuizRepo,
	attempts repos.AttemptRepo,
	departments repos.DepartmentSettingsRepo,
	memories repos.AgentMemoryRepo,
	locker redislock.Locker,
	cfg assessment.Config,
	baseLog *logger.Logger,
) AssessmentService {
	log := baseLog.With("service", "AssessmentService")
	searcher := &vectorSearcher{vectors: vectors}
	return &assessmentService{
		ai:          ai,
		planner:     assessment.NewPlanner(ai, log),
		builder:     assessment.NewContextBuilder(ai, searcher, log, cfg),
		synthesizer: assessment.NewSynthesizer(ai, log, cfg),
		evaluator:   assessment.NewEvaluator(ai, log, cfg),
		policy:      assessment.NewPolicyEngine(ai, log, cfg),
		modules:     modules,
		quizzes:     quizzes,
		attempts:    attempts,
		departments: departments,
		memories:    memories,
		locker:      locker,
		cfg:         cfg,
		log:         log,
	}
}

// vectorSearcher adapts the pinecone store to the engine's searcher
// interface.
type vectorSearcher struct {
	vectors pinecone.VectorStore
}

func (v *vectorSearcher) SearchChunks(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]assessment.ChunkMatch, error) {
	hits, err := v.vectors.SearchChunks(ctx, namespace, vector, topK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]assessment.ChunkMatch, 0, len(hits))
	for _, h := range hits {
		out = append(out, assessment.ChunkMatch{Text: h.Text, Score: h.Score})
	}
	return out, nil
}

func (s *assessmentService) GenerateQuiz(ctx context.Context, in GenerateQuizInput) (*GenerateQuizResult, error) {
	if err := requireIDs(map[string]uuid.UUID{
		"companyId": in.CompanyID,
		"deptId":    in.DepartmentID,
		"userId":    in.UserID,
		"moduleId":  in.ModuleID,
	}); err != nil {
		return nil, err
	}

	module, err := s.modules.GetByID(ctx, nil, in.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if module.UserID != in.UserID || module.CompanyID != in.CompanyID {
		return nil, fmt.Errorf("module %s does not belong to this learner: %w", in.ModuleID, apperrors.ErrNotFound)
	}
	if module.Locked {
		return nil, fmt.Errorf("module %s is locked: %w", in.ModuleID, apperrors.ErrConflict)
	}

	// A module whose quiz is still current gets the stored quiz back; a new
	// one is generated only after a decision demanded regeneration.
	if module.QuizGenerated {
		existing, err := s.quizzes.GetCurrentForModule(ctx, nil, in.ModuleID)
		switch {
		case err == nil:
			content, err := decodeQuizContent(existing)
			if err != nil {
				return nil, err
			}
			s.log.Info("returning current quiz", "quiz_id", existing.ID, "module_id", in.ModuleID)
			return clientQuizResult(existing.ID, existing.ModuleTitle, content), nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("load current quiz: %w", err)
		}
	}

	title := strings.TrimSpace(in.ModuleTitle)
	if title == "" {
		title = module.Title
	}

	kind := assessment.QuizKindMCQOnly
	settings, err := s.departments.GetByDepartment(ctx, nil, in.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("load department settings: %w", err)
	}
	if settings != nil {
		kind = assessment.KindForCapability(settings.AllowCodingQuestions)
	}

	var memorySummary string
	memory, err := s.memories.GetByUserModule(ctx, nil, in.UserID, in.ModuleID)
	if err != nil {
		s.log.Warn("agent memory lookup failed, continuing without it",
			"module_id", in.ModuleID, "error", err)
	} else if memory != nil {
		memorySummary = memory.Summary
	}

	namespace := in.CompanyID.String()
	filter := map[string]any{"department_id": in.DepartmentID.String()}

	baseline := s.builder.Build(ctx, namespace, filter, []string{title})
	plan := s.planner.Plan(ctx, title, baseline, memorySummary)
	contextBlob := s.builder.Build(ctx, namespace, filter, append([]string{title}, plan.Queries...))

	synth, err := s.synthesizer.Synthesize(ctx, assessment.SynthesisInput{
		ModuleTitle:       title,
		ModuleDescription: module.Description,
		Context:           contextBlob,
		Kind:              kind,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize quiz: %w", err)
	}

	quiz, err := s.persistQuiz(ctx, in, title, synth)
	if err != nil {
		return nil, err
	}

	if err := s.modules.MergeStatus(ctx, nil, in.ModuleID, map[string]any{"quiz_generated": true}); err != nil {
		s.log.Warn("failed to flag module quiz_generated", "module_id", in.ModuleID, "error", err)
	}

	s.log.Info("quiz generated",
		"quiz_id", quiz.ID, "module_id", in.ModuleID, "kind", kind,
		"generate_attempts", synth.GenerateAttempts,
		"critique_score", synth.CritiqueScore, "critique_passed", synth.CritiquePassed,
	)

	return clientQuizResult(quiz.ID, title, synth.Quiz), nil
}

func (s *assessmentService) persistQuiz(ctx context.Context, in GenerateQuizInput, title string, synth assessment.SynthesisResult) (*types.Quiz, error) {
	mcqJSON, err := json.Marshal(synth.Quiz.MCQ)
	if err != nil {
		return nil, fmt.Errorf("encode mcq section: %w", err)
	}
	olJSON, err := json.Marshal(synth.Quiz.OneLiners)
	if err != nil {
		return nil, fmt.Errorf("encode one-liner section: %w", err)
	}
	var codingJSON []byte
	if len(synth.Quiz.Coding) > 0 {
		if codingJSON, err = json.Marshal(synth.Quiz.Coding); err != nil {
			return nil, fmt.Errorf("encode coding section: %w", err)
		}
	}

	quiz := &types.Quiz{
		ModuleID:         in.ModuleID,
		CompanyID:        in.CompanyID,
		DepartmentID:     in.DepartmentID,
		UserID:           in.UserID,
		ModuleTitle:      title,
		Kind:             string(synth.Quiz.Kind),
		MCQ:              datatypes.JSON(mcqJSON),
		OneLiners:        datatypes.JSON(olJSON),
		Coding:           datatypes.JSON(codingJSON),
		CritiqueScore:    synth.CritiqueScore,
		CritiquePassed:   synth.CritiquePassed,
		GenerateAttempts: synth.GenerateAttempts,
	}
	if _, err := s.quizzes.Create(ctx, nil, quiz); err != nil {
		return nil, fmt.Errorf("persist quiz: %w", err)
	}
	return quiz, nil
}

func (s *assessmentService) SubmitQuiz(ctx context.Context, in SubmitQuizInput) (*SubmitQuizResult, error) {
	if err := requireIDs(map[string]uuid.UUID{
		"companyId": in.CompanyID,
		"deptId":    in.DepartmentID,
		"userId":    in.UserID,
		"moduleId":  in.ModuleID,
		"quizId":    in.QuizID,
	}); err != nil {
		return nil, err
	}

	lockKey := fmt.Sprintf("quiz_submit:%s:%s", in.UserID, in.ModuleID)
	release, ok, err := s.locker.Acquire(ctx, lockKey, submitLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("a submission for this module is already in progress: %w", apperrors.ErrConflict)
	}
	defer release()

	quizRow, err := s.quizzes.GetByID(ctx, nil, in.QuizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if quizRow.ModuleID != in.ModuleID || quizRow.UserID != in.UserID {
		return nil, fmt.Errorf("quiz %s does not belong to this module: %w", in.QuizID, apperrors.ErrNotFound)
	}

	module, err := s.modules.GetByID(ctx, nil, in.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if module.Locked {
		return nil, fmt.Errorf("module %s is locked: %w", in.ModuleID, apperrors.ErrConflict)
	}

	attemptNumber, err := s.attempts.NextNumber(ctx, nil, in.UserID, in.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("derive attempt number: %w", err)
	}
	if attemptNumber > s.cfg.MaxAttempts {
		return nil, fmt.Errorf("all %d attempts used for module %s: %w",
			s.cfg.MaxAttempts, in.ModuleID, apperrors.ErrConflict)
	}

	quiz, err := decodeQuizContent(quizRow)
	if err != nil {
		return nil, err
	}

	eval := s.evaluator.Evaluate(ctx, quiz, in.Answers)
	scores := assessment.Aggregate(eval)
	composite := assessment.Composite(scores)
	passed := composite >= s.cfg.PassThreshold
	weak := assessment.WeakAreas(scores, s.cfg.WeakAreaThreshold)

	history, err := s.attempts.ListByUserModule(ctx, nil, in.UserID, in.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("load attempt history: %w", err)
	}
	summaries := make([]assessment.AttemptSummary, 0, len(history))
	for _, h := range history {
		summaries = append(summaries, assessment.AttemptSummary{
			Number: h.AttemptNumber,
			Score:  h.CompositeScore,
			Passed: h.Passed,
		})
	}

	decision := s.policy.Decide(ctx, assessment.PolicyInput{
		ModuleTitle:   quizRow.ModuleTitle,
		Score:         composite,
		Passed:        passed,
		AttemptNumber: attemptNumber,
		Categories:    scores,
		WeakAreas:     weak,
		RemainingTime: module.EstimatedDuration,
		History:       summaries,
	})

	attempt, record, err := buildAttemptRows(in, attemptNumber, eval, scores, composite, passed, decision)
	if err != nil {
		return nil, err
	}
	if err := s.attempts.Append(ctx, attempt, record); err != nil {
		return nil, fmt.Errorf("persist attempt: %w", err)
	}

	statusUpdates := map[string]any{}
	if passed {
		statusUpdates["completed"] = true
	}
	if decision.LockModule {
		statusUpdates["locked"] = true
	}
	if decision.RequiresRegeneration {
		statusUpdates["quiz_generated"] = false
	}
	if len(statusUpdates) > 0 {
		if err := s.modules.MergeStatus(ctx, nil, in.ModuleID, statusUpdates); err != nil {
			s.log.Warn("failed to update module status", "module_id", in.ModuleID, "error", err)
		}
	}

	s.log.Info("quiz submitted",
		"quiz_id", in.QuizID, "module_id", in.ModuleID,
		"attempt", attemptNumber, "score", composite, "passed", passed,
		"allow_retry", decision.AllowRetry, "lock_module", decision.LockModule,
		"decision_fallback", decision.FromFallback,
	)

	return &SubmitQuizResult{
		Score:                       composite,
		Passed:                      passed,
		Message:                     decision.Message,
		AllowRetry:                  decision.AllowRetry,
		AttemptNumber:               attemptNumber,
		MaxAttempts:                 s.cfg.MaxAttempts,
		RetriesGranted:              decision.RetriesGranted,
		RequiresRoadmapRegeneration: decision.RequiresRegeneration,
		UnlockResources:             decision.UnlockedResources,
		LockModule:                  decision.LockModule,
		ContactAdmin:                decision.ContactAdmin,
		Recommendations:             decision.Recommendations,
		MCQ:                         eval.MCQ,
		OneLiners:                   eval.OneLiners,
		Coding:                      eval.Coding,
		ScoreBreakdown:              scores,
	}, nil
}

func (s *assessmentService) GetQuiz(ctx context.Context, quizID uuid.UUID) (*GenerateQuizResult, error) {
	if quizID == uuid.Nil {
		return nil, fmt.Errorf("quizId required: %w", apperrors.ErrInvalidArgument)
	}
	quizRow, err := s.quizzes.GetByID(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	quiz, err := decodeQuizContent(quizRow)
	if err != nil {
		return nil, err
	}
	return clientQuizResult(quizRow.ID, quizRow.ModuleTitle, quiz), nil
}

func (s *assessmentService) ListAttempts(ctx context.Context, quizID uuid.UUID) ([]AttemptView, error) {
	if quizID == uuid.Nil {
		return nil, fmt.Errorf("quizId required: %w", apperrors.ErrInvalidArgument)
	}
	quizRow, err := s.quizzes.GetByID(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	rows, err := s.attempts.ListByUserModule(ctx, nil, quizRow.UserID, quizRow.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	out := make([]AttemptView, 0, len(rows))
	for _, row := range rows {
		view := AttemptView{
			AttemptNumber:  row.AttemptNumber,
			CompositeScore: row.CompositeScore,
			Passed:         row.Passed,
			CreatedAt:      row.CreatedAt,
		}
		view.Breakdown = assessment.CategoryScores{
			MCQPercent:      row.MCQPercent,
			OneLinerPercent: row.OneLinerPercent,
			CodingPercent:   row.CodingPercent,
			HasCoding:       row.HasCoding,
		}
		out = append(out, view)
	}
	return out, nil
}

func buildAttemptRows(
	in SubmitQuizInput,
	attemptNumber int,
	eval assessment.Evaluation,
	scores assessment.CategoryScores,
	composite int,
	passed bool,
	decision assessment.Decision,
) (*types.QuizAttempt, *types.DecisionRecord, error) {
	answersJSON, err := json.Marshal(in.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	breakdownJSON, err := json.Marshal(eval)
	if err != nil {
		return nil, nil, fmt.Errorf("encode breakdown: %w", err)
	}
	unlockJSON, err := json.Marshal(decision.UnlockedResources)
	if err != nil {
		return nil, nil, fmt.Errorf("encode unlock set: %w", err)
	}
	recsJSON, err := json.Marshal(decision.Recommendations)
	if err != nil {
		return nil, nil, fmt.Errorf("encode recommendations: %w", err)
	}

	attempt := &types.QuizAttempt{
		QuizID:          in.QuizID,
		ModuleID:        in.ModuleID,
		UserID:          in.UserID,
		AttemptNumber:   attemptNumber,
		Answers:         datatypes.JSON(answersJSON),
		MCQPercent:      scores.MCQPercent,
		OneLinerPercent: scores.OneLinerPercent,
		CodingPercent:   scores.CodingPercent,
		HasCoding:       scores.HasCoding,
		CompositeScore:  composite,
		Passed:          passed,
		Breakdown:       datatypes.JSON(breakdownJSON),
	}
	record := &types.DecisionRecord{
		AllowRetry:           decision.AllowRetry,
		RetriesGranted:       decision.RetriesGranted,
		RequiresRegeneration: decision.RequiresRegeneration,
		UnlockedResources:    datatypes.JSON(unlockJSON),
		LockModule:           decision.LockModule,
		ContactAdmin:         decision.ContactAdmin,
		Message:              decision.Message,
		Recommendations:      datatypes.JSON(recsJSON),
		FromFallback:         decision.FromFallback,
	}
	return attempt, record, nil
}

func decodeQuizContent(row *types.Quiz) (assessment.QuizContent, error) {
	quiz := assessment.QuizContent{Kind: assessment.QuizKind(row.Kind)}
	if err := json.Unmarshal(row.MCQ, &quiz.MCQ); err != nil {
		return quiz, fmt.Errorf("decode mcq section of quiz %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.OneLiners, &quiz.OneLiners); err != nil {
		return quiz, fmt.Errorf("decode one-liner section of quiz %s: %w", row.ID, err)
	}
	if len(row.Coding) > 0 {
		if err := json.Unmarshal(row.Coding, &quiz.Coding); err != nil {
			return quiz, fmt.Errorf("decode coding section of quiz %s: %w", row.ID, err)
		}
	}
	return quiz, nil
}

func requireIDs(ids map[string]uuid.UUID) error {
	for name, id := range ids {
		if id == uuid.Nil {
			return fmt.Errorf("%s required: %w", name, apperrors.ErrInvalidArgument)
		}
	}
	return nil
}
