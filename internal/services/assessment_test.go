package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightpath/onboardhub-backend/internal/assessment"
	"github.com/brightpath/onboardhub-backend/internal/clients/pinecone"
	apperrors "github.com/brightpath/onboardhub-backend/internal/pkg/errors"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/types"
)

// ---- fakes ----

type fakeAI struct {
	mu        sync.Mutex
	responses map[string][]fakeAIResponse
	calls     map[string]int
}

type fakeAIResponse struct {
	obj map[string]any
	err error
}

func newFakeAI() *fakeAI {
	return &fakeAI{responses: map[string][]fakeAIResponse{}, calls: map[string]int{}}
}

func (f *fakeAI) queue(schemaName string, obj map[string]any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[schemaName] = append(f.responses[schemaName], fakeAIResponse{obj: obj, err: err})
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(_ context.Context, _, _, schemaName string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[schemaName]++
	q := f.responses[schemaName]
	if len(q) == 0 {
		return nil, fmt.Errorf("no scripted response for schema %q", schemaName)
	}
	r := q[0]
	f.responses[schemaName] = q[1:]
	return r.obj, r.err
}

func (f *fakeAI) GenerateText(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("not scripted")
}

type fakeVectors struct {
	chunks []pinecone.ChunkMatch
}

func (f *fakeVectors) SearchChunks(context.Context, string, []float32, int, map[string]any) ([]pinecone.ChunkMatch, error) {
	return f.chunks, nil
}

type fakeModuleRepo struct {
	modules map[uuid.UUID]*types.TrainingModule
	merged  map[string]any
}

func (f *fakeModuleRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.TrainingModule, error) {
	m, ok := f.modules[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return m, nil
}

func (f *fakeModuleRepo) MergeStatus(_ context.Context, _ *gorm.DB, _ uuid.UUID, updates map[string]any) error {
	if f.merged == nil {
		f.merged = map[string]any{}
	}
	for k, v := range updates {
		f.merged[k] = v
	}
	return nil
}

type fakeQuizRepo struct {
	rows map[uuid.UUID]*types.Quiz
}

func (f *fakeQuizRepo) Create(_ context.Context, _ *gorm.DB, quiz *types.Quiz) (*types.Quiz, error) {
	if quiz.ID == uuid.Nil {
		quiz.ID = uuid.New()
	}
	if f.rows == nil {
		f.rows = map[uuid.UUID]*types.Quiz{}
	}
	f.rows[quiz.ID] = quiz
	return quiz, nil
}

func (f *fakeQuizRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Quiz, error) {
	q, ok := f.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return q, nil
}

func (f *fakeQuizRepo) GetCurrentForModule(_ context.Context, _ *gorm.DB, moduleID uuid.UUID) (*types.Quiz, error) {
	for _, q := range f.rows {
		if q.ModuleID == moduleID {
			return q, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type fakeAttemptRepo struct {
	attempts  []*types.QuizAttempt
	decisions []*types.DecisionRecord
}

func (f *fakeAttemptRepo) NextNumber(_ context.Context, _ *gorm.DB, userID, moduleID uuid.UUID) (int, error) {
	max := 0
	for _, a := range f.attempts {
		if a.UserID == userID && a.ModuleID == moduleID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max + 1, nil
}

func (f *fakeAttemptRepo) Append(ctx context.Context, attempt *types.QuizAttempt, decision *types.DecisionRecord) error {
	next, _ := f.NextNumber(ctx, nil, attempt.UserID, attempt.ModuleID)
	if attempt.AttemptNumber != next {
		return apperrors.ErrConflict
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	f.attempts = append(f.attempts, attempt)
	if decision != nil {
		decision.AttemptID = attempt.ID
		f.decisions = append(f.decisions, decision)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByUserModule(_ context.Context, _ *gorm.DB, userID, moduleID uuid.UUID) ([]*types.QuizAttempt, error) {
	var out []*types.QuizAttempt
	for _, a := range f.attempts {
		if a.UserID == userID && a.ModuleID == moduleID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeDeptRepo struct {
	settings *types.DepartmentSettings
}

func (f *fakeDeptRepo) GetByDepartment(context.Context, *gorm.DB, uuid.UUID) (*types.DepartmentSettings, error) {
	return f.settings, nil
}

type fakeMemoryRepo struct{}

func (fakeMemoryRepo) GetByUserModule(context.Context, *gorm.DB, uuid.UUID, uuid.UUID) (*types.AgentMemorySummary, error) {
	return nil, nil
}

type deniedLocker struct{}

func (deniedLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, false, nil
}
func (deniedLocker) Close() error { return nil }

type grantedLocker struct{}

func (grantedLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
func (grantedLocker) Close() error { return nil }

// ---- fixtures ----

type fixture struct {
	svc      AssessmentService
	ai       *fakeAI
	modules  *fakeModuleRepo
	quizzes  *fakeQuizRepo
	attempts *fakeAttemptRepo

	companyID uuid.UUID
	deptID    uuid.UUID
	userID    uuid.UUID
	moduleID  uuid.UUID
}

func newFixture(t *testing.T, allowCoding bool, locked bool) *fixture {
	t.Helper()
	f := &fixture{
		ai:        newFakeAI(),
		modules:   &fakeModuleRepo{modules: map[uuid.UUID]*types.TrainingModule{}},
		quizzes:   &fakeQuizRepo{rows: map[uuid.UUID]*types.Quiz{}},
		attempts:  &fakeAttemptRepo{},
		companyID: uuid.New(),
		deptID:    uuid.New(),
		userID:    uuid.New(),
		moduleID:  uuid.New(),
	}
	f.modules.modules[f.moduleID] = &types.TrainingModule{
		ID:           f.moduleID,
		CompanyID:    f.companyID,
		DepartmentID: f.deptID,
		UserID:       f.userID,
		Title:        "Security Basics",
		Description:  "Core security practices",
		Locked:       locked,
	}
	dept := &types.DepartmentSettings{
		DepartmentID:         f.deptID,
		AllowCodingQuestions: allowCoding,
	}
	f.svc = NewAssessmentService(
		f.ai,
		&fakeVectors{chunks: []pinecone.ChunkMatch{{Text: "Rotate passwords quarterly.", Score: 0.9}}},
		f.modules,
		f.quizzes,
		f.attempts,
		&fakeDeptRepo{settings: dept},
		fakeMemoryRepo{},
		grantedLocker{},
		assessment.DefaultConfig(),
		logger.NewNop(),
	)
	return f
}

func (f *fixture) generateInput() GenerateQuizInput {
	return GenerateQuizInput{
		CompanyID:    f.companyID,
		DepartmentID: f.deptID,
		UserID:       f.userID,
		ModuleID:     f.moduleID,
	}
}

func (f *fixture) seedQuiz(t *testing.T) *types.Quiz {
	t.Helper()
	mcq := make([]assessment.MCQItem, 5)
	for i := range mcq {
		mcq[i] = assessment.MCQItem{
			ID:           fmt.Sprintf("mcq_%d", i+1),
			Question:     fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
		}
	}
	oneLiners := []assessment.OneLinerItem{
		{ID: "ol_1", Question: "Short one?", Answer: "alpha"},
		{ID: "ol_2", Question: "Short two?", Answer: "beta"},
	}
	mcqJSON, _ := json.Marshal(mcq)
	olJSON, _ := json.Marshal(oneLiners)
	quiz := &types.Quiz{
		ID:           uuid.New(),
		ModuleID:     f.moduleID,
		CompanyID:    f.companyID,
		DepartmentID: f.deptID,
		UserID:       f.userID,
		ModuleTitle:  "Security Basics",
		Kind:         string(assessment.QuizKindMCQOnly),
		MCQ:          mcqJSON,
		OneLiners:    olJSON,
	}
	f.quizzes.rows[quiz.ID] = quiz
	return quiz
}

func (f *fixture) submitInput(quizID uuid.UUID, answers assessment.AnswerSet) SubmitQuizInput {
	return SubmitQuizInput{
		CompanyID:    f.companyID,
		DepartmentID: f.deptID,
		UserID:       f.userID,
		ModuleID:     f.moduleID,
		QuizID:       quizID,
		Answers:      answers,
	}
}

func allCorrectAnswers() assessment.AnswerSet {
	answers := assessment.AnswerSet{
		OneLiners: []assessment.OneLinerAnswer{
			{ID: "ol_1", Response: "alpha"},
			{ID: "ol_2", Response: "beta"},
		},
	}
	for i := 1; i <= 5; i++ {
		answers.MCQ = append(answers.MCQ, assessment.MCQAnswer{
			ID:            fmt.Sprintf("mcq_%d", i),
			SelectedIndex: 1,
		})
	}
	return answers
}

// planner output so generation does not hit the template fallback
func (f *fixture) scriptGeneration(t *testing.T) {
	t.Helper()
	f.ai.queue("retrieval_plan_v1", map[string]any{
		"queries":    []any{"password policy", "access control"},
		"focusAreas": []any{"security"},
		"difficulty": "mixed",
	}, nil)

	mcq := make([]any, 5)
	for i := range mcq {
		mcq[i] = map[string]any{
			"question":     fmt.Sprintf("Generated question %d?", i+1),
			"options":      []any{"a", "b", "c", "d"},
			"correctIndex": float64(0),
			"explanation":  "because",
		}
	}
	f.ai.queue("training_quiz_v1", map[string]any{
		"mcq": mcq,
		"oneLiners": []any{
			map[string]any{"question": "One?", "answer": "x", "explanation": "e"},
			map[string]any{"question": "Two?", "answer": "y", "explanation": "e"},
		},
	}, nil)
	f.ai.queue("quiz_critique_v1", map[string]any{
		"score": float64(90), "passed": true, "issues": []any{},
	}, nil)
}

// ---- tests ----

func TestGenerateQuiz_PersistsAndSanitizes(t *testing.T) {
	f := newFixture(t, false, false)
	f.scriptGeneration(t)

	result, err := f.svc.GenerateQuiz(context.Background(), f.generateInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.QuizID == uuid.Nil {
		t.Fatalf("expected persisted quiz id")
	}
	if result.HasCoding {
		t.Fatalf("expected no coding for mcq-only department")
	}

	raw, _ := json.Marshal(result)
	for _, leak := range []string{"correctIndex", "expectedApproach", `"answer"`} {
		if strings.Contains(string(raw), leak) {
			t.Fatalf("answer key leaked %q in: %s", leak, raw)
		}
	}

	if v, ok := f.modules.merged["quiz_generated"]; !ok || v != true {
		t.Fatalf("expected module flagged quiz_generated, got %v", f.modules.merged)
	}
	stored := f.quizzes.rows[result.QuizID]
	if stored == nil || stored.CritiqueScore != 90 || !stored.CritiquePassed {
		t.Fatalf("unexpected stored quiz: %+v", stored)
	}
}

func TestGenerateQuiz_ResponseSectionsAreTopLevel(t *testing.T) {
	f := newFixture(t, false, false)
	f.scriptGeneration(t)

	result, err := f.svc.GenerateQuiz(context.Background(), f.generateInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	raw, _ := json.Marshal(result)
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, key := range []string{"quizId", "moduleTitle", "mcq", "oneLiners", "hasCoding"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing top-level %q in: %s", key, raw)
		}
	}
	if _, ok := payload["quiz"]; ok {
		t.Fatalf("question sections must not be nested under a quiz key: %s", raw)
	}
}

func TestGenerateQuiz_ReturnsCurrentQuizWithoutRegenerating(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)
	f.modules.modules[f.moduleID].QuizGenerated = true

	result, err := f.svc.GenerateQuiz(context.Background(), f.generateInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.QuizID != quiz.ID {
		t.Fatalf("expected the stored quiz %s, got %s", quiz.ID, result.QuizID)
	}
	if len(result.MCQ) != 5 || len(result.OneLiners) != 2 {
		t.Fatalf("unexpected quiz shape: %d mcq, %d one-liners", len(result.MCQ), len(result.OneLiners))
	}
	if n := f.ai.calls["training_quiz_v1"]; n != 0 {
		t.Fatalf("expected no synthesis call, got %d", n)
	}
	if len(f.quizzes.rows) != 1 {
		t.Fatalf("expected no new quiz persisted, got %d rows", len(f.quizzes.rows))
	}
}

func TestGenerateQuiz_RejectsForeignModule(t *testing.T) {
	f := newFixture(t, false, false)
	in := f.generateInput()
	in.UserID = uuid.New()

	_, err := f.svc.GenerateQuiz(context.Background(), in)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateQuiz_RejectsLockedModule(t *testing.T) {
	f := newFixture(t, false, true)

	_, err := f.svc.GenerateQuiz(context.Background(), f.generateInput())
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSubmitQuiz_PerfectScorePasses(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)

	result, err := f.svc.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, allCorrectAnswers()))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.Score != 100 || !result.Passed {
		t.Fatalf("expected 100/passed, got %d/%t", result.Score, result.Passed)
	}
	if result.AttemptNumber != 1 || result.MaxAttempts != 3 {
		t.Fatalf("unexpected attempt fields: %+v", result)
	}
	if len(f.attempts.attempts) != 1 || len(f.attempts.decisions) != 1 {
		t.Fatalf("expected one attempt and decision persisted")
	}
	if v, ok := f.modules.merged["completed"]; !ok || v != true {
		t.Fatalf("expected module completed, got %v", f.modules.merged)
	}
}

func TestSubmitQuiz_MCQOnlyAnswersTopOutAt65(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)

	// MCQ all correct but both one-liners unanswered: 100*0.65 + 0*0.35.
	answers := allCorrectAnswers()
	answers.OneLiners = nil
	f.ai.queue("policy_decision_v1", nil, errors.New("model down"))

	result, err := f.svc.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, answers))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.Score != 65 || result.Passed {
		t.Fatalf("expected 65/failed, got %d/%t", result.Score, result.Passed)
	}
	// Gap of 5 on attempt 1: fallback grants a retry.
	if !result.AllowRetry || result.RetriesGranted != 1 {
		t.Fatalf("unexpected retry fields: %+v", result)
	}
}

func TestSubmitQuiz_RegenerationClearsQuizGeneratedFlag(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)

	// Everything wrong: gap of 70 makes the fallback demand regeneration.
	answers := allCorrectAnswers()
	for i := range answers.MCQ {
		answers.MCQ[i].SelectedIndex = 0
	}
	answers.OneLiners = nil
	f.ai.queue("policy_decision_v1", nil, errors.New("model down"))

	result, err := f.svc.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, answers))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !result.RequiresRoadmapRegeneration {
		t.Fatalf("expected regeneration demanded, got %+v", result)
	}
	if v, ok := f.modules.merged["quiz_generated"]; !ok || v != false {
		t.Fatalf("expected quiz_generated cleared, got %v", f.modules.merged)
	}
}

func TestSubmitQuiz_ExhaustedAttemptsRejected(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)
	for i := 1; i <= 3; i++ {
		f.attempts.attempts = append(f.attempts.attempts, &types.QuizAttempt{
			UserID: f.userID, ModuleID: f.moduleID, AttemptNumber: i, CompositeScore: 40,
		})
	}

	_, err := f.svc.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, allCorrectAnswers()))
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(f.attempts.attempts) != 3 {
		t.Fatalf("expected no new attempt persisted")
	}
}

func TestSubmitQuiz_ConcurrentSubmissionBlockedByLock(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)

	blocked := NewAssessmentService(
		f.ai,
		&fakeVectors{},
		f.modules,
		f.quizzes,
		f.attempts,
		&fakeDeptRepo{},
		fakeMemoryRepo{},
		deniedLocker{},
		assessment.DefaultConfig(),
		logger.NewNop(),
	)

	_, err := blocked.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, allCorrectAnswers()))
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetQuiz_IsIdempotentAndSanitized(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)

	first, err := f.svc.GetQuiz(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := f.svc.GetQuiz(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("expected byte-identical re-fetch")
	}
	if strings.Contains(string(a), "correctIndex") {
		t.Fatalf("answer key leaked in: %s", a)
	}
	if n := f.ai.calls["training_quiz_v1"]; n != 0 {
		t.Fatalf("expected no regeneration, got %d calls", n)
	}
}

func TestListAttempts_ReturnsHistory(t *testing.T) {
	f := newFixture(t, false, false)
	quiz := f.seedQuiz(t)
	for i := 1; i <= 2; i++ {
		f.attempts.attempts = append(f.attempts.attempts, &types.QuizAttempt{
			UserID: f.userID, ModuleID: f.moduleID,
			AttemptNumber: i, CompositeScore: 40 + i*10,
		})
	}

	views, err := f.svc.ListAttempts(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(views) != 2 || views[1].AttemptNumber != 2 || views[1].CompositeScore != 60 {
		t.Fatalf("unexpected views: %+v", views)
	}
}

func TestListAttempts_ReportsCodingSectionScoredZero(t *testing.T) {
	f := newFixture(t, true, false)
	quiz := f.seedQuiz(t)
	coding := []assessment.CodingItem{{
		ID:               "code_1",
		Question:         "Implement the rotation check.",
		ExpectedApproach: "iterate and compare",
		Language:         "go",
	}}
	codingJSON, _ := json.Marshal(coding)
	quiz.Kind = string(assessment.QuizKindMCQCode)
	quiz.Coding = codingJSON

	// Empty code scores the section at zero without a grading call.
	answers := allCorrectAnswers()
	answers.Coding = []assessment.CodingAnswer{{ID: "code_1", Code: ""}}

	result, err := f.svc.SubmitQuiz(context.Background(), f.submitInput(quiz.ID, answers))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if result.Score != 75 || !result.Passed {
		t.Fatalf("expected 75/passed, got %d/%t", result.Score, result.Passed)
	}

	views, err := f.svc.ListAttempts(context.Background(), quiz.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one attempt, got %d", len(views))
	}
	if !views[0].Breakdown.HasCoding || views[0].Breakdown.CodingPercent != 0 {
		t.Fatalf("expected coding section with zero score, got %+v", views[0].Breakdown)
	}
}
