package assessment

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// neutralCodeScore is awarded when the grading model is unreachable, so a
// degraded AI backend neither fails nor aces a learner's submission.
const neutralCodeScore = 40

// Evaluator grades a submission against its quiz. MCQ grading is a local
// index comparison, short answers go to a semantic judge, and coding
// answers to a rubric grader. Grading never returns an error: individual
// model failures degrade to deterministic fallbacks.
type Evaluator struct {
	ai  TextAI
	log *logger.Logger
	cfg Config
}

func NewEvaluator(ai TextAI, log *logger.Logger, cfg Config) *Evaluator {
	return &Evaluator{ai: ai, log: log.With("component", "Evaluator"), cfg: cfg}
}

func (e *Evaluator) Evaluate(ctx context.Context, quiz QuizContent, answers AnswerSet) Evaluation {
	eval := Evaluation{
		MCQ:       e.gradeMCQ(quiz, answers),
		OneLiners: make([]GradedOneLiner, len(quiz.OneLiners)),
		Coding:    make([]GradedCoding, len(quiz.Coding)),
	}

	olByID := make(map[string]string, len(answers.OneLiners))
	for _, a := range answers.OneLiners {
		olByID[a.ID] = a.Response
	}
	codeByID := make(map[string]string, len(answers.Coding))
	for _, a := range answers.Coding {
		codeByID[a.ID] = a.Code
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FanOutLimit)

	for i, item := range quiz.OneLiners {
		g.Go(func() error {
			eval.OneLiners[i] = e.gradeOneLiner(gctx, item, olByID[item.ID])
			return nil
		})
	}
	for i, item := range quiz.Coding {
		g.Go(func() error {
			eval.Coding[i] = e.gradeCoding(gctx, item, codeByID[item.ID])
			return nil
		})
	}
	_ = g.Wait()

	return eval
}

// gradeMCQ compares selected indexes against the key. Unanswered questions
// count as wrong with SelectedIndex -1.
func (e *Evaluator) gradeMCQ(quiz QuizContent, answers AnswerSet) []GradedMCQ {
	byID := make(map[string]int, len(answers.MCQ))
	for _, a := range answers.MCQ {
		byID[a.ID] = a.SelectedIndex
	}

	out := make([]GradedMCQ, 0, len(quiz.MCQ))
	for _, item := range quiz.MCQ {
		selected, ok := byID[item.ID]
		if !ok {
			selected = -1
		}
		out = append(out, GradedMCQ{
			ID:            item.ID,
			Question:      item.Question,
			SelectedIndex: selected,
			CorrectIndex:  item.CorrectIndex,
			Correct:       ok && selected == item.CorrectIndex,
			Explanation:   item.Explanation,
		})
	}
	return out
}

func (e *Evaluator) gradeOneLiner(ctx context.Context, item OneLinerItem, response string) GradedOneLiner {
	graded := GradedOneLiner{
		ID:          item.ID,
		Question:    item.Question,
		Response:    response,
		Answer:      item.Answer,
		Explanation: item.Explanation,
	}
	if strings.TrimSpace(response) == "" {
		graded.Reason = "no answer submitted"
		return graded
	}
	if normalizeAnswer(response) == normalizeAnswer(item.Answer) {
		graded.Correct = true
		graded.Reason = "matches the expected answer"
		return graded
	}

	system, user := promptJudgeShortAnswer(item.Question, item.Answer, response)
	obj, err := e.ai.GenerateJSON(ctx, system, user, "short_answer_verdict_v1", schemaShortAnswerVerdictV1())
	if err != nil {
		// Fall back to a literal comparison rather than failing the whole
		// submission.
		e.log.Warn("short answer judge failed, using exact match",
			"question_id", item.ID, "error", err)
		graded.Correct = normalizeAnswer(response) == normalizeAnswer(item.Answer)
		graded.Reason = "graded by exact match"
		return graded
	}

	graded.Correct = anyBool(obj["correct"])
	graded.Reason = strings.TrimSpace(anyString(obj["reason"]))
	return graded
}

func (e *Evaluator) gradeCoding(ctx context.Context, item CodingItem, code string) GradedCoding {
	graded := GradedCoding{ID: item.ID, Question: item.Question}
	if strings.TrimSpace(code) == "" {
		graded.Feedback = "No code submitted."
		return graded
	}

	system, user := promptGradeCode(item, code)
	obj, err := e.ai.GenerateJSON(ctx, system, user, "code_grade_v1", schemaCodeGradeV1())
	if err != nil {
		e.log.Warn("code grading failed, using neutral score",
			"question_id", item.ID, "error", err)
		graded.Score = neutralCodeScore
		graded.Feedback = "Automatic grading was unavailable for this submission."
		return graded
	}

	score, _ := anyInt(obj["score"])
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	graded.Score = score
	graded.Correct = anyBool(obj["isCorrect"])
	graded.Feedback = strings.TrimSpace(anyString(obj["feedback"]))
	graded.Strengths = anyStringSlice(obj["strengths"])
	graded.Improvements = anyStringSlice(obj["improvements"])
	return graded
}
