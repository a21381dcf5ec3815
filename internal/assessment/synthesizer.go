package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// ErrSynthesisFailed means no structurally valid quiz came out of any
// generate attempt.
var ErrSynthesisFailed = errors.New("quiz synthesis failed")

type SynthesisInput struct {
	ModuleTitle       string
	ModuleDescription string
	Context           string
	Kind              QuizKind
}

type SynthesisResult struct {
	Quiz             QuizContent
	CritiqueScore    int
	CritiquePassed   bool
	GenerateAttempts int
}

// Synthesizer produces a quiz through a bounded generate-critique-retry
// loop. Structural failures retry without spending a critique call; when
// retries are exhausted the last structurally valid candidate is accepted
// anyway, carrying its critique score for observability.
type Synthesizer struct {
	ai  TextAI
	log *logger.Logger
	cfg Config
}

func NewSynthesizer(ai TextAI, log *logger.Logger, cfg Config) *Synthesizer {
	return &Synthesizer{ai: ai, log: log.With("component", "Synthesizer"), cfg: cfg}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (SynthesisResult, error) {
	var (
		priorIssues []string
		lastValid   *QuizContent
		lastScore   int
	)

	for attempt := 1; attempt <= s.cfg.MaxGenerateAttempts; attempt++ {
		system, user := promptSynthesizeQuiz(in, priorIssues)
		obj, err := s.ai.GenerateJSON(ctx, system, user, "training_quiz_v1", schemaQuizV1(in.Kind == QuizKindMCQCode))
		if err != nil {
			s.log.Warn("quiz generation call failed",
				"module", in.ModuleTitle, "attempt", attempt, "error", err)
			priorIssues = []string{"previous generation did not return valid JSON"}
			continue
		}

		quiz := shapeQuiz(obj, in.Kind)

		if issues := ValidateQuizStructure(quiz); len(issues) > 0 {
			s.log.Warn("generated quiz failed structural validation",
				"module", in.ModuleTitle, "attempt", attempt, "issues", strings.Join(issues, "; "))
			priorIssues = issues
			continue
		}

		crit, err := s.critique(ctx, quiz, in.ModuleTitle)
		if err != nil {
			// Critique is advisory; a broken critique service must not
			// block a structurally valid quiz.
			s.log.Warn("critique call failed, accepting candidate",
				"module", in.ModuleTitle, "attempt", attempt, "error", err)
			return SynthesisResult{Quiz: quiz, GenerateAttempts: attempt}, nil
		}

		if crit.Passed {
			return SynthesisResult{
				Quiz:             quiz,
				CritiqueScore:    crit.Score,
				CritiquePassed:   true,
				GenerateAttempts: attempt,
			}, nil
		}

		s.log.Info("critique rejected candidate",
			"module", in.ModuleTitle, "attempt", attempt,
			"score", crit.Score, "issues", strings.Join(crit.Issues, "; "))
		q := quiz
		lastValid = &q
		lastScore = crit.Score
		priorIssues = crit.Issues
	}

	if lastValid != nil {
		s.log.Warn("critique retries exhausted, accepting last valid candidate",
			"module", in.ModuleTitle, "critique_score", lastScore)
		return SynthesisResult{
			Quiz:             *lastValid,
			CritiqueScore:    lastScore,
			GenerateAttempts: s.cfg.MaxGenerateAttempts,
		}, nil
	}
	return SynthesisResult{}, fmt.Errorf("%w for module %q after %d attempts",
		ErrSynthesisFailed, in.ModuleTitle, s.cfg.MaxGenerateAttempts)
}

type critiqueResult struct {
	Score  int
	Passed bool
	Issues []string
}

func (s *Synthesizer) critique(ctx context.Context, quiz QuizContent, moduleTitle string) (critiqueResult, error) {
	system, user := promptCritiqueQuiz(quiz, moduleTitle)
	obj, err := s.ai.GenerateJSON(ctx, system, user, "quiz_critique_v1", schemaQuizCritiqueV1())
	if err != nil {
		return critiqueResult{}, err
	}

	score, _ := anyInt(obj["score"])
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return critiqueResult{
		Score:  score,
		Passed: anyBool(obj["passed"]),
		Issues: anyStringSlice(obj["issues"]),
	}, nil
}

// shapeQuiz coerces raw model output into the canonical structure. The
// coding section is dropped outright when the variant does not allow it,
// even if the model produced one.
func shapeQuiz(obj map[string]any, kind QuizKind) QuizContent {
	quiz := QuizContent{Kind: kind}

	if raw, ok := obj["mcq"].([]any); ok {
		for i, x := range raw {
			m, ok := x.(map[string]any)
			if !ok {
				continue
			}
			idx, _ := anyInt(m["correctIndex"])
			quiz.MCQ = append(quiz.MCQ, MCQItem{
				ID:           fmt.Sprintf("mcq_%d", i+1),
				Question:     strings.TrimSpace(anyString(m["question"])),
				Options:      anyStringSlice(m["options"]),
				CorrectIndex: idx,
				Explanation:  strings.TrimSpace(anyString(m["explanation"])),
			})
		}
	}

	if raw, ok := obj["oneLiners"].([]any); ok {
		for i, x := range raw {
			m, ok := x.(map[string]any)
			if !ok {
				continue
			}
			quiz.OneLiners = append(quiz.OneLiners, OneLinerItem{
				ID:          fmt.Sprintf("ol_%d", i+1),
				Question:    strings.TrimSpace(anyString(m["question"])),
				Answer:      strings.TrimSpace(anyString(m["answer"])),
				Explanation: strings.TrimSpace(anyString(m["explanation"])),
			})
		}
	}

	if kind == QuizKindMCQCode {
		if raw, ok := obj["coding"].([]any); ok {
			for i, x := range raw {
				m, ok := x.(map[string]any)
				if !ok {
					continue
				}
				quiz.Coding = append(quiz.Coding, CodingItem{
					ID:               fmt.Sprintf("code_%d", i+1),
					Question:         strings.TrimSpace(anyString(m["question"])),
					ExpectedApproach: strings.TrimSpace(anyString(m["expectedApproach"])),
					Language:         strings.TrimSpace(anyString(m["language"])),
					Hints:            anyStringSlice(m["hints"]),
				})
			}
		}
	}

	return quiz
}

// ValidateQuizStructure checks the canonical invariants locally, without a
// model call. An empty result means the quiz is structurally sound.
func ValidateQuizStructure(quiz QuizContent) []string {
	var issues []string

	if n := len(quiz.MCQ); n < MinMCQ || n > MaxMCQ {
		issues = append(issues, fmt.Sprintf("mcq count %d outside [%d,%d]", n, MinMCQ, MaxMCQ))
	}
	if n := len(quiz.OneLiners); n < MinOneLiners || n > MaxOneLiners {
		issues = append(issues, fmt.Sprintf("oneLiners count %d outside [%d,%d]", n, MinOneLiners, MaxOneLiners))
	}
	if quiz.Kind != QuizKindMCQCode && len(quiz.Coding) > 0 {
		issues = append(issues, "coding questions present but not permitted")
	}

	seen := make(map[string]bool)
	dup := func(question string) bool {
		key := normalizeAnswer(question)
		if key == "" {
			return false
		}
		if seen[key] {
			return true
		}
		seen[key] = true
		return false
	}

	for _, m := range quiz.MCQ {
		if m.Question == "" {
			issues = append(issues, fmt.Sprintf("mcq %s has empty question", m.ID))
		}
		if len(m.Options) != MCQOptions {
			issues = append(issues, fmt.Sprintf("mcq %s has %d options, want exactly %d", m.ID, len(m.Options), MCQOptions))
		}
		if m.CorrectIndex < 0 || m.CorrectIndex >= MCQOptions {
			issues = append(issues, fmt.Sprintf("mcq %s correctIndex %d out of range", m.ID, m.CorrectIndex))
		}
		if dup(m.Question) {
			issues = append(issues, fmt.Sprintf("duplicate question text: %q", clampText(m.Question, 80)))
		}
	}
	for _, o := range quiz.OneLiners {
		if o.Question == "" || o.Answer == "" {
			issues = append(issues, fmt.Sprintf("one-liner %s missing question or answer", o.ID))
		}
		if dup(o.Question) {
			issues = append(issues, fmt.Sprintf("duplicate question text: %q", clampText(o.Question, 80)))
		}
	}
	for _, c := range quiz.Coding {
		if c.Question == "" || c.ExpectedApproach == "" || c.Language == "" {
			issues = append(issues, fmt.Sprintf("coding %s missing question, approach, or language", c.ID))
		}
		if dup(c.Question) {
			issues = append(issues, fmt.Sprintf("duplicate question text: %q", clampText(c.Question, 80)))
		}
	}

	return issues
}
