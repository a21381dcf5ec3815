package assessment

import (
	"context"
	"fmt"
	"strings"
)

// TextAI is the slice of the model client the engine uses for planning,
// synthesis, critique, grading and decisioning. Every call carries a
// json_schema; free-form text generation stays on the full client.
type TextAI interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ChunkMatch is one retrieved document chunk with its similarity score.
type ChunkMatch struct {
	Text  string
	Score float64
}

// ChunkSearcher runs a filtered nearest-neighbor query against the tenant
// namespace.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]ChunkMatch, error)
}

// QuizKind is the shape variant of a quiz, selected once from the
// department capability flag rather than re-derived per consumer.
type QuizKind string

const (
	QuizKindMCQOnly QuizKind = "mcq_only"
	QuizKindMCQCode QuizKind = "mcq_code"
)

// KindForCapability maps the department coding capability to the variant.
func KindForCapability(allowCoding bool) QuizKind {
	if allowCoding {
		return QuizKindMCQCode
	}
	return QuizKindMCQOnly
}

// Structural bounds for a generated quiz.
const (
	MinMCQ       = 5
	MaxMCQ       = 25
	MinOneLiners = 2
	MaxOneLiners = 15
	MCQOptions   = 4
)

type MCQItem struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

type OneLinerItem struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

type CodingItem struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	ExpectedApproach string   `json:"expectedApproach"`
	Language         string   `json:"language"`
	Hints            []string `json:"hints"`
}

// QuizContent is the canonical generated quiz. Immutable once persisted.
type QuizContent struct {
	Kind      QuizKind       `json:"kind"`
	MCQ       []MCQItem      `json:"mcq"`
	OneLiners []OneLinerItem `json:"oneLiners"`
	Coding    []CodingItem   `json:"coding,omitempty"`
}

// AnswerSet is a learner's raw submission.
type AnswerSet struct {
	MCQ       []MCQAnswer      `json:"mcq"`
	OneLiners []OneLinerAnswer `json:"oneLiners"`
	Coding    []CodingAnswer   `json:"coding"`
}

type MCQAnswer struct {
	ID            string `json:"id"`
	SelectedIndex int    `json:"selectedIndex"`
}

type OneLinerAnswer struct {
	ID       string `json:"id"`
	Response string `json:"response"`
}

type CodingAnswer struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type GradedMCQ struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	SelectedIndex int    `json:"selectedIndex"`
	CorrectIndex  int    `json:"correctIndex"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation"`
}

type GradedOneLiner struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Response    string `json:"response"`
	Answer      string `json:"answer"`
	Correct     bool   `json:"correct"`
	Reason      string `json:"reason"`
	Explanation string `json:"explanation"`
}

type GradedCoding struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Score        int      `json:"score"`
	Correct      bool     `json:"correct"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Evaluation is the graded result of one submission. Producing it never
// mutates the quiz.
type Evaluation struct {
	MCQ       []GradedMCQ      `json:"mcq"`
	OneLiners []GradedOneLiner `json:"oneLiners"`
	Coding    []GradedCoding   `json:"coding"`
}

// ---- shared coercion helpers for model output ----

func anyString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func anyInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func anyBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func anyStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		s := strings.TrimSpace(anyString(x))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampText(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
