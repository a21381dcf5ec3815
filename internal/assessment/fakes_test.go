package assessment

import (
	"context"
	"fmt"
	"sync"
)

// fakeTextAI scripts GenerateJSON responses per schema name. When a schema
// has a queue of responses, calls consume them in order; an entry with a
// non-nil err simulates a failed model call.
type fakeTextAI struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	obj map[string]any
	err error
}

type fakeCall struct {
	schemaName string
	system     string
	user       string
}

func newFakeTextAI() *fakeTextAI {
	return &fakeTextAI{responses: make(map[string][]fakeResponse)}
}

func (f *fakeTextAI) queue(schemaName string, obj map[string]any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[schemaName] = append(f.responses[schemaName], fakeResponse{obj: obj, err: err})
}

func (f *fakeTextAI) GenerateJSON(_ context.Context, system, user, schemaName string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{schemaName: schemaName, system: system, user: user})
	q := f.responses[schemaName]
	if len(q) == 0 {
		return nil, fmt.Errorf("no scripted response for schema %q", schemaName)
	}
	r := q[0]
	f.responses[schemaName] = q[1:]
	return r.obj, r.err
}

func (f *fakeTextAI) callCount(schemaName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.schemaName == schemaName {
			n++
		}
	}
	return n
}

// validQuizObj builds a raw model payload that passes structural
// validation: n MCQs with 4 options each and two one-liners.
func validQuizObj(nMCQ int, withCoding bool) map[string]any {
	mcq := make([]any, 0, nMCQ)
	for i := 0; i < nMCQ; i++ {
		mcq = append(mcq, map[string]any{
			"question":     fmt.Sprintf("MCQ question %d?", i+1),
			"options":      []any{"a", "b", "c", "d"},
			"correctIndex": float64(i % 4),
			"explanation":  "because",
		})
	}
	obj := map[string]any{
		"mcq": mcq,
		"oneLiners": []any{
			map[string]any{"question": "Short question one?", "answer": "one", "explanation": "e1"},
			map[string]any{"question": "Short question two?", "answer": "two", "explanation": "e2"},
		},
	}
	if withCoding {
		obj["coding"] = []any{
			map[string]any{
				"question":         "Write a function.",
				"expectedApproach": "iterate and sum",
				"language":         "python",
				"hints":            []any{"use a loop"},
			},
		}
	}
	return obj
}

func passingCritique() map[string]any {
	return map[string]any{"score": float64(92), "passed": true, "issues": []any{}}
}

func failingCritique(issues ...string) map[string]any {
	raw := make([]any, 0, len(issues))
	for _, s := range issues {
		raw = append(raw, s)
	}
	return map[string]any{"score": float64(40), "passed": false, "issues": raw}
}
