package assessment

// Client-facing quiz shapes. The answer key never crosses the API
// boundary: correctIndex, canonical answers, and expected approaches are
// stripped here and only here.

type ClientMCQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type ClientOneLiner struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

type ClientCoding struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Language string   `json:"language"`
	Hints    []string `json:"hints"`
}

type ClientQuiz struct {
	Kind      QuizKind         `json:"kind"`
	MCQ       []ClientMCQ      `json:"mcq"`
	OneLiners []ClientOneLiner `json:"oneLiners"`
	Coding    []ClientCoding   `json:"coding,omitempty"`
}

func SanitizeForClient(quiz QuizContent) ClientQuiz {
	out := ClientQuiz{
		Kind:      quiz.Kind,
		MCQ:       make([]ClientMCQ, 0, len(quiz.MCQ)),
		OneLiners: make([]ClientOneLiner, 0, len(quiz.OneLiners)),
	}
	for _, m := range quiz.MCQ {
		out.MCQ = append(out.MCQ, ClientMCQ{ID: m.ID, Question: m.Question, Options: m.Options})
	}
	for _, o := range quiz.OneLiners {
		out.OneLiners = append(out.OneLiners, ClientOneLiner{ID: o.ID, Question: o.Question})
	}
	for _, c := range quiz.Coding {
		out.Coding = append(out.Coding, ClientCoding{ID: c.ID, Question: c.Question, Language: c.Language, Hints: c.Hints})
	}
	return out
}
