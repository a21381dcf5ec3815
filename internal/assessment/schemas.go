package assessment

// json_schema payloads for structured model outputs, one per call site.

func schemaRetrievalPlanV1() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queries": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
				"maxItems": 4,
			},
			"focusAreas": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"difficulty": map[string]any{
				"type": "string",
				"enum": []any{"easy", "mixed", "hard"},
			},
		},
		"required":             []any{"queries", "focusAreas", "difficulty"},
		"additionalProperties": false,
	}
}

func schemaQuizV1(includeCoding bool) map[string]any {
	mcq := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": MCQOptions,
				"maxItems": MCQOptions,
			},
			"correctIndex": map[string]any{"type": "integer", "minimum": 0, "maximum": MCQOptions - 1},
			"explanation":  map[string]any{"type": "string"},
		},
		"required":             []any{"question", "options", "correctIndex", "explanation"},
		"additionalProperties": false,
	}
	oneLiner := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":    map[string]any{"type": "string"},
			"answer":      map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
		"required":             []any{"question", "answer", "explanation"},
		"additionalProperties": false,
	}

	props := map[string]any{
		"mcq": map[string]any{
			"type":     "array",
			"items":    mcq,
			"minItems": MinMCQ,
			"maxItems": MaxMCQ,
		},
		"oneLiners": map[string]any{
			"type":     "array",
			"items":    oneLiner,
			"minItems": MinOneLiners,
			"maxItems": MaxOneLiners,
		},
	}
	required := []any{"mcq", "oneLiners"}

	if includeCoding {
		coding := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question":         map[string]any{"type": "string"},
				"expectedApproach": map[string]any{"type": "string"},
				"language":         map[string]any{"type": "string"},
				"hints": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required":             []any{"question", "expectedApproach", "language", "hints"},
			"additionalProperties": false,
		}
		props["coding"] = map[string]any{
			"type":  "array",
			"items": coding,
		}
		required = append(required, "coding")
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func schemaQuizCritiqueV1() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":  map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"passed": map[string]any{"type": "boolean"},
			"issues": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []any{"score", "passed", "issues"},
		"additionalProperties": false,
	}
}

func schemaShortAnswerVerdictV1() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"correct": map[string]any{"type": "boolean"},
			"reason":  map[string]any{"type": "string"},
		},
		"required":             []any{"correct", "reason"},
		"additionalProperties": false,
	}
}

func schemaCodeGradeV1() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isCorrect": map[string]any{"type": "boolean"},
			"score":     map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"feedback":  map[string]any{"type": "string"},
			"strengths": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"improvements": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []any{"isCorrect", "score", "feedback", "strengths", "improvements"},
		"additionalProperties": false,
	}
}

func schemaPolicyDecisionV1() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"allowRetry":           map[string]any{"type": "boolean"},
			"retriesGranted":       map[string]any{"type": "integer", "minimum": 0},
			"requiresRegeneration": map[string]any{"type": "boolean"},
			"unlockResources": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": []any{"quiz", "module", "chat"},
				},
			},
			"lockModule":   map[string]any{"type": "boolean"},
			"contactAdmin": map[string]any{"type": "boolean"},
			"message":      map[string]any{"type": "string"},
			"recommendations": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{
			"allowRetry", "retriesGranted", "requiresRegeneration",
			"unlockResources", "lockModule", "contactAdmin", "message", "recommendations",
		},
		"additionalProperties": false,
	}
}
