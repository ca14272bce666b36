package tutor

import "github.com/abhisek/techtree/internal/llm"

// IntentSchema is the classifier reply.
var IntentSchema = &llm.Schema{
	Name:        "lesson-intent",
	Description: "The learner's intent for this turn",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"reasoning": map[string]any{
				"type": "string",
			},
		},
		"required": []any{"intent"},
	},
}

var optionsDefinition = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":   map[string]any{"type": []any{"string", "number"}},
			"text": map[string]any{"type": "string"},
		},
		"required": []any{"id", "text"},
	},
}

var anyList = map[string]any{"type": "array"}

// ExerciseSchema is the exercise generator reply.
var ExerciseSchema = &llm.Schema{
	Name:        "lesson-exercise",
	Description: "A practice exercise for the current lesson",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":                       map[string]any{"type": []any{"string", "number"}},
			"type":                     map[string]any{"type": "string", "minLength": 1},
			"instructions":             map[string]any{"type": "string"},
			"question":                 map[string]any{"type": "string"},
			"options":                  optionsDefinition,
			"items":                    anyList,
			"hints":                    map[string]any{"type": []any{"array", "string"}},
			"expected_solution_format": map[string]any{"type": "string"},
			"explanation":              map[string]any{"type": "string"},
		},
		"required": []any{"type"},
	},
}

// AssessmentSchema is the assessment generator reply.
var AssessmentSchema = &llm.Schema{
	Name:        "lesson-assessment",
	Description: "An assessment question for the current lesson",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":            map[string]any{"type": []any{"string", "number"}},
			"type":          map[string]any{"type": "string", "minLength": 1},
			"question_text": map[string]any{"type": "string", "minLength": 1},
			"options":       optionsDefinition,
			"explanation":   map[string]any{"type": "string"},
		},
		"required": []any{"type", "question_text"},
	},
}

// EvaluationSchema is the evaluator reply. Score may arrive as a number
// or a numeric string.
var EvaluationSchema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "Evaluation of a learner's answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":       map[string]any{"type": []any{"number", "string"}},
			"is_correct":  map[string]any{"type": "boolean"},
			"feedback":    map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
		"required": []any{"score", "feedback"},
	},
}
