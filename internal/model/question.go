package model

// QuestionType enumerates the canonical question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "single-choice"
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeTrueFalse      QuestionType = "true-false"
	QuestionTypeTextShort      QuestionType = "text-short"
	QuestionTypeTextLong       QuestionType = "text-long"
	QuestionTypeCoding         QuestionType = "coding"
)

// IsChoice reports whether answers to this type reference option IDs.
func (t QuestionType) IsChoice() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultipleChoice, QuestionTypeTrueFalse:
		return true
	}
	return false
}

// Option is a selectable answer of a choice question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AssessmentQuestion is the canonical representation of a question, independent
// of the shape the backend stored it in.
type AssessmentQuestion struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Points    float64      `json:"points"`
	TimeLimit *int         `json:"timeLimit,omitempty"` // seconds
	Options   []Option     `json:"options"`
}

// HasOption reports whether id names one of the question's options.
func (q *AssessmentQuestion) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
