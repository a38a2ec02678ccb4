package models

type QuestionType string

const (
	// Deterministically scored
	MCQ                 QuestionType = "mcq"
	TrueFalse           QuestionType = "true_false"
	MCQMultiple         QuestionType = "mcq_multiple"
	FillInTheGapsText   QuestionType = "fill_in_the_gaps_text"
	MatchPair           QuestionType = "match_pair"
	Spot                QuestionType = "spot"
	FixSentence         QuestionType = "fix_sentence"
	Number              QuestionType = "number"
	Reorder             QuestionType = "reorder"
	Group               QuestionType = "group"
	Drawing             QuestionType = "drawing"
	FillInTheGapsNumber QuestionType = "fill_in_the_gaps_number"
	Rearrange           QuestionType = "rearrange"

	// Remotely marked
	ShortAnswer QuestionType = "short_answer"
	LongAnswer  QuestionType = "long_answer"
	Explanation QuestionType = "explanation"
	Calculation QuestionType = "calculation"
)

// RequiresRemoteMarking reports whether the type is marked by the external AI marker.
func (t QuestionType) RequiresRemoteMarking() bool {
	switch t {
	case ShortAnswer, LongAnswer, Explanation, Calculation:
		return true
	}
	return false
}

// IsKnown reports whether any marking path exists for the type.
func (t QuestionType) IsKnown() bool {
	for _, known := range AllQuestionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func AllQuestionTypes() []QuestionType {
	return []QuestionType{
		MCQ, TrueFalse, MCQMultiple, FillInTheGapsText, MatchPair, Spot, FixSentence, Number, Reorder, Group,
		Drawing, FillInTheGapsNumber, Rearrange,
		ShortAnswer, LongAnswer, Explanation, Calculation,
	}
}

type SessionKind string

const (
	SessionPractice SessionKind = "practice"
	SessionMock     SessionKind = "mock"
	SessionPaper    SessionKind = "paper"
)

// TranscriptMessage is one turn of a spoken or chat answer attached to a question.
type TranscriptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QuestionMarkingContext is the input to one marking operation. It is not
// mutated after submission.
type QuestionMarkingContext struct {
	QuestionID    string       `json:"question_id" validate:"required"`
	QuestionType  QuestionType `json:"question_type" validate:"required"`
	QuestionText  string       `json:"question_text"`
	QuestionStem  *string      `json:"question_stem,omitempty"`
	UserAnswer    Answer       `json:"user_answer"`
	CorrectAnswer Answer       `json:"correct_answer"`
	MarkMax       int          `json:"mark_max" validate:"min=0"`

	// Remote marking inputs
	MarkScheme string `json:"mark_scheme,omitempty"`
	LessonID   string `json:"lesson_id,omitempty"`
	Subject    string `json:"subject,omitempty"`

	// Auxiliary per-type data
	Canvas     *CanvasData         `json:"canvas,omitempty"`
	Transcript []TranscriptMessage `json:"transcript,omitempty"`

	// SkipMarking stores the raw answer without scoring.
	SkipMarking bool `json:"skip_marking,omitempty"`
}

// FullQuestionText returns the question text with the stem prepended when present.
func (q *QuestionMarkingContext) FullQuestionText() string {
	if q.QuestionStem == nil || *q.QuestionStem == "" {
		return q.QuestionText
	}
	if q.QuestionText == "" {
		return *q.QuestionStem
	}
	return *q.QuestionStem + "\n\n" + q.QuestionText
}
