package models

import (
	"encoding/json"
	"time"
)

// AnswerPair is one row of a rubric table.
type AnswerPair struct {
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

type Annotations struct {
	Strong []string `json:"strong"`
	Weak   []string `json:"weak"`
}

func (a Annotations) clone() Annotations {
	return Annotations{
		Strong: append([]string(nil), a.Strong...),
		Weak:   append([]string(nil), a.Weak...),
	}
}

// AnnotatedAnswer is either rewritten answer text (remote marking) or a list
// of answer pairs (deterministic marking).
type AnnotatedAnswer struct {
	Text  string
	Pairs []AnswerPair
}

func (a AnnotatedAnswer) MarshalJSON() ([]byte, error) {
	if a.Pairs != nil {
		return json.Marshal(a.Pairs)
	}
	return json.Marshal(a.Text)
}

func (a *AnnotatedAnswer) UnmarshalJSON(data []byte) error {
	*a = AnnotatedAnswer{}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &a.Pairs)
	}
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &a.Text)
}

// MarkingResult is the live and final outcome of marking one question.
type MarkingResult struct {
	QuestionID      string          `json:"question_id"`
	QuestionType    QuestionType    `json:"question_type"`
	BatchID         string          `json:"batch_id,omitempty"`
	UserAnswer      Answer          `json:"user_answer"`
	AnnotatedAnswer AnnotatedAnswer `json:"annotated_answer"`
	MarkingTable    string          `json:"marking_table"`
	MarkMax         int             `json:"mark_max"`
	UserMark        *float64        `json:"user_mark"`
	Annotations     Annotations     `json:"annotations"`
	IsMarked        bool            `json:"is_marked"`
	AOAnalysis      json.RawMessage `json:"ao_analysis,omitempty"`
	MarkedAt        *time.Time      `json:"marked_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the coordinator loop.
func (r *MarkingResult) Clone() *MarkingResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Annotations = r.Annotations.clone()
	if r.AnnotatedAnswer.Pairs != nil {
		out.AnnotatedAnswer.Pairs = append([]AnswerPair(nil), r.AnnotatedAnswer.Pairs...)
	}
	if r.UserMark != nil {
		mark := *r.UserMark
		out.UserMark = &mark
	}
	if r.AOAnalysis != nil {
		out.AOAnalysis = append(json.RawMessage(nil), r.AOAnalysis...)
	}
	if r.MarkedAt != nil {
		at := *r.MarkedAt
		out.MarkedAt = &at
	}
	return &out
}

func MarkPtr(v float64) *float64 {
	return &v
}
