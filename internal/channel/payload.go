package channel

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

var quoteReplacer = strings.NewReplacer(
	`"`, "'",
	"\u201c", "'",
	"\u201d", "'",
	"\u2018", "'",
	"\u2019", "'",
)

// NormalizeQuotes maps double and curly quotes to a plain apostrophe.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// UsesAOMarking decides whether a question goes to the assessment-objective
// aware operation: non-maths subjects whose mark scheme mentions "AO" or
// "Level 1".
func UsesAOMarking(subject, markScheme string) bool {
	if strings.Contains(strings.ToLower(subject), "math") {
		return false
	}
	return strings.Contains(markScheme, "AO") || strings.Contains(markScheme, "Level 1")
}

// BuildMarkRequest builds the request payload for q and picks the operation.
func BuildMarkRequest(q *models.QuestionMarkingContext, specificationID string) (MessageType, MarkRequest, error) {
	answer, err := AnswerText(q.UserAnswer)
	if err != nil {
		return "", MarkRequest{}, err
	}

	req := MarkRequest{
		Answer:          NormalizeQuotes(answer),
		Question:        q.FullQuestionText(),
		LessonID:        q.LessonID,
		MarkScheme:      q.MarkScheme,
		MarkMax:         q.MarkMax,
		ID:              q.QuestionID,
		SpecificationID: specificationID,
	}

	if !q.Canvas.IsEmpty() {
		artifact, err := RenderCanvas(q.Canvas)
		if err != nil {
			return "", MarkRequest{}, fmt.Errorf("failed to render canvas for question %s: %w", q.QuestionID, err)
		}
		req.Canvas = artifact.Image
		req.CanvasLatex = artifact.Latex
		req.CanvasStrokes = artifact.Summary
	}

	op := MsgMarkAnswer
	if UsesAOMarking(q.Subject, q.MarkScheme) {
		op = MsgMarkAnswerAO
	}
	return op, req, nil
}

// AnswerText flattens a submitted answer to the text sent for marking.
func AnswerText(a models.Answer) (string, error) {
	switch a.Kind {
	case models.AnswerList:
		return strings.Join(a.List, "\n"), nil
	case models.AnswerKeyed:
		return strings.Join(models.Values(a.Keyed), "\n"), nil
	case models.AnswerStructured:
		// canvas-only answers carry their work in the canvas fields
		return "", nil
	}
	return a.AsString()
}
