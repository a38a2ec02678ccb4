package channel

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

func TestNormalizeQuotes(t *testing.T) {
	assert.Equal(t, "he said 'hi' and 'bye' it's", NormalizeQuotes("he said \"hi\" and “bye” it’s"))
}

func TestUsesAOMarking(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		markScheme string
		want       bool
	}{
		{"english with AO", "English Literature", "AO1: analyse language", true},
		{"history with levels", "History", "Level 1 (1-3 marks)", true},
		{"maths never", "Mathematics", "AO1 use and apply standard techniques", false},
		{"maths case insensitive", "further MATHS", "Level 1", false},
		{"plain scheme", "Biology", "1 mark for mitochondria", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UsesAOMarking(tt.subject, tt.markScheme))
		})
	}
}

func TestBuildMarkRequest(t *testing.T) {
	stem := "Read the extract."
	q := &models.QuestionMarkingContext{
		QuestionID:   "q1",
		QuestionType: models.LongAnswer,
		QuestionText: "How does the writer build tension?",
		QuestionStem: &stem,
		UserAnswer:   models.TextAnswer("The “dark” room"),
		MarkMax:      8,
		MarkScheme:   "AO2 Level 1",
		LessonID:     "lesson-7",
		Subject:      "English",
	}

	op, req, err := BuildMarkRequest(q, "spec-9")
	require.NoError(t, err)
	assert.Equal(t, MsgMarkAnswerAO, op)
	assert.Equal(t, "The 'dark' room", req.Answer)
	assert.Equal(t, "Read the extract.\n\nHow does the writer build tension?", req.Question)
	assert.Equal(t, "q1", req.ID)
	assert.Equal(t, "spec-9", req.SpecificationID)
	assert.Equal(t, 8, req.MarkMax)
	assert.Empty(t, req.Canvas)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	for _, field := range []string{"answer", "canvas", "canvasLatex", "canvasStrokes", "question", "lessonId", "markscheme", "markmax", "id", "specification_id"} {
		assert.Contains(t, string(raw), `"`+field+`"`)
	}
}

func TestBuildMarkRequest_WithCanvas(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	q := &models.QuestionMarkingContext{
		QuestionID:   "q2",
		QuestionType: models.Calculation,
		UserAnswer:   models.TextAnswer("x = 2"),
		MarkMax:      3,
		Subject:      "Maths",
		Canvas: &models.CanvasData{
			Width:  40,
			Height: 30,
			Strokes: []models.Stroke{
				{Points: []models.Point{{X: 1, Y: 1}, {X: 20, Y: 15}}, Color: "#f00", Width: 2, CreatedAt: base.Add(time.Second)},
			},
			Expressions: []models.GraphExpression{
				{ID: "e2", Latex: "y=2x", CreatedAt: base.Add(2 * time.Second)},
				{ID: "e1", Latex: "y=x^2", CreatedAt: base},
			},
		},
	}

	op, req, err := BuildMarkRequest(q, "")
	require.NoError(t, err)
	assert.Equal(t, MsgMarkAnswer, op)
	assert.True(t, strings.HasPrefix(req.Canvas, "data:image/png;base64,"))
	assert.Equal(t, "y=x^2\ny=2x", req.CanvasLatex)

	var summary []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(req.CanvasStrokes), &summary))
	require.Len(t, summary, 3)
	assert.Equal(t, "expression", summary[0]["kind"])
	assert.Equal(t, "stroke", summary[1]["kind"])
	assert.Equal(t, "expression", summary[2]["kind"])
}

func TestRenderCanvas_ExpressionsOnly(t *testing.T) {
	artifact, err := RenderCanvas(&models.CanvasData{
		Expressions: []models.GraphExpression{{ID: "e1", Latex: "y=1"}},
	})
	require.NoError(t, err)
	assert.Empty(t, artifact.Image)
	assert.Equal(t, "y=1", artifact.Latex)
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		weak   []string
		strong []string
		want   string
	}{
		{
			name:   "weak then strong",
			answer: "The storm shows chaos. It is bad.",
			weak:   []string{"It is bad."},
			strong: []string{"The storm shows chaos."},
			want:   "`The storm shows chaos.` *It is bad.*",
		},
		{
			name:   "longest phrase first",
			answer: "dark night sky",
			strong: []string{"dark", "dark night"},
			want:   "`dark night` sky",
		},
		{
			name:   "weak wins when flagged both ways",
			answer: "it rains",
			weak:   []string{"it rains"},
			strong: []string{"it rains", "rains"},
			want:   "*it rains*",
		},
		{
			name:   "every occurrence",
			answer: "red and red",
			weak:   []string{"red"},
			want:   "*red* and *red*",
		},
		{
			name:   "empty phrases ignored",
			answer: "plain",
			weak:   []string{"", "  "},
			want:   "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.answer, tt.weak, tt.strong))
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Run("marking table object form", func(t *testing.T) {
		ev, err := DecodeEvent(Message{Type: MsgMarkingTable, Payload: json.RawMessage(`{"question_id":"q1","marking_table":"| x |"}`)})
		require.NoError(t, err)
		assert.Equal(t, "q1", ev.QuestionID)
		assert.Equal(t, "| x |", ev.MarkingTable)
	})

	t.Run("final with string mark", func(t *testing.T) {
		ev, err := DecodeEvent(Message{Type: MsgFinalResponse, Payload: json.RawMessage(`{"question_id":"q1","mark":"2.5","ao_analysis":{"AO1":2}}`)})
		require.NoError(t, err)
		assert.Equal(t, Mark(2.5), ev.Final.Mark)
		assert.JSONEq(t, `{"AO1":2}`, string(ev.Final.AOAnalysis))
	})

	t.Run("empty error payload", func(t *testing.T) {
		ev, err := DecodeEvent(Message{Type: MsgError, Payload: json.RawMessage(`{}`)})
		require.NoError(t, err)
		assert.Equal(t, EventError, ev.Kind)
		assert.Empty(t, ev.QuestionID)
		assert.NotEmpty(t, ev.Message)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodeEvent(Message{Type: "progress"})
		assert.Error(t, err)
	})
}
