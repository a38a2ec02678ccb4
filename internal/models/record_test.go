package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkingRecord_RoundTrip(t *testing.T) {
	markedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("remote result", func(t *testing.T) {
		result := &MarkingResult{
			QuestionID:      "q1",
			QuestionType:    LongAnswer,
			BatchID:         "batch-1",
			UserAnswer:      TextAnswer("Because of alliances."),
			AnnotatedAnswer: AnnotatedAnswer{Text: "Because of `alliances`."},
			MarkingTable:    "| AO1 | 3 |",
			MarkMax:         6,
			UserMark:        MarkPtr(4),
			Annotations:     Annotations{Strong: []string{"alliances"}, Weak: []string{}},
			IsMarked:        true,
			AOAnalysis:      json.RawMessage(`{"AO1":{"score":3}}`),
			MarkedAt:        &markedAt,
		}

		record, err := NewMarkingRecord(result, SessionMock)
		require.NoError(t, err)
		assert.Equal(t, SessionMock, record.SessionKind)
		assert.Equal(t, "batch-1", record.BatchID)

		back, err := record.ToResult()
		require.NoError(t, err)
		assert.Equal(t, "Because of alliances.", back.UserAnswer.Text)
		assert.Equal(t, "Because of `alliances`.", back.AnnotatedAnswer.Text)
		assert.Equal(t, []string{"alliances"}, back.Annotations.Strong)
		assert.Equal(t, 4.0, *back.UserMark)
		assert.JSONEq(t, `{"AO1":{"score":3}}`, string(back.AOAnalysis))
		assert.Equal(t, markedAt, *back.MarkedAt)
	})

	t.Run("deterministic result keeps pairs", func(t *testing.T) {
		result := &MarkingResult{
			QuestionID:   "q2",
			QuestionType: MatchPair,
			UserAnswer:   KeyedAnswer(KeyedValue{Key: "a", Values: []string{"1"}}),
			AnnotatedAnswer: AnnotatedAnswer{Pairs: []AnswerPair{
				{CorrectAnswer: "1", UserAnswer: "1", IsCorrect: true},
			}},
			MarkMax:  1,
			UserMark: MarkPtr(1),
			IsMarked: true,
		}

		record, err := NewMarkingRecord(result, SessionPractice)
		require.NoError(t, err)
		assert.Empty(t, record.AOAnalysis)

		back, err := record.ToResult()
		require.NoError(t, err)
		require.Len(t, back.AnnotatedAnswer.Pairs, 1)
		assert.True(t, back.AnnotatedAnswer.Pairs[0].IsCorrect)
		assert.Equal(t, AnswerKeyed, back.UserAnswer.Kind)
	})
}

func TestMarkingResult_CloneIsIndependent(t *testing.T) {
	original := &MarkingResult{
		QuestionID:      "q1",
		UserMark:        MarkPtr(2),
		Annotations:     Annotations{Strong: []string{"a"}},
		AnnotatedAnswer: AnnotatedAnswer{Pairs: []AnswerPair{{CorrectAnswer: "x"}}},
	}

	clone := original.Clone()
	*clone.UserMark = 0
	clone.Annotations.Strong[0] = "changed"
	clone.AnnotatedAnswer.Pairs[0].CorrectAnswer = "y"

	assert.Equal(t, 2.0, *original.UserMark)
	assert.Equal(t, "a", original.Annotations.Strong[0])
	assert.Equal(t, "x", original.AnnotatedAnswer.Pairs[0].CorrectAnswer)

	var nilResult *MarkingResult
	assert.Nil(t, nilResult.Clone())
}
