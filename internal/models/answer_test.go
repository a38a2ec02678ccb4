package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
)

func TestAnswer_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  AnswerKind
		check func(t *testing.T, a Answer)
	}{
		{
			name:  "null",
			input: `null`,
			kind:  AnswerEmpty,
		},
		{
			name:  "text",
			input: `"Paris"`,
			kind:  AnswerText,
			check: func(t *testing.T, a Answer) { assert.Equal(t, "Paris", a.Text) },
		},
		{
			name:  "bare number kept as text",
			input: `42.5`,
			kind:  AnswerText,
			check: func(t *testing.T, a Answer) { assert.Equal(t, "42.5", a.Text) },
		},
		{
			name:  "list of scalars",
			input: `["b", 3, "a"]`,
			kind:  AnswerList,
			check: func(t *testing.T, a Answer) { assert.Equal(t, []string{"b", "3", "a"}, a.List) },
		},
		{
			name:  "keyed map keeps order",
			input: `{"z": "1", "a": "2", "m": ["x", "y"]}`,
			kind:  AnswerKeyed,
			check: func(t *testing.T, a Answer) {
				require.Len(t, a.Keyed, 3)
				assert.Equal(t, "z", a.Keyed[0].Key)
				assert.Equal(t, "a", a.Keyed[1].Key)
				assert.Equal(t, "m", a.Keyed[2].Key)
				assert.True(t, a.Keyed[2].Categorized)
				assert.Equal(t, "x, y", a.Keyed[2].Value())
			},
		},
		{
			name:  "nested objects are structured",
			input: `{"shapes": [{"type": "line"}]}`,
			kind:  AnswerStructured,
			check: func(t *testing.T, a Answer) { assert.JSONEq(t, `{"shapes": [{"type": "line"}]}`, string(a.Raw)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))
			assert.Equal(t, tt.kind, a.Kind)
			if tt.check != nil {
				tt.check(t, a)
			}
		})
	}
}

func TestAnswer_MarshalKeepsKeyOrder(t *testing.T) {
	a := KeyedAnswer(
		KeyedValue{Key: "second", Values: []string{"b"}},
		KeyedValue{Key: "first", Values: []string{"a", "c"}, Categorized: true},
	)
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"second":"b","first":["a","c"]}`, string(data))

	empty, err := json.Marshal(ListAnswer())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(empty))
}

func TestAnswer_Accessors(t *testing.T) {
	t.Run("shape mismatch", func(t *testing.T) {
		_, err := ListAnswer("a").AsString()
		assert.ErrorIs(t, err, apperrors.ErrInvalidAnswerShape)

		_, err = TextAnswer("a").AsList()
		assert.ErrorIs(t, err, apperrors.ErrInvalidAnswerShape)
	})

	t.Run("empty answers are zero values", func(t *testing.T) {
		s, err := Answer{}.AsString()
		require.NoError(t, err)
		assert.Empty(t, s)

		list, err := Answer{}.AsList()
		require.NoError(t, err)
		assert.Nil(t, list)
	})

	t.Run("keyed from encoded text", func(t *testing.T) {
		keyed, err := TextAnswer(`{"1": "B", "2": "A"}`).AsKeyed()
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, Values(keyed))

		_, err = TextAnswer(`{"1": `).AsKeyed()
		assert.ErrorIs(t, err, apperrors.ErrInvalidAnswerShape)

		_, err = TextAnswer("plain").AsKeyed()
		assert.ErrorIs(t, err, apperrors.ErrInvalidAnswerShape)
	})
}
