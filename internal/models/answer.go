package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
)

type AnswerKind int

const (
	AnswerEmpty AnswerKind = iota
	AnswerText
	AnswerList
	AnswerKeyed
	AnswerStructured
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerEmpty:
		return "empty"
	case AnswerText:
		return "text"
	case AnswerList:
		return "list"
	case AnswerKeyed:
		return "keyed"
	default:
		return "structured"
	}
}

// KeyedValue is one entry of a keyed answer. Categorized is set when the
// value was given as an array (multi-category or bucket contents).
type KeyedValue struct {
	Key         string
	Values      []string
	Categorized bool
}

// Value returns the single value of an uncategorized entry, or the values
// joined with ", " otherwise.
func (v KeyedValue) Value() string {
	if len(v.Values) == 1 && !v.Categorized {
		return v.Values[0]
	}
	return strings.Join(v.Values, ", ")
}

// Answer is the tagged union for submitted and correct answers: a string,
// a string array, an ordered keyed map, or opaque structured data.
type Answer struct {
	Kind  AnswerKind
	Text  string
	List  []string
	Keyed []KeyedValue
	Raw   json.RawMessage
}

func TextAnswer(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

func ListAnswer(items ...string) Answer {
	return Answer{Kind: AnswerList, List: items}
}

func KeyedAnswer(values ...KeyedValue) Answer {
	return Answer{Kind: AnswerKeyed, Keyed: values}
}

func (a Answer) IsEmpty() bool {
	return a.Kind == AnswerEmpty
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*a = Answer{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		a.Kind, a.Text = AnswerText, s
		return nil
	case '[':
		list, ok := decodeStringList(trimmed)
		if !ok {
			a.Kind, a.Raw = AnswerStructured, append(json.RawMessage(nil), trimmed...)
			return nil
		}
		a.Kind, a.List = AnswerList, list
		return nil
	case '{':
		keyed, ok, err := decodeKeyed(trimmed)
		if err != nil {
			return err
		}
		if !ok {
			a.Kind, a.Raw = AnswerStructured, append(json.RawMessage(nil), trimmed...)
			return nil
		}
		a.Kind, a.Keyed = AnswerKeyed, keyed
		return nil
	default:
		// bare numbers and booleans are kept as their literal text
		a.Kind, a.Text = AnswerText, string(trimmed)
		return nil
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerList:
		if a.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.List)
	case AnswerKeyed:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, kv := range a.Keyed {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(kv.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			var value []byte
			if kv.Categorized {
				value, err = json.Marshal(kv.Values)
			} else {
				value, err = json.Marshal(kv.Value())
			}
			if err != nil {
				return nil, err
			}
			buf.Write(value)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case AnswerStructured:
		return a.Raw, nil
	default:
		return []byte("null"), nil
	}
}

// AsString returns a text answer. An empty answer yields "".
func (a Answer) AsString() (string, error) {
	switch a.Kind {
	case AnswerEmpty:
		return "", nil
	case AnswerText:
		return a.Text, nil
	}
	return "", shapeError("text", a.Kind)
}

// AsList returns a list answer. An empty answer yields nil.
func (a Answer) AsList() ([]string, error) {
	switch a.Kind {
	case AnswerEmpty:
		return nil, nil
	case AnswerList:
		return a.List, nil
	}
	return nil, shapeError("list", a.Kind)
}

// AsKeyed returns a keyed answer in its original key order. A text answer
// holding a JSON-encoded object is decoded.
func (a Answer) AsKeyed() ([]KeyedValue, error) {
	switch a.Kind {
	case AnswerEmpty:
		return nil, nil
	case AnswerKeyed:
		return a.Keyed, nil
	case AnswerText:
		text := strings.TrimSpace(a.Text)
		if strings.HasPrefix(text, "{") {
			keyed, ok, err := decodeKeyed([]byte(text))
			if err != nil {
				return nil, fmt.Errorf("%w: malformed encoded map: %v", apperrors.ErrInvalidAnswerShape, err)
			}
			if ok {
				return keyed, nil
			}
		}
	}
	return nil, shapeError("keyed map", a.Kind)
}

// Values flattens a keyed answer to one value per key, in key order.
func Values(keyed []KeyedValue) []string {
	out := make([]string, 0, len(keyed))
	for _, kv := range keyed {
		out = append(out, kv.Value())
	}
	return out
}

func shapeError(want string, got AnswerKind) error {
	return fmt.Errorf("%w: expected %s, got %s", apperrors.ErrInvalidAnswerShape, want, got)
}

func decodeStringList(data []byte) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := decodeScalar(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func decodeScalar(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return "", true
	}
	return string(trimmed), true
}

// decodeKeyed decodes a JSON object preserving key order. ok is false when a
// value is neither a scalar nor a list of scalars.
func decodeKeyed(data []byte) ([]KeyedValue, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	if delim, isDelim := tok.(json.Delim); !isDelim || delim != '{' {
		return nil, false, fmt.Errorf("expected object")
	}

	var out []KeyedValue
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false, err
		}

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			list, ok := decodeStringList(trimmed)
			if !ok {
				return nil, false, nil
			}
			out = append(out, KeyedValue{Key: key, Values: list, Categorized: true})
			continue
		}
		s, ok := decodeScalar(trimmed)
		if !ok {
			return nil, false, nil
		}
		out = append(out, KeyedValue{Key: key, Values: []string{s}})
	}
	return out, true, nil
}
