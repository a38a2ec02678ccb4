package scoring

import (
	"fmt"
	"strings"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/models"
)

func scoreMCQ(q *models.QuestionMarkingContext) (Outcome, error) {
	return scoreSingle(q, false)
}

func scoreTrueFalse(q *models.QuestionMarkingContext) (Outcome, error) {
	return scoreSingle(q, true)
}

func scoreSingle(q *models.QuestionMarkingContext, caseInsensitive bool) (Outcome, error) {
	user, err := q.UserAnswer.AsString()
	if err != nil {
		return Outcome{}, err
	}
	correct, err := q.CorrectAnswer.AsString()
	if err != nil {
		return Outcome{}, err
	}

	ok := user != "" && CompareAnswers(user, correct, caseInsensitive)
	pairs := []models.AnswerPair{{CorrectAnswer: correct, UserAnswer: user, IsCorrect: ok}}
	return marked(pairs, allOrNothing(ok, q.MarkMax), q.MarkMax), nil
}

// scoreMCQMultiple counts submissions hitting a distinct correct value and
// subtracts one per submission outside the correct set. Repeating an already
// counted value scores nothing either way.
func scoreMCQMultiple(q *models.QuestionMarkingContext) (Outcome, error) {
	correct, err := stringsOf(q.CorrectAnswer)
	if err != nil {
		return Outcome{}, err
	}
	user, err := stringsOf(q.UserAnswer)
	if err != nil {
		return Outcome{}, err
	}

	correctSet := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		correctSet[c] = struct{}{}
	}

	counted := make(map[string]struct{}, len(user))
	pairs := make([]models.AnswerPair, 0, len(user))
	matched, wrong := 0, 0
	for _, u := range user {
		if _, ok := correctSet[u]; !ok {
			wrong++
			pairs = append(pairs, models.AnswerPair{UserAnswer: u})
			continue
		}
		if _, dup := counted[u]; dup {
			continue
		}
		counted[u] = struct{}{}
		matched++
		pairs = append(pairs, models.AnswerPair{CorrectAnswer: u, UserAnswer: u, IsCorrect: true})
	}

	for _, c := range distinct(correct) {
		if _, ok := counted[c]; !ok {
			pairs = append(pairs, models.AnswerPair{CorrectAnswer: c})
		}
	}

	return marked(pairs, matched-wrong, q.MarkMax), nil
}

func scoreFillInTheGapsText(q *models.QuestionMarkingContext) (Outcome, error) {
	correct, err := stringsOf(q.CorrectAnswer)
	if err != nil {
		return Outcome{}, err
	}
	user, err := stringsOf(q.UserAnswer)
	if err != nil {
		return Outcome{}, err
	}

	pairs := make([]models.AnswerPair, 0, len(correct))
	mark := 0
	for i, c := range correct {
		u := at(user, i)
		ok := u != "" && CompareAnswers(u, c, false)
		if ok {
			mark++
		}
		pairs = append(pairs, models.AnswerPair{CorrectAnswer: c, UserAnswer: u, IsCorrect: ok})
	}
	return marked(pairs, mark, q.MarkMax), nil
}

// scoreMatchPair trusts the submitted pairing; any submitted pair earns full marks.
func scoreMatchPair(q *models.QuestionMarkingContext) (Outcome, error) {
	var pairs []models.AnswerPair
	switch q.UserAnswer.Kind {
	case models.AnswerEmpty:
	case models.AnswerList:
		for _, u := range q.UserAnswer.List {
			pairs = append(pairs, models.AnswerPair{CorrectAnswer: u, UserAnswer: u, IsCorrect: true})
		}
	default:
		keyed, err := q.UserAnswer.AsKeyed()
		if err != nil {
			return Outcome{}, err
		}
		for _, kv := range keyed {
			row := kv.Key + " - " + kv.Value()
			pairs = append(pairs, models.AnswerPair{CorrectAnswer: row, UserAnswer: row, IsCorrect: true})
		}
	}
	return marked(pairs, allOrNothing(len(pairs) > 0, q.MarkMax), q.MarkMax), nil
}

// scoreSpot matches each submission against the canonical patterns. Only the
// first submission per distinct answer counts, and every submission beyond
// markMax costs one mark.
func scoreSpot(q *models.QuestionMarkingContext) (Outcome, error) {
	patterns, err := spotPatterns(q.CorrectAnswer)
	if err != nil {
		return Outcome{}, err
	}
	user, err := stringsOf(q.UserAnswer)
	if err != nil {
		return Outcome{}, err
	}

	counted := make(map[string]struct{}, len(user))
	found := make(map[string]struct{}, len(patterns))
	pairs := make([]models.AnswerPair, 0, len(user)+len(patterns))
	unique := 0
	for _, u := range user {
		pattern, ok := matchPattern(u, patterns)
		if !ok {
			pairs = append(pairs, models.AnswerPair{UserAnswer: u})
			continue
		}
		key := MatchKey(pattern)
		found[key] = struct{}{}
		if _, dup := counted[key]; dup {
			pairs = append(pairs, models.AnswerPair{CorrectAnswer: pattern, UserAnswer: u})
			continue
		}
		counted[key] = struct{}{}
		unique++
		pairs = append(pairs, models.AnswerPair{CorrectAnswer: pattern, UserAnswer: u, IsCorrect: true})
	}

	missed := make(map[string]struct{})
	for _, p := range patterns {
		key := MatchKey(p)
		if _, ok := found[key]; ok {
			continue
		}
		if _, ok := missed[key]; ok {
			continue
		}
		missed[key] = struct{}{}
		pairs = append(pairs, models.AnswerPair{CorrectAnswer: p, UserAnswer: "missed"})
	}

	surplus := len(user) - q.MarkMax
	if surplus < 0 {
		surplus = 0
	}
	return marked(pairs, unique-surplus, q.MarkMax), nil
}

func spotPatterns(a models.Answer) ([]string, error) {
	if a.Kind == models.AnswerList || a.Kind == models.AnswerEmpty {
		return a.List, nil
	}
	keyed, err := a.AsKeyed()
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(keyed))
	for _, kv := range keyed {
		if kv.Categorized {
			patterns = append(patterns, FormatCategorySet(kv.Values...))
			continue
		}
		patterns = append(patterns, kv.Value())
	}
	return patterns, nil
}

func matchPattern(user string, patterns []string) (string, bool) {
	if strings.TrimSpace(user) == "" {
		return "", false
	}
	for _, p := range patterns {
		if Matches(user, p) {
			return p, true
		}
	}
	return "", false
}

func scoreFixSentence(q *models.QuestionMarkingContext) (Outcome, error) {
	user, err := q.UserAnswer.AsString()
	if err != nil {
		return Outcome{}, err
	}
	correct, err := q.CorrectAnswer.AsString()
	if err != nil {
		return Outcome{}, err
	}

	ok := user != "" && NormalizeText(user) == NormalizeText(correct)
	pairs := []models.AnswerPair{{CorrectAnswer: correct, UserAnswer: user, IsCorrect: ok}}
	return marked(pairs, allOrNothing(ok, q.MarkMax), q.MarkMax), nil
}

// scoreNumber joins per-digit entries before comparing.
func scoreNumber(q *models.QuestionMarkingContext) (Outcome, error) {
	user, err := joined(q.UserAnswer)
	if err != nil {
		return Outcome{}, err
	}
	correct, err := joined(q.CorrectAnswer)
	if err != nil {
		return Outcome{}, err
	}

	ok := user != "" && user == correct
	pairs := []models.AnswerPair{{CorrectAnswer: correct, UserAnswer: user, IsCorrect: ok}}
	return marked(pairs, allOrNothing(ok, q.MarkMax), q.MarkMax), nil
}

func scoreReorder(q *models.QuestionMarkingContext) (Outcome, error) {
	correct, err := stringsOf(q.CorrectAnswer)
	if err != nil {
		return Outcome{}, err
	}
	user, err := stringsOf(q.UserAnswer)
	if err != nil {
		return Outcome{}, err
	}

	pairs := make([]models.AnswerPair, 0, len(correct))
	mark := 0
	for i, c := range correct {
		u := at(user, i)
		ok := i < len(user) && u == c
		if ok {
			mark++
		}
		pairs = append(pairs, models.AnswerPair{CorrectAnswer: c, UserAnswer: u, IsCorrect: ok})
	}
	return marked(pairs, mark, q.MarkMax), nil
}

// scoreGroup awards one mark per item placed in the bucket of the same name
// in the correct answer. Unknown buckets score nothing.
func scoreGroup(q *models.QuestionMarkingContext) (Outcome, error) {
	correct, err := q.CorrectAnswer.AsKeyed()
	if err != nil {
		return Outcome{}, err
	}
	user, err := q.UserAnswer.AsKeyed()
	if err != nil {
		return Outcome{}, err
	}

	buckets := make(map[string]map[string]struct{}, len(correct))
	home := make(map[string]string)
	for _, kv := range correct {
		items := make(map[string]struct{}, len(kv.Values))
		for _, item := range kv.Values {
			items[item] = struct{}{}
			if _, seen := home[item]; !seen {
				home[item] = kv.Key
			}
		}
		buckets[kv.Key] = items
	}

	var pairs []models.AnswerPair
	mark := 0
	for _, kv := range user {
		placed := make(map[string]struct{}, len(kv.Values))
		for _, item := range kv.Values {
			if _, dup := placed[item]; dup {
				continue
			}
			placed[item] = struct{}{}

			_, ok := buckets[kv.Key][item]
			if ok {
				mark++
			}
			expected := ""
			if bucket, known := home[item]; known {
				expected = placement(item, bucket)
			}
			pairs = append(pairs, models.AnswerPair{
				CorrectAnswer: expected,
				UserAnswer:    placement(item, kv.Key),
				IsCorrect:     ok,
			})
		}
	}
	return marked(pairs, mark, q.MarkMax), nil
}

func placement(item, bucket string) string {
	return fmt.Sprintf("%s -> %s", item, bucket)
}

// stringsOf reads a list-like answer: a list, or the values of a keyed map
// (including a JSON-encoded one). A plain text answer is a one-element list.
func stringsOf(a models.Answer) ([]string, error) {
	switch a.Kind {
	case models.AnswerEmpty:
		return nil, nil
	case models.AnswerList:
		return a.List, nil
	case models.AnswerKeyed:
		return models.Values(a.Keyed), nil
	case models.AnswerText:
		if strings.HasPrefix(strings.TrimSpace(a.Text), "{") {
			keyed, err := a.AsKeyed()
			if err != nil {
				return nil, err
			}
			return models.Values(keyed), nil
		}
		return []string{a.Text}, nil
	}
	return nil, fmt.Errorf("%w: expected list or keyed map, got %s", apperrors.ErrInvalidAnswerShape, a.Kind)
}

func joined(a models.Answer) (string, error) {
	if a.Kind == models.AnswerText {
		return strings.TrimSpace(a.Text), nil
	}
	parts, err := stringsOf(a)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(strings.TrimSpace(p))
	}
	return sb.String(), nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
