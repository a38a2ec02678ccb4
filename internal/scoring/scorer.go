package scoring

import (
	"fmt"
	"time"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/models"
)

// Outcome is what a strategy produces for one question.
type Outcome struct {
	UserMark     *float64
	Pairs        []models.AnswerPair
	MarkingTable string
	IsMarked     bool
}

// Strategy scores a single closed-form question type. Strategies are pure.
type Strategy interface {
	Score(q *models.QuestionMarkingContext) (Outcome, error)
}

type StrategyFunc func(q *models.QuestionMarkingContext) (Outcome, error)

func (f StrategyFunc) Score(q *models.QuestionMarkingContext) (Outcome, error) {
	return f(q)
}

// Scorer routes a question to the strategy registered for its type.
type Scorer struct {
	strategies map[models.QuestionType]Strategy
	now        func() time.Time
}

// NewScorer installs the built-in strategies.
func NewScorer() *Scorer {
	return &Scorer{
		strategies: map[models.QuestionType]Strategy{
			models.MCQ:                 StrategyFunc(scoreMCQ),
			models.TrueFalse:           StrategyFunc(scoreTrueFalse),
			models.MCQMultiple:         StrategyFunc(scoreMCQMultiple),
			models.FillInTheGapsText:   StrategyFunc(scoreFillInTheGapsText),
			models.MatchPair:           StrategyFunc(scoreMatchPair),
			models.Spot:                StrategyFunc(scoreSpot),
			models.FixSentence:         StrategyFunc(scoreFixSentence),
			models.Number:              StrategyFunc(scoreNumber),
			models.Reorder:             StrategyFunc(scoreReorder),
			models.Group:               StrategyFunc(scoreGroup),
			models.Drawing:             StrategyFunc(unscored),
			models.FillInTheGapsNumber: StrategyFunc(unscored),
			models.Rearrange:           StrategyFunc(unscored),
		},
		now: time.Now,
	}
}

// WithClock sets the source of MarkedAt. Mark is deterministic for a fixed
// clock; the default is time.Now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	if now != nil {
		s.now = now
	}
	return s
}

// Supports reports whether a deterministic rule is registered for t.
func (s *Scorer) Supports(t models.QuestionType) bool {
	_, ok := s.strategies[t]
	return ok
}

// Score runs the strategy for q's type.
func (s *Scorer) Score(q *models.QuestionMarkingContext) (Outcome, error) {
	strategy, ok := s.strategies[q.QuestionType]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedQuestionType, q.QuestionType)
	}
	out, err := strategy.Score(q)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to score %s question %s: %w", q.QuestionType, q.QuestionID, err)
	}
	return out, nil
}

// Mark scores q and builds its MarkingResult. MarkedAt comes from the
// scorer's clock, so repeated calls only agree under a fixed clock.
func (s *Scorer) Mark(q *models.QuestionMarkingContext) (*models.MarkingResult, error) {
	out, err := s.Score(q)
	if err != nil {
		return nil, err
	}

	result := &models.MarkingResult{
		QuestionID:      q.QuestionID,
		QuestionType:    q.QuestionType,
		UserAnswer:      q.UserAnswer,
		AnnotatedAnswer: models.AnnotatedAnswer{Pairs: out.Pairs},
		MarkingTable:    out.MarkingTable,
		MarkMax:         q.MarkMax,
		UserMark:        out.UserMark,
		IsMarked:        out.IsMarked,
	}
	if out.IsMarked {
		at := s.now()
		result.MarkedAt = &at
	}
	return result, nil
}

func clamp(mark, markMax int) int {
	if mark < 0 {
		return 0
	}
	if markMax < 0 {
		markMax = 0
	}
	if mark > markMax {
		return markMax
	}
	return mark
}

func marked(pairs []models.AnswerPair, mark, markMax int) Outcome {
	if pairs == nil {
		pairs = []models.AnswerPair{}
	}
	return Outcome{
		UserMark:     models.MarkPtr(float64(clamp(mark, markMax))),
		Pairs:        pairs,
		MarkingTable: RenderTable(pairs),
		IsMarked:     true,
	}
}

func allOrNothing(correct bool, markMax int) int {
	if correct {
		return markMax
	}
	return 0
}

// unscored covers types with no deterministic rule; the result stays unmarked.
func unscored(_ *models.QuestionMarkingContext) (Outcome, error) {
	return Outcome{IsMarked: false}, nil
}
