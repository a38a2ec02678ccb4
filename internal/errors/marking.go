package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedQuestionType = errors.New("unsupported question type")
	ErrInvalidAnswerShape      = errors.New("invalid answer shape")
	ErrChannelUnavailable      = errors.New("marking channel unavailable")
	ErrQuestionTimeout         = errors.New("marking timed out for question")
	ErrGroupTimeout            = errors.New("marking timed out for batch")
	ErrPersistenceFailure      = errors.New("failed to save marking result")
	ErrRemoteMarking           = errors.New("remote marking failed")
	ErrCoordinatorClosed       = errors.New("marking coordinator closed")
)

type MarkingErrorKind string

const (
	KindUnsupportedType MarkingErrorKind = "unsupported_question_type"
	KindInvalidInput    MarkingErrorKind = "invalid_input"
	KindChannel         MarkingErrorKind = "channel_unavailable"
	KindQuestionTimeout MarkingErrorKind = "question_timeout"
	KindGroupTimeout    MarkingErrorKind = "group_timeout"
	KindPersistence     MarkingErrorKind = "persistence_failure"
	KindRemote          MarkingErrorKind = "remote_error"
)

// MarkingError ties a marking failure to the question it affected.
type MarkingError struct {
	Kind       MarkingErrorKind `json:"kind"`
	QuestionID string           `json:"question_id,omitempty"`
	Err        error            `json:"-"`
}

func (e *MarkingError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("marking %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("marking %s for question %s: %v", e.Kind, e.QuestionID, e.Err)
}

func (e *MarkingError) Unwrap() error {
	return e.Err
}

func NewMarkingError(kind MarkingErrorKind, questionID string, err error) *MarkingError {
	return &MarkingError{
		Kind:       kind,
		QuestionID: questionID,
		Err:        err,
	}
}

// KindOf classifies an error into the marking taxonomy.
func KindOf(err error) MarkingErrorKind {
	var me *MarkingError
	if errors.As(err, &me) {
		return me.Kind
	}
	switch {
	case errors.Is(err, ErrUnsupportedQuestionType):
		return KindUnsupportedType
	case errors.Is(err, ErrInvalidAnswerShape):
		return KindInvalidInput
	case errors.Is(err, ErrChannelUnavailable):
		return KindChannel
	case errors.Is(err, ErrQuestionTimeout):
		return KindQuestionTimeout
	case errors.Is(err, ErrGroupTimeout):
		return KindGroupTimeout
	case errors.Is(err, ErrPersistenceFailure):
		return KindPersistence
	default:
		return KindRemote
	}
}

func IsChannelUnavailable(err error) bool {
	return errors.Is(err, ErrChannelUnavailable)
}
