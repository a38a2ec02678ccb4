package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the marking-specific rules.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures to ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Var validates a single value against a tag, including the custom ones.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.structValidator.Var(field, tag)
}

// ValidateMarkingContext checks the fields every marking path relies on.
// Type support is not checked here: an unknown type is reported by the
// scorer so that it fails only its own question.
func (v *Validator) ValidateMarkingContext(q *models.QuestionMarkingContext) error {
	if q == nil {
		return fmt.Errorf("marking context cannot be nil")
	}
	return v.Validate(q)
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("session_kind", validateSessionKind)
	validate.RegisterValidation("question_type", validateQuestionType)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateSessionKind(fl validator.FieldLevel) bool {
	validKinds := []models.SessionKind{
		models.SessionPractice,
		models.SessionMock,
		models.SessionPaper,
	}

	value := fl.Field().String()
	for _, kind := range validKinds {
		if string(kind) == value {
			return true
		}
	}
	return false
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsKnown()
}
