package domain

import "github.com/go-playground/validator/v10"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(answerInRange, QuestionDraft{})
	// scorestep accepts scores a play can actually award.
	_ = v.RegisterValidation("scorestep", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%PointsPerCorrectAnswer == 0
	})
	return v
}

func answerInRange(sl validator.StructLevel) {
	d := sl.Current().Interface().(QuestionDraft)
	if d.CorrectAnswerIndex >= len(d.Options) {
		sl.ReportError(d.CorrectAnswerIndex, "CorrectAnswerIndex", "correctAnswerIndex", "answerinrange", "")
	}
}

// ValidateStruct runs the `validate` tags of v. Failures come back as
// validator.ValidationErrors.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
