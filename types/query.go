package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = validator.New()

type AskParams struct {
	Question  string `json:"question" validate:"required,max=4000"`
	SubjectID *int64 `json:"subject_id" validate:"omitempty,gt=0"`
	TopK      int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AskParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	if err := validate.Struct(v); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"_": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type AnswerResponse struct {
	AnswerResult
	Timestamp time.Time `json:"timestamp"`
}

type IngestResponse struct {
	MaterialID int64 `json:"material_id"`
	IngestResult
}
