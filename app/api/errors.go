package api

import (
	"errors"
	"fmt"

	"coursebot/types"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiError Error
	if errors.As(err, &apiError) {
		return c.Status(apiError.Code).JSON(apiError)
	}
	var valError ValidationError
	if errors.As(err, &valError) {
		return c.Status(valError.Status).JSON(valError)
	}

	apiError = fromError(err)
	log.Error().
		Err(err).
		Int("code", apiError.Code).
		Str("path", c.Path()).
		Msg("request failed")
	return c.Status(apiError.Code).JSON(apiError)
}

// fromError maps pipeline failures onto HTTP status codes.
func fromError(err error) Error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return NewError(fiberErr.Code, fiberErr.Message)
	case errors.Is(err, types.ErrMaterialNotFound):
		return NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrExtraction):
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, types.ErrEmbeddingService), errors.Is(err, types.ErrDimensionMismatch):
		return NewError(fiber.StatusBadGateway, err.Error())
	default:
		return NewError(fiber.StatusInternalServerError, err.Error())
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}
