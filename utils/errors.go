package utils

import (
	"errors"

	"github.com/song-xingzhou/MVEN-Parking/services"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

func CreateError(statusCode int, title string, detail string, ctx iris.Context) {
	ctx.StopWithProblem(statusCode, iris.NewProblem().Title(title).Detail(detail))
}

func CreateInternalServerError(ctx iris.Context) {
	CreateError(
		iris.StatusInternalServerError,
		"Internal Server Error",
		"an internal server error occurred",
		ctx)
}

func CreateNotFound(ctx iris.Context) {
	CreateError(
		iris.StatusNotFound,
		"Not Found",
		"resource not found",
		ctx)
}

func HandleValidationErrors(err error, ctx iris.Context) {
	if errs, ok := err.(validator.ValidationErrors); ok {
		validationErrors := wrapValidationErrors(errs)
		ctx.StopWithProblem(iris.StatusBadRequest, iris.NewProblem().
			Title("Validation error").
			Detail("One or more fields failed to be validated").
			Key("errors", validationErrors))
		return
	}
	CreateError(iris.StatusBadRequest, "Bad Request", err.Error(), ctx)
}

type validationError struct {
	ActualTag string `json:"tag"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Param     string `json:"param"`
}

func wrapValidationErrors(errs validator.ValidationErrors) []validationError {
	validationErrors := make([]validationError, 0, len(errs))
	for _, validationErr := range errs {
		validationErrors = append(validationErrors, validationError{
			ActualTag: validationErr.ActualTag(),
			Namespace: validationErr.Namespace(),
			Kind:      validationErr.Kind().String(),
			Type:      validationErr.Type().String(),
			Value:     validationErr.Param(),
			Param:     validationErr.Param(),
		})
	}
	return validationErrors
}

// HandleServiceError maps engine error kinds onto HTTP statuses.
func HandleServiceError(err error, ctx iris.Context) {
	var (
		ve *services.ValidationError
		ce *services.ConflictError
		se *services.StateError
		pe *services.PermissionError
	)
	switch {
	case errors.As(err, &ve):
		CreateError(iris.StatusBadRequest, "Validation error", ve.Error(), ctx)
	case errors.As(err, &ce):
		CreateError(iris.StatusConflict, "Reservation conflict", ce.Error(), ctx)
	case errors.As(err, &se):
		CreateError(iris.StatusConflict, "Invalid state", se.Error(), ctx)
	case errors.As(err, &pe):
		CreateError(iris.StatusForbidden, "Forbidden", pe.Error(), ctx)
	case errors.Is(err, services.ErrNotFound):
		CreateNotFound(ctx)
	default:
		CreateInternalServerError(ctx)
	}
}
