package response

import (
	"errors"

	"authserver/internal/apperror"
)

// Response represents a standard API response format
type Response struct {
	Status     string              `json:"status"`      // "success" or "error"
	StatusCode int                 `json:"status_code"` // HTTP status code
	Data       interface{}         `json:"data,omitempty"`
	Error      string              `json:"error,omitempty"`
	Fields     map[string][]string `json:"fields,omitempty"` // per-field validation messages
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError maps a domain error to its HTTP status and envelope. Validation
// errors carry their field messages; everything else carries the message only.
func FromError(err error) (int, Response) {
	status := apperror.HTTPStatus(err)
	resp := Error(status, err.Error())

	var ve *apperror.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	return status, resp
}
