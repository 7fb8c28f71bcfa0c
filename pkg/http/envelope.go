package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response. The transport status is
// always 200; Status carries the outcome.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page is the data of a list response.
type Page struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// RequestError is returned by Bind and by handlers rejecting a request.
type RequestError struct {
	Fields []FieldError
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return "bad request"
	}
	return e.Fields[0].Message
}

// Invalid rejects a single field.
func Invalid(field, message string) *RequestError {
	return &RequestError{Fields: []FieldError{{Code: "ERR_BAD_REQUEST", Field: field, Message: message}}}
}

func write(c echo.Context, status int, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// OK writes a successful envelope around data.
func OK(c echo.Context, data interface{}) error {
	return write(c, http.StatusOK, data)
}

// List writes a successful envelope around a page of rows.
func List(c echo.Context, rows interface{}, total int64) error {
	return write(c, http.StatusOK, &Page{Rows: rows, Total: total})
}

// Fail writes err as a 400 envelope when it is a *RequestError and as an
// opaque 500 envelope otherwise.
func Fail(c echo.Context, err error) error {
	var re *RequestError
	if errors.As(err, &re) {
		return write(c, http.StatusBadRequest, re.Fields)
	}
	return write(c, http.StatusInternalServerError, "Something went wrong")
}
