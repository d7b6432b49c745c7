// Package httpapi holds the JSON plumbing shared by the HTTP handlers: body
// decoding, response encoding, input validation and error rendering.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"libraryloans/internal/apperr"
)

const (
	MsgInternal        = "Erro interno no servidor. Por favor, comunique o administrador do sistema."
	MsgInvalidFields   = "Um ou mais campos estão inválidos. Faça o preenchimento correto e tente novamente"
	MsgInvalidBody     = "O corpo da requisição é inválido."
	MsgTooManyRequests = "Muitas requisições. Tente novamente em instantes."
	msgInvalidParam    = "O parâmetro '%s' recebeu '%s', valor inválido. Corrija para o parâmetro correto (%s)."
	msgUnknownResource = "O recurso %s não foi encontrado."
)

// ErrorField is one rejected input field.
type ErrorField struct {
	Name        string `json:"name"`
	UserMessage string `json:"userMessage"`
}

// APIError is the body of every error response.
type APIError struct {
	StatusCode int          `json:"status_code"`
	Message    string       `json:"message"`
	Errors     []ErrorField `json:"errors,omitempty"`
}

// ParamError reports a path or query parameter that could not be parsed.
type ParamError struct {
	Name     string
	Value    string
	Expected string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf(msgInvalidParam, e.Name, e.Value, e.Expected)
}

// BodyError reports a request body that is not the expected JSON document.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("decode request body: %v", e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// Errors renders err as an APIError and logs failures that are not the client's fault.
type Errors struct {
	logger *zap.Logger
}

func NewErrors(logger *zap.Logger) *Errors {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Errors{logger: logger}
}

// Write picks the status for err and writes the error body.
func (e *Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	body := e.Render(err)
	if body.StatusCode >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	WriteJSON(w, body.StatusCode, body)
}

// Render maps err to its response body without writing it.
func (e *Errors) Render(err error) APIError {
	var paramErr *ParamError
	if errors.As(err, &paramErr) {
		return APIError{StatusCode: http.StatusBadRequest, Message: paramErr.Error()}
	}
	var bodyErr *BodyError
	if errors.As(err, &bodyErr) {
		return APIError{StatusCode: http.StatusBadRequest, Message: MsgInvalidBody}
	}

	appErr, ok := apperr.As(err)
	if !ok {
		return APIError{StatusCode: http.StatusInternalServerError, Message: MsgInternal}
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		return validationError(appErr)
	case apperr.KindDuplicate, apperr.KindConflict, apperr.KindInvalidArgument:
		return APIError{StatusCode: http.StatusBadRequest, Message: appErr.Message}
	case apperr.KindNotFound:
		return APIError{StatusCode: http.StatusNotFound, Message: appErr.Message}
	default:
		return APIError{StatusCode: http.StatusInternalServerError, Message: MsgInternal}
	}
}

func validationError(appErr *apperr.Error) APIError {
	fields := make([]ErrorField, 0, len(appErr.Fields))
	messages := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		fields = append(fields, ErrorField{Name: f.Name, UserMessage: f.Message})
		if msg := strings.TrimSpace(f.Message); msg != "" {
			messages = append(messages, msg)
		}
	}

	message := strings.Join(messages, ", ")
	if message == "" {
		message = MsgInvalidFields
	}
	return APIError{StatusCode: http.StatusBadRequest, Message: message, Errors: fields}
}

// NotFound answers requests for routes that do not exist.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, APIError{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf(msgUnknownResource, r.URL.Path),
	})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, APIError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    http.StatusText(http.StatusMethodNotAllowed),
	})
}

func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusTooManyRequests, APIError{
		StatusCode: http.StatusTooManyRequests,
		Message:    MsgTooManyRequests,
	})
}
