package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration      = "REVEAL_CONFIGURATION_ERROR"
	ErrorUpstreamAuthFailed = "REVEAL_UPSTREAM_AUTH_FAILED"
	ErrorUpstreamInitFailed = "REVEAL_UPSTREAM_INIT_FAILED"
	ErrorServer             = "REVEAL_SERVER_ERROR"
	ErrorClientInitFailed   = "REVEAL_CLIENT_INIT_FAILED"
	ErrorBadInput           = "REVEAL_BAD_INPUT"
	ErrorRateLimited        = "REVEAL_RATE_LIMITED"
	ErrorNotFound           = "REVEAL_NOT_FOUND"
)

const (
	MessageConfiguration      = "Configuration error"
	MessageUpstreamAuthFailed = "Failed to fetch access token"
	MessageUpstreamInitFailed = "Init request failed"
	MessageServer             = "Server error"
	MessageRateLimited        = "Too many requests"
	MessageNotFound           = "Not found"
)

const (
	MetadataDetails        = "details"
	MetadataUpstreamStatus = "upstream_status"
)

// ErrorResponse is the JSON shape of every failed gateway response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewConfigurationError(missing ...string) *goerrors.Error {
	details := "missing required configuration"
	if len(missing) > 0 {
		details = "missing required env var: " + strings.Join(missing, ", ")
	}
	return goerrors.New(MessageConfiguration, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration).
		WithMetadata(map[string]any{
			MetadataDetails: details,
			"missing":       append([]string(nil), missing...),
		})
}

func NewUpstreamAuthError(status int, body string) *goerrors.Error {
	return upstreamError(MessageUpstreamAuthFailed, ErrorUpstreamAuthFailed, status, body)
}

func NewUpstreamInitError(status int, body string) *goerrors.Error {
	return upstreamError(MessageUpstreamInitFailed, ErrorUpstreamInitFailed, status, body)
}

func upstreamError(message string, textCode string, status int, body string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			MetadataDetails:        body,
			MetadataUpstreamStatus: status,
		})
}

// NewServerError wraps any unexpected failure. The message of the
// underlying cause becomes the response details.
func NewServerError(source error, message string) *goerrors.Error {
	details := strings.TrimSpace(message)
	if source != nil {
		details = causeMessage(source)
	}
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryInternal, MessageServer)
	} else {
		err = goerrors.New(MessageServer, goerrors.CategoryInternal)
	}
	return err.
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorServer).
		WithMetadata(map[string]any{MetadataDetails: details})
}

// causeMessage returns the plain message of the innermost go-errors
// envelope in the chain, or of the error it wraps. Errors without an
// envelope keep their own text.
func causeMessage(err error) string {
	var innermost *goerrors.Error
	for current := err; current != nil; current = goerrors.Unwrap(current) {
		if envelope, ok := current.(*goerrors.Error); ok {
			innermost = envelope
		}
	}
	if innermost == nil {
		return err.Error()
	}
	if innermost.Source != nil {
		return innermost.Source.Error()
	}
	return innermost.Message
}

// NewClientInitError reports a failed display session attempt. message is
// the text shown to the end user.
func NewClientInitError(source error, message string, metadata map[string]any) *goerrors.Error {
	message = strings.TrimSpace(message)
	if message == "" && source != nil {
		message = causeMessage(source)
	}
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryOperation, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryOperation)
	}
	err = err.WithTextCode(ErrorClientInitFailed)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

// NewFieldValidationError rejects a bus message whose field failed
// validation. scope prefixes the message, e.g. "command" or "query".
func NewFieldValidationError(scope string, field string, message string) *goerrors.Error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{Field: field, Message: message}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewNotFoundError(resource string, id string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s %q not found", resource, id), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorNotFound)
}

func NewRateLimitedError(retryAfterMS int64) *goerrors.Error {
	return goerrors.New(MessageRateLimited, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRateLimited).
		WithMetadata(map[string]any{"retry_after_ms": retryAfterMS})
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// ErrorDetails returns the diagnostic details attached to err, if any.
func ErrorDetails(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	if value, ok := rich.Metadata[MetadataDetails]; ok && value != nil {
		if text, ok := value.(string); ok {
			return text
		}
		return fmt.Sprint(value)
	}
	return ""
}

// UpstreamStatus returns the upstream HTTP status attached to err, or 0.
func UpstreamStatus(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return 0
	}
	if status, ok := rich.Metadata[MetadataUpstreamStatus].(int); ok {
		return status
	}
	return 0
}

// ToErrorResponse maps err to the HTTP status and wire body returned to
// callers. Unknown errors are reported as a server error with the error
// text as details.
func ToErrorResponse(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusOK, ErrorResponse{}
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError, ErrorResponse{Error: MessageServer, Details: err.Error()}
	}
	switch rich.TextCode {
	case ErrorUpstreamAuthFailed:
		return http.StatusBadGateway, ErrorResponse{Error: MessageUpstreamAuthFailed, Details: ErrorDetails(rich)}
	case ErrorUpstreamInitFailed:
		return http.StatusBadGateway, ErrorResponse{Error: MessageUpstreamInitFailed, Details: ErrorDetails(rich)}
	case ErrorConfiguration:
		return http.StatusInternalServerError, ErrorResponse{Error: MessageConfiguration, Details: ErrorDetails(rich)}
	case ErrorRateLimited:
		return http.StatusTooManyRequests, ErrorResponse{Error: MessageRateLimited}
	case ErrorNotFound:
		return http.StatusNotFound, ErrorResponse{Error: MessageNotFound, Details: rich.Message}
	case ErrorBadInput:
		return http.StatusBadRequest, ErrorResponse{Error: rich.Message}
	case ErrorServer:
		return http.StatusInternalServerError, ErrorResponse{Error: MessageServer, Details: ErrorDetails(rich)}
	}
	status := httpStatusForCategory(rich.Category)
	if status == http.StatusBadRequest {
		return status, ErrorResponse{Error: rich.Message}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: MessageServer, Details: rich.Message}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
