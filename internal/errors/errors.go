package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidSubmissionID is returned when a submission id is not UUID shaped.
	ErrInvalidSubmissionID = errors.New("invalid submission id format")
	// ErrSubmissionNotFound is returned when no submission matches, or the delete procedure reports nothing removed.
	ErrSubmissionNotFound = errors.New("submission not found, it may have been deleted")
	// ErrAlreadySubmitted is returned when a month was already submitted; the client should reload.
	ErrAlreadySubmitted = errors.New("dues for this month were already submitted, reload to see them")
	// ErrSubmissionLocked is returned when a member edits a month that is no longer open.
	ErrSubmissionLocked = errors.New("submission for this month is locked")
	// ErrUnknownColumn is returned when an update names a column the store does not know.
	ErrUnknownColumn = errors.New("update contains an unknown field")

	// ErrUserNotFound is returned when a user does not exist or cannot be changed.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when an active user already owns the username.
	ErrUsernameTaken = errors.New("username already used by another user")
	// ErrInvalidUsername is returned when the username contains unsupported characters.
	ErrInvalidUsername = errors.New("username may only contain letters, digits and underscores")
	// ErrProcedureMissing is returned when a remote procedure is not installed in the database.
	ErrProcedureMissing = errors.New("database procedure is missing, contact the administrator")

	// ErrInvalidCredentials is returned when username or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUnauthenticated is returned when no session is present.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the session role may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidSnapshot is returned when a restore payload cannot be applied.
	ErrInvalidSnapshot = errors.New("invalid backup snapshot")
)

// ValidationError reports a rejected input field before any database call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Forbidden wraps ErrForbidden with the reason the policy refused.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return NewHTTPError(http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR")
	}

	switch {
	case errors.Is(err, ErrInvalidSubmissionID):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidSubmissionID.Error(), "INVALID_UUID")
	case errors.Is(err, ErrSubmissionNotFound):
		return NewHTTPError(http.StatusNotFound, ErrSubmissionNotFound.Error(), "SUBMISSION_NOT_FOUND")
	case errors.Is(err, ErrAlreadySubmitted):
		return NewHTTPError(http.StatusConflict, ErrAlreadySubmitted.Error(), "ALREADY_SUBMITTED")
	case errors.Is(err, ErrSubmissionLocked):
		return NewHTTPError(http.StatusConflict, ErrSubmissionLocked.Error(), "SUBMISSION_LOCKED")
	case errors.Is(err, ErrUnknownColumn):
		return NewHTTPError(http.StatusBadRequest, ErrUnknownColumn.Error(), "UNKNOWN_COLUMN")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrUsernameTaken):
		return NewHTTPError(http.StatusConflict, ErrUsernameTaken.Error(), "USERNAME_TAKEN")
	case errors.Is(err, ErrInvalidUsername):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidUsername.Error(), "INVALID_USERNAME")
	case errors.Is(err, ErrProcedureMissing):
		return NewHTTPError(http.StatusInternalServerError, ErrProcedureMissing.Error(), "PROCEDURE_MISSING")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidRefreshToken):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidRefreshToken.Error(), "INVALID_REFRESH_TOKEN")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, forbiddenMessage(err), "FORBIDDEN")
	case errors.Is(err, ErrInvalidSnapshot):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_SNAPSHOT")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func forbiddenMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ErrForbidden.Error()+": "); i >= 0 {
		return msg[i+len(ErrForbidden.Error())+2:]
	}
	return ErrForbidden.Error()
}
