package orchestrator

import (
	"github.com/finsight-lab/finsight/pkg/errors"
)

// ErrorKind is a stable, user-facing category for a failed request.
type ErrorKind string

const (
	ErrorKindBadRequest ErrorKind = "bad_request"
	ErrorKindNoData     ErrorKind = "no_data"
	ErrorKindModel      ErrorKind = "model"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindInternal   ErrorKind = "internal"
)

// UserFacingError pairs a presentable message with the underlying cause.
// The message is stable per error code so callers can rely on the phrasing;
// the cause keeps the full diagnostic chain for logs.
type UserFacingError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *UserFacingError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *UserFacingError) Unwrap() error {
	return e.Cause
}

// mapError converts any pipeline failure into a UserFacingError.
func mapError(err error) *UserFacingError {
	kind := ErrorKindInternal
	message := "something went wrong while handling the request"

	switch errors.GetCode(err) {
	case errors.ErrCodeUnresolvableIntent:
		kind = ErrorKindModel
		message = "the request could not be translated into a screen or backtest; try rephrasing it"
	case errors.ErrCodeProviderTimeout:
		kind = ErrorKindModel
		message = "the language model did not answer in time; try again"
	case errors.ErrCodeUnsupportedToolCall:
		kind = ErrorKindModel
		message = "the configured model cannot produce structured requests; switch to a tool-capable model"
	case errors.ErrCodeProviderRequestFailed, errors.ErrCodeProviderBadResponse, errors.ErrCodeInvalidProvider:
		kind = ErrorKindModel
		message = "the language model provider is unavailable"
	case errors.ErrCodeUnknownField:
		kind = ErrorKindBadRequest
		message = "the request references a field that is not in the screening vocabulary"
	case errors.ErrCodeSchemaValidation, errors.ErrCodeInvalidOperator, errors.ErrCodeToolCallParseFailed:
		kind = ErrorKindBadRequest
		message = "the request produced an invalid specification"
	case errors.ErrCodeLimitExceeded:
		kind = ErrorKindBadRequest
		message = "the requested result limit is above the configured maximum"
	case errors.ErrCodeInvalidDateRange:
		kind = ErrorKindBadRequest
		message = "the backtest date range is empty or inverted"
	case errors.ErrCodeEmptyUniverse:
		kind = ErrorKindNoData
		message = "no instruments match the requested universe"
	case errors.ErrCodeDataNotFound, errors.ErrCodeInsufficientHistory:
		kind = ErrorKindNoData
		message = "there is not enough market data to answer the request"
	case errors.ErrCodeCancelled:
		kind = ErrorKindCancelled
		message = "the request was cancelled"
	}

	return &UserFacingError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}
