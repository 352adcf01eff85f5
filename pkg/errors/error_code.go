package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown   ErrorCode = 1
	ErrCodeCancelled ErrorCode = 2

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidType          ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104
	ErrCodeSchemaValidation     ErrorCode = 105
	ErrCodeUnknownField         ErrorCode = 106
	ErrCodeInvalidDateRange     ErrorCode = 107
	ErrCodeEmptyUniverse        ErrorCode = 108
	ErrCodeInvalidOperator      ErrorCode = 109
	ErrCodeLimitExceeded        ErrorCode = 110

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeInsufficientHistory   ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Model gateway errors (400-499)
	ErrCodeProviderTimeout       ErrorCode = 400
	ErrCodeProviderRequestFailed ErrorCode = 401
	ErrCodeProviderBadResponse   ErrorCode = 402
	ErrCodeUnsupportedToolCall   ErrorCode = 403
	ErrCodeInvalidProvider       ErrorCode = 404

	// Specification compiler errors (500-599)
	ErrCodeUnresolvableIntent  ErrorCode = 500
	ErrCodeToolCallParseFailed ErrorCode = 501

	// Screener errors (600-699)
	ErrCodeScreenFailed ErrorCode = 600

	// Backtest errors (700-799)
	ErrCodeBacktestStateNil   ErrorCode = 700
	ErrCodeBacktestInitFailed ErrorCode = 701
	ErrCodeLedgerWriteFailed  ErrorCode = 702
)
