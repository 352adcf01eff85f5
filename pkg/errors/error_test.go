package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewAndNewf() {
	err := New(ErrCodeUnknownField, "unknown field")
	suite.Equal(ErrCodeUnknownField, err.Code)
	suite.Equal("[106] unknown field", err.Error())

	err = Newf(ErrCodeDataNotFound, "no bars found for symbol %s", "600519.SH")
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Contains(err.Error(), "600519.SH")
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeQueryFailed, "failed to execute query", cause)

	suite.Equal(cause, err.Unwrap())
	suite.Contains(err.Error(), "connection refused")
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCodeAndHasCode() {
	testCases := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "direct error",
			err:      New(ErrCodeProviderTimeout, "timed out"),
			expected: ErrCodeProviderTimeout,
		},
		{
			name:     "wrapped in fmt chain",
			err:      fmt.Errorf("outer: %w", New(ErrCodeEmptyUniverse, "empty")),
			expected: ErrCodeEmptyUniverse,
		},
		{
			name:     "insufficient history",
			err:      NewInsufficientHistoryErrorf(30, 10, "600519.SH", "sma needs at least %d bars, got %d", 30, 10),
			expected: ErrCodeInsufficientHistory,
		},
		{
			name:     "wrapped insufficient history",
			err:      fmt.Errorf("evaluation failed: %w", NewInsufficientHistoryError(30, 10, "600519.SH", "short history")),
			expected: ErrCodeInsufficientHistory,
		},
		{
			name:     "plain error",
			err:      stderrors.New("plain"),
			expected: ErrCodeUnknown,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, GetCode(tc.err))
			suite.True(HasCode(tc.err, tc.expected))
		})
	}
}

func (suite *ErrorTestSuite) TestInsufficientHistoryError() {
	err := NewInsufficientHistoryErrorf(26, 10, "600519.SH", "macd needs at least %d bars, got %d", 26, 10)

	suite.True(IsInsufficientHistoryError(err))
	suite.Equal(26, err.Required)
	suite.Equal(10, err.Actual)
	suite.Equal("600519.SH", err.Symbol)

	wrapped := fmt.Errorf("evaluation failed: %w", err)
	suite.True(IsInsufficientHistoryError(wrapped))

	suite.False(IsInsufficientHistoryError(New(ErrCodeDataNotFound, "nope")))
}
