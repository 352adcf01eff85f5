package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1"
	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/finsight-lab/finsight/internal/compiler"
	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/indicator"
	"github.com/finsight-lab/finsight/internal/indicator/cache"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/screener"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// scriptedProvider replays a fixed sequence of gateway outcomes and counts
// the calls it receives.
type scriptedProvider struct {
	outcomes []scriptedOutcome
	calls    int
}

type scriptedOutcome struct {
	response gateway.ModelResponse
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) SupportsTools() bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, _ gateway.CompletionRequest) (gateway.ModelResponse, error) {
	next := p.outcomes[p.calls%len(p.outcomes)]
	p.calls++

	return next.response, next.err
}

type OrchestratorTestSuite struct {
	suite.Suite
	asOf   time.Time
	market *market.InMemoryProvider
	log    *logger.Logger
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (suite *OrchestratorTestSuite) SetupTest() {
	suite.asOf = time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	suite.market = market.NewInMemoryProvider()
	suite.log = logger.NewNopLogger()

	for symbol, pe := range map[string]float64{"600519.SH": 28, "000858.SZ": 15} {
		suite.market.AddInstrument(market.Instrument{Symbol: symbol, Market: "CN", Exchange: "SSE"})

		bars := make([]types.PriceBar, 40)
		for i := range bars {
			c := 10 + float64(i)*0.5
			bars[i] = types.PriceBar{
				Symbol: symbol,
				Time:   suite.asOf.AddDate(0, 0, i-39),
				Open:   c,
				High:   c + 1,
				Low:    c - 1,
				Close:  c,
				Volume: 1000,
			}
		}

		suite.Require().NoError(suite.market.SetPriceBars(symbol, bars))
		suite.market.SetFundamentals(symbol, map[string]types.FieldValue{
			"pe_ratio": types.NumberValue(pe),
		})
	}
}

func (suite *OrchestratorTestSuite) orchestratorFor(provider gateway.Provider) *Orchestrator {
	registry := indicator.NewDefaultRegistry()
	seriesCache := cache.NewLRUCache(64)

	return NewOrchestrator(
		compiler.NewCompiler(provider, compiler.DefaultConfig(), suite.log),
		screener.NewScreener(registry, seriesCache, screener.DefaultConfig(), suite.log),
		engine_v1.NewBacktestEngineV1(registry, seriesCache, engine_v1.Config{Broker: commission_fee.BrokerZero}, suite.log),
		suite.market,
		suite.log,
	)
}

func (suite *OrchestratorTestSuite) screenToolCall() gateway.ToolCall {
	raw, err := json.Marshal(compiler.ScreenPayload{
		Universe: types.Universe{Markets: []string{"CN"}},
		Filter: types.FilterExpression{Compare: &types.Comparison{
			Field: "pe_ratio",
			Op:    types.CompareOpLt,
			Value: types.NumberValue(20),
		}},
		AsOf: suite.asOf.Format(time.DateOnly),
	})
	suite.Require().NoError(err)

	return gateway.ToolCall{ID: "call_1", Name: compiler.ToolNameCompileScreen, Arguments: string(raw)}
}

func (suite *OrchestratorTestSuite) strategyToolCall() gateway.ToolCall {
	raw, err := json.Marshal(compiler.StrategyPayload{
		Universe: types.Universe{Symbols: []string{"600519.SH"}},
		EntryRule: types.FilterExpression{Compare: &types.Comparison{
			Field: "close",
			Op:    types.CompareOpGt,
			Value: types.NumberValue(0),
		}},
		ExitRule: types.FilterExpression{Compare: &types.Comparison{
			Field: "close",
			Op:    types.CompareOpGt,
			Value: types.NumberValue(100_000),
		}},
		Start: suite.asOf.AddDate(0, 0, -20).Format(time.DateOnly),
		End:   suite.asOf.Format(time.DateOnly),
	})
	suite.Require().NoError(err)

	return gateway.ToolCall{ID: "call_1", Name: compiler.ToolNameCompileStrategy, Arguments: string(raw)}
}

func (suite *OrchestratorTestSuite) TestHandleScreen() {
	provider := &scriptedProvider{outcomes: []scriptedOutcome{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{suite.screenToolCall()}}},
	}}

	result, err := suite.orchestratorFor(provider).Handle(context.Background(), "cheap CN stocks", nil)
	suite.Require().NoError(err)

	suite.Equal(types.SpecificationVariantScreen, result.Variant)
	suite.Nil(result.Report)
	suite.Require().Len(result.Screen, 1)
	suite.Equal("000858.SZ", result.Screen[0].Symbol)
}

func (suite *OrchestratorTestSuite) TestHandleStrategy() {
	provider := &scriptedProvider{outcomes: []scriptedOutcome{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{suite.strategyToolCall()}}},
	}}

	result, err := suite.orchestratorFor(provider).Handle(context.Background(), "backtest moutai", nil)
	suite.Require().NoError(err)

	suite.Equal(types.SpecificationVariantStrategy, result.Variant)
	suite.Require().NotNil(result.Report)
	suite.NotEmpty(result.Report.EquityCurve)
	suite.Len(result.Report.Trades, 1)
}

func (suite *OrchestratorTestSuite) TestHandleRetriesTimeoutOnce() {
	provider := &scriptedProvider{outcomes: []scriptedOutcome{
		{err: errors.New(errors.ErrCodeProviderTimeout, "provider did not answer")},
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{suite.screenToolCall()}}},
	}}

	result, err := suite.orchestratorFor(provider).Handle(context.Background(), "cheap CN stocks", nil)
	suite.Require().NoError(err)
	suite.Equal(2, provider.calls)
	suite.Len(result.Screen, 1)
}

func (suite *OrchestratorTestSuite) TestHandleSecondTimeoutSurfaces() {
	provider := &scriptedProvider{outcomes: []scriptedOutcome{
		{err: errors.New(errors.ErrCodeProviderTimeout, "provider did not answer")},
	}}

	_, err := suite.orchestratorFor(provider).Handle(context.Background(), "cheap CN stocks", nil)
	suite.Require().Error(err)
	suite.Equal(2, provider.calls)

	var userErr *UserFacingError
	suite.Require().ErrorAs(err, &userErr)
	suite.Equal(ErrorKindModel, userErr.Kind)
	suite.True(errors.HasCode(userErr.Cause, errors.ErrCodeProviderTimeout))
}

func (suite *OrchestratorTestSuite) TestHandleDoesNotRetryOtherFailures() {
	provider := &scriptedProvider{outcomes: []scriptedOutcome{
		{err: errors.New(errors.ErrCodeUnsupportedToolCall, "no tools")},
	}}

	_, err := suite.orchestratorFor(provider).Handle(context.Background(), "cheap CN stocks", nil)
	suite.Require().Error(err)
	suite.Equal(1, provider.calls)

	var userErr *UserFacingError
	suite.Require().ErrorAs(err, &userErr)
	suite.Equal(ErrorKindModel, userErr.Kind)
}

func (suite *OrchestratorTestSuite) TestMapError() {
	testCases := []struct {
		name     string
		code     errors.ErrorCode
		expected ErrorKind
	}{
		{name: "unresolvable intent", code: errors.ErrCodeUnresolvableIntent, expected: ErrorKindModel},
		{name: "provider timeout", code: errors.ErrCodeProviderTimeout, expected: ErrorKindModel},
		{name: "unsupported tool call", code: errors.ErrCodeUnsupportedToolCall, expected: ErrorKindModel},
		{name: "unknown field", code: errors.ErrCodeUnknownField, expected: ErrorKindBadRequest},
		{name: "schema validation", code: errors.ErrCodeSchemaValidation, expected: ErrorKindBadRequest},
		{name: "limit exceeded", code: errors.ErrCodeLimitExceeded, expected: ErrorKindBadRequest},
		{name: "invalid date range", code: errors.ErrCodeInvalidDateRange, expected: ErrorKindBadRequest},
		{name: "empty universe", code: errors.ErrCodeEmptyUniverse, expected: ErrorKindNoData},
		{name: "data not found", code: errors.ErrCodeDataNotFound, expected: ErrorKindNoData},
		{name: "cancelled", code: errors.ErrCodeCancelled, expected: ErrorKindCancelled},
		{name: "anything else", code: errors.ErrCodeQueryFailed, expected: ErrorKindInternal},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cause := errors.New(tc.code, "boom")
			mapped := mapError(cause)

			suite.Equal(tc.expected, mapped.Kind)
			suite.NotEmpty(mapped.Message)
			suite.Equal(cause, mapped.Unwrap())
		})
	}
}

func (suite *OrchestratorTestSuite) TestMapErrorInsufficientHistory() {
	cause := errors.NewInsufficientHistoryErrorf(30, 10, "600519.SH", "sma needs at least %d bars, got %d", 30, 10)
	mapped := mapError(cause)

	suite.Equal(ErrorKindNoData, mapped.Kind)
	suite.NotEmpty(mapped.Message)
	suite.True(errors.IsInsufficientHistoryError(mapped.Unwrap()))
}
