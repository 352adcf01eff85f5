package compiler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// stubProvider replays a scripted sequence of responses and records every
// request it receives.
type stubProvider struct {
	responses []stubResult
	requests  []gateway.CompletionRequest
}

type stubResult struct {
	response gateway.ModelResponse
	err      error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) SupportsTools() bool { return true }

func (p *stubProvider) Complete(_ context.Context, req gateway.CompletionRequest) (gateway.ModelResponse, error) {
	p.requests = append(p.requests, req)
	next := p.responses[0]
	p.responses = p.responses[1:]

	return next.response, next.err
}

func screenCall(suite *CompilerTestSuite, payload ScreenPayload) gateway.ToolCall {
	raw, err := json.Marshal(payload)
	suite.Require().NoError(err)

	return gateway.ToolCall{ID: "call_1", Name: ToolNameCompileScreen, Arguments: string(raw)}
}

func strategyCall(suite *CompilerTestSuite, payload StrategyPayload) gateway.ToolCall {
	raw, err := json.Marshal(payload)
	suite.Require().NoError(err)

	return gateway.ToolCall{ID: "call_1", Name: ToolNameCompileStrategy, Arguments: string(raw)}
}

func cheapFilter() types.FilterExpression {
	return types.FilterExpression{Compare: &types.Comparison{
		Field: "pe_ratio",
		Op:    types.CompareOpLt,
		Value: types.NumberValue(15),
	}}
}

func crossFilter(op types.CompareOp) types.FilterExpression {
	return types.FilterExpression{Compare: &types.Comparison{
		Field: "close",
		Op:    op,
		Value: types.FieldRefValue("sma_20"),
	}}
}

type CompilerTestSuite struct {
	suite.Suite
	log *logger.Logger
}

func TestCompilerSuite(t *testing.T) {
	suite.Run(t, new(CompilerTestSuite))
}

func (suite *CompilerTestSuite) SetupSuite() {
	suite.log = logger.NewNopLogger()
}

func (suite *CompilerTestSuite) compilerFor(provider gateway.Provider) *Compiler {
	return NewCompiler(provider, Config{MaxLimit: 100}, suite.log)
}

func (suite *CompilerTestSuite) TestCompileScreenFirstAttempt() {
	call := screenCall(suite, ScreenPayload{
		Universe: types.Universe{Markets: []string{"CN"}},
		Filter:   cheapFilter(),
		RankBy:   "pe_ratio",
	})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{call}}},
	}}

	spec, err := suite.compilerFor(provider).Compile(context.Background(), "cheap CN stocks", nil)
	suite.Require().NoError(err)
	suite.Require().Len(provider.requests, 1)

	screen, ok := spec.(types.ScreenSpecification)
	suite.Require().True(ok)
	suite.Equal(types.SpecificationVariantScreen, screen.Variant())
	suite.Equal([]string{"CN"}, screen.Universe.Markets)
	suite.Equal(defaultLimit, screen.Limit)
	suite.Require().True(screen.RankBy.IsSome())
	suite.Equal("pe_ratio", screen.RankBy.Unwrap())

	// The request carries both tool schemas and the field vocabulary.
	req := provider.requests[0]
	suite.Len(req.Tools, 2)
	suite.Require().Len(req.Messages, 2)
	suite.Equal(gateway.RoleSystem, req.Messages[0].Role)
	suite.Contains(req.Messages[0].Content, "pe_ratio")
}

func (suite *CompilerTestSuite) TestCompileRepromptsAfterFreeText() {
	call := screenCall(suite, ScreenPayload{Filter: cheapFilter()})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{Content: "Sure, I can screen stocks for you!"}},
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{call}}},
	}}

	spec, err := suite.compilerFor(provider).Compile(context.Background(), "cheap stocks", nil)
	suite.Require().NoError(err)
	suite.Require().Len(provider.requests, 2)
	suite.IsType(types.ScreenSpecification{}, spec)

	// The retry replays the free-text answer plus a corrective user turn.
	second := provider.requests[1]
	suite.Require().Len(second.Messages, 4)
	suite.Equal(gateway.RoleAssistant, second.Messages[2].Role)
	suite.Equal(gateway.RoleUser, second.Messages[3].Role)
	suite.Contains(second.Messages[3].Content, "tool call")
}

func (suite *CompilerTestSuite) TestCompileRepromptsWithValidationError() {
	bad := screenCall(suite, ScreenPayload{Filter: types.FilterExpression{Compare: &types.Comparison{
		Field: "shoe_size",
		Op:    types.CompareOpGt,
		Value: types.NumberValue(40),
	}}})
	good := screenCall(suite, ScreenPayload{Filter: cheapFilter()})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{bad}}},
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{good}}},
	}}

	_, err := suite.compilerFor(provider).Compile(context.Background(), "screen", nil)
	suite.Require().NoError(err)
	suite.Require().Len(provider.requests, 2)

	second := provider.requests[1]
	suite.Require().Len(second.Messages, 4)
	suite.Equal(gateway.RoleAssistant, second.Messages[2].Role)
	suite.Len(second.Messages[2].ToolCalls, 1)
	suite.Equal(gateway.RoleTool, second.Messages[3].Role)
	suite.Equal("call_1", second.Messages[3].ToolCallID)
	suite.Contains(second.Messages[3].Content, "Specification rejected")
}

func (suite *CompilerTestSuite) TestCompileGivesUpAfterTwoAttempts() {
	bad := screenCall(suite, ScreenPayload{Filter: types.FilterExpression{}})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{bad}}},
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{bad}}},
	}}

	_, err := suite.compilerFor(provider).Compile(context.Background(), "screen", nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnresolvableIntent), "got %v", err)
	suite.Len(provider.requests, 2)
}

func (suite *CompilerTestSuite) TestCompileDoesNotRetryTransportErrors() {
	provider := &stubProvider{responses: []stubResult{
		{err: errors.New(errors.ErrCodeProviderTimeout, "provider did not answer")},
	}}

	_, err := suite.compilerFor(provider).Compile(context.Background(), "screen", nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeProviderTimeout))
	suite.Len(provider.requests, 1)
}

func (suite *CompilerTestSuite) TestCompileRejectsUnknownTool() {
	unknown := gateway.ToolCall{ID: "call_1", Name: "rm_rf", Arguments: "{}"}

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{unknown}}},
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{unknown}}},
	}}

	_, err := suite.compilerFor(provider).Compile(context.Background(), "screen", nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnresolvableIntent))
}

func (suite *CompilerTestSuite) TestCompileStrategy() {
	call := strategyCall(suite, StrategyPayload{
		Universe:  types.Universe{Symbols: []string{"600519.SH"}},
		EntryRule: crossFilter(types.CompareOpGt),
		ExitRule:  crossFilter(types.CompareOpLt),
		Start:     "2023-01-01",
		End:       "2023-12-31",
	})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{call}}},
	}}

	spec, err := suite.compilerFor(provider).Compile(context.Background(), "backtest a cross strategy", nil)
	suite.Require().NoError(err)

	strategy, ok := spec.(types.StrategySpecification)
	suite.Require().True(ok)
	suite.Equal(types.SizingPolicyAllIn, strategy.Sizing.Policy)
	suite.InDelta(float64(defaultInitialCapital), strategy.InitialCapital, 1e-9)
	suite.Equal(2023, strategy.Start.Year())
}

func (suite *CompilerTestSuite) TestHintsReachSystemPrompt() {
	call := screenCall(suite, ScreenPayload{Filter: cheapFilter()})

	provider := &stubProvider{responses: []stubResult{
		{response: gateway.ModelResponse{ToolCalls: []gateway.ToolCall{call}}},
	}}

	_, err := suite.compilerFor(provider).Compile(context.Background(), "screen",
		[]string{"prefers low-valuation stocks"})
	suite.Require().NoError(err)
	suite.Contains(provider.requests[0].Messages[0].Content, "prefers low-valuation stocks")
}

type BuildSpecificationTestSuite struct {
	suite.Suite
	now time.Time
}

func TestBuildSpecificationSuite(t *testing.T) {
	suite.Run(t, new(BuildSpecificationTestSuite))
}

func (suite *BuildSpecificationTestSuite) SetupSuite() {
	suite.now = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BuildSpecificationTestSuite) TestBuildScreenSpecification() {
	testCases := []struct {
		name     string
		payload  ScreenPayload
		wantCode errors.ErrorCode
	}{
		{
			name:    "minimal valid",
			payload: ScreenPayload{Filter: cheapFilter()},
		},
		{
			name:     "bad as_of date",
			payload:  ScreenPayload{Filter: cheapFilter(), AsOf: "July 1st"},
			wantCode: errors.ErrCodeSchemaValidation,
		},
		{
			name:     "unknown rank_by field",
			payload:  ScreenPayload{Filter: cheapFilter(), RankBy: "vibes"},
			wantCode: errors.ErrCodeUnknownField,
		},
		{
			name:     "text rank_by field",
			payload:  ScreenPayload{Filter: cheapFilter(), RankBy: "industry"},
			wantCode: errors.ErrCodeSchemaValidation,
		},
		{
			name:     "limit over maximum",
			payload:  ScreenPayload{Filter: cheapFilter(), Limit: 5000},
			wantCode: errors.ErrCodeLimitExceeded,
		},
		{
			name:     "negative limit",
			payload:  ScreenPayload{Filter: cheapFilter(), Limit: -3},
			wantCode: errors.ErrCodeSchemaValidation,
		},
		{
			name:     "filter fails type check",
			payload:  ScreenPayload{Filter: types.FilterExpression{}},
			wantCode: errors.ErrCodeSchemaValidation,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			spec, err := BuildScreenSpecification(tc.payload, 100, suite.now)
			if tc.wantCode != 0 {
				suite.Require().Error(err)
				suite.True(errors.HasCode(err, tc.wantCode), "got %v", err)

				return
			}

			suite.Require().NoError(err)
			suite.Equal(defaultLimit, spec.Limit)
			suite.True(spec.AsOf.Equal(suite.now))
		})
	}
}

func (suite *BuildSpecificationTestSuite) TestBuildScreenSpecificationParsesAsOf() {
	spec, err := BuildScreenSpecification(ScreenPayload{
		Filter: cheapFilter(),
		AsOf:   "2024-03-15",
		Limit:  10,
	}, 100, suite.now)
	suite.Require().NoError(err)

	suite.Equal(10, spec.Limit)
	suite.Equal("2024-03-15", spec.AsOf.Format(time.DateOnly))
	suite.False(spec.RankBy.IsSome())
}

func (suite *BuildSpecificationTestSuite) TestBuildStrategySpecification() {
	base := StrategyPayload{
		EntryRule: crossFilter(types.CompareOpGt),
		ExitRule:  crossFilter(types.CompareOpLt),
		Start:     "2023-01-01",
		End:       "2023-12-31",
	}

	testCases := []struct {
		name     string
		mutate   func(p *StrategyPayload)
		wantCode errors.ErrorCode
	}{
		{
			name:   "valid with defaults",
			mutate: func(p *StrategyPayload) {},
		},
		{
			name:     "unparseable start",
			mutate:   func(p *StrategyPayload) { p.Start = "early 2023" },
			wantCode: errors.ErrCodeSchemaValidation,
		},
		{
			name: "end before start",
			mutate: func(p *StrategyPayload) {
				p.Start = "2023-12-31"
				p.End = "2023-01-01"
			},
			wantCode: errors.ErrCodeInvalidDateRange,
		},
		{
			name: "fraction out of range",
			mutate: func(p *StrategyPayload) {
				p.Sizing = &types.PositionSizing{Policy: types.SizingPolicyFixedFraction, Fraction: 1.5}
			},
			wantCode: errors.ErrCodeSchemaValidation,
		},
		{
			name:     "entry rule fails type check",
			mutate:   func(p *StrategyPayload) { p.EntryRule = types.FilterExpression{} },
			wantCode: errors.ErrCodeSchemaValidation,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			payload := base
			tc.mutate(&payload)

			spec, err := BuildStrategySpecification(payload)
			if tc.wantCode != 0 {
				suite.Require().Error(err)
				suite.True(errors.HasCode(err, tc.wantCode), "got %v", err)

				return
			}

			suite.Require().NoError(err)
			suite.Equal(types.SizingPolicyAllIn, spec.Sizing.Policy)
			suite.InDelta(float64(defaultInitialCapital), spec.InitialCapital, 1e-9)
		})
	}
}
