package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight-lab/finsight/internal/gateway"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/invopop/jsonschema"
)

// Tool names exposed to the language model. These two tools are the whole
// surface the model can reach; their argument schemas are generated from
// the payload structs below.
const (
	ToolNameCompileScreen   = "compile_screen"
	ToolNameCompileStrategy = "compile_strategy"
)

// ScreenPayload is the raw tool-call argument shape for a screen request.
// It is untrusted until validated; dates arrive as strings and are parsed
// during validation.
type ScreenPayload struct {
	Universe types.Universe         `json:"universe" yaml:"universe" jsonschema:"title=Universe,description=Instrument scope for the screen"`
	Filter   types.FilterExpression `json:"filter" yaml:"filter" jsonschema:"title=Filter,description=Predicate tree instruments must satisfy,required"`
	AsOf     string                 `json:"as_of,omitempty" yaml:"as_of,omitempty" jsonschema:"title=As Of,description=Evaluation date in YYYY-MM-DD; defaults to the latest trading day,format=date"`
	RankBy   string                 `json:"rank_by,omitempty" yaml:"rank_by,omitempty" jsonschema:"title=Rank By,description=Numeric field to sort matches by descending"`
	Limit    int                    `json:"limit,omitempty" yaml:"limit,omitempty" jsonschema:"title=Limit,description=Maximum number of results,minimum=1"`
}

// StrategyPayload is the raw tool-call argument shape for a backtest
// request.
type StrategyPayload struct {
	Universe       types.Universe         `json:"universe" yaml:"universe" jsonschema:"title=Universe,description=Instrument scope for the strategy"`
	EntryRule      types.FilterExpression `json:"entry_rule" yaml:"entry_rule" jsonschema:"title=Entry Rule,description=Predicate tree that opens a position when true,required"`
	ExitRule       types.FilterExpression `json:"exit_rule" yaml:"exit_rule" jsonschema:"title=Exit Rule,description=Predicate tree that closes a position when true,required"`
	Sizing         *types.PositionSizing  `json:"sizing,omitempty" yaml:"sizing,omitempty" jsonschema:"title=Sizing,description=Position sizing policy; defaults to all-in"`
	Start          string                 `json:"start" yaml:"start" jsonschema:"title=Start,description=Backtest start date in YYYY-MM-DD,format=date,required"`
	End            string                 `json:"end" yaml:"end" jsonschema:"title=End,description=Backtest end date in YYYY-MM-DD,format=date,required"`
	InitialCapital float64                `json:"initial_capital,omitempty" yaml:"initial_capital,omitempty" jsonschema:"title=Initial Capital,description=Starting capital; defaults to 100000,minimum=0"`
}

// toolDefinitions generates the two tool definitions handed to the model.
func toolDefinitions() ([]gateway.ToolDefinition, error) {
	screenSchema, err := reflectSchema(&ScreenPayload{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate screen schema: %w", err)
	}

	strategySchema, err := reflectSchema(&StrategyPayload{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate strategy schema: %w", err)
	}

	return []gateway.ToolDefinition{
		{
			Name:        ToolNameCompileScreen,
			Description: "Translate the user's stock screening request into a structured screen specification.",
			Schema:      screenSchema,
		},
		{
			Name:        ToolNameCompileStrategy,
			Description: "Translate the user's strategy backtest request into a structured strategy specification.",
			Schema:      strategySchema,
		},
	}, nil
}

func reflectSchema(payload any) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
	}

	schema := reflector.Reflect(payload)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	return raw, nil
}

// systemPrompt describes the task and the closed field vocabulary. The
// model only ever fills tool arguments; it never produces executable logic.
func systemPrompt(hints []string) string {
	var sb strings.Builder

	sb.WriteString("You are a financial request translator. ")
	sb.WriteString("Translate the user's request into exactly one tool call: ")
	sb.WriteString("compile_screen for stock screening, compile_strategy for strategy backtests.\n\n")
	sb.WriteString("Known fields: ")
	sb.WriteString(strings.Join(types.KnownFieldNames(), ", "))
	sb.WriteString(".\nParameterized fields: sma_<period>, ema_<period>, rsi_<period> (e.g. rsi_14).\n")
	sb.WriteString("Comparison operators: <, <=, >, >=, ==, !=.\n")
	sb.WriteString("Never invent field names outside this vocabulary.")

	if len(hints) > 0 {
		sb.WriteString("\n\nRelevant user context:\n")

		for _, hint := range hints {
			sb.WriteString("- ")
			sb.WriteString(hint)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
