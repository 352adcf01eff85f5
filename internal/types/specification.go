package types

import (
	"time"

	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/moznion/go-optional"
)

// SpecificationVariant distinguishes the two specification shapes the
// compiler can produce.
type SpecificationVariant string

const (
	SpecificationVariantScreen   SpecificationVariant = "screen"
	SpecificationVariantStrategy SpecificationVariant = "strategy"
)

// Specification is a compiled, validated request ready for execution.
type Specification interface {
	Variant() SpecificationVariant
}

// Universe restricts the set of instruments a screen or strategy applies to.
// An empty member means "no restriction on that axis".
type Universe struct {
	Symbols   []string `json:"symbols,omitempty" yaml:"symbols,omitempty" jsonschema:"title=Symbols,description=Explicit instrument identifiers"`
	Markets   []string `json:"markets,omitempty" yaml:"markets,omitempty" jsonschema:"title=Markets,description=Market scopes such as CN or US"`
	Exchanges []string `json:"exchanges,omitempty" yaml:"exchanges,omitempty" jsonschema:"title=Exchanges,description=Exchange scopes such as SSE or NASDAQ"`
}

// Empty reports whether the universe places no restriction at all.
func (u Universe) Empty() bool {
	return len(u.Symbols) == 0 && len(u.Markets) == 0 && len(u.Exchanges) == 0
}

// ScreenSpecification selects and ranks instruments matching a filter at a
// point in time.
type ScreenSpecification struct {
	Universe Universe         `json:"universe" yaml:"universe"`
	Filter   FilterExpression `json:"filter" yaml:"filter"`
	AsOf     time.Time        `json:"as_of" yaml:"as_of"`
	// RankBy is an optional numeric field to sort matches by, descending.
	RankBy optional.Option[string] `json:"rank_by,omitempty" yaml:"rank_by,omitempty"`
	Limit  int                     `json:"limit" yaml:"limit" validate:"gt=0"`
}

// Variant implements Specification.
func (s ScreenSpecification) Variant() SpecificationVariant {
	return SpecificationVariantScreen
}

// SizingPolicyType selects how a strategy sizes new positions.
type SizingPolicyType string

const (
	SizingPolicyFixedFraction SizingPolicyType = "fixed_fraction"
	SizingPolicyAllIn         SizingPolicyType = "all_in"
)

// AllSizingPolicies lists the recognized sizing policies, used for schema
// generation.
var AllSizingPolicies = []any{
	SizingPolicyFixedFraction,
	SizingPolicyAllIn,
}

// PositionSizing describes how much of current equity a new position takes.
type PositionSizing struct {
	Policy SizingPolicyType `json:"policy" yaml:"policy" validate:"required,oneof=fixed_fraction all_in"`
	// Fraction of current equity allocated per entry, in (0, 1]. Ignored
	// for the all_in policy.
	Fraction float64 `json:"fraction,omitempty" yaml:"fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// StrategySpecification replays entry/exit rules over a date range.
type StrategySpecification struct {
	Universe       Universe         `json:"universe" yaml:"universe"`
	EntryRule      FilterExpression `json:"entry_rule" yaml:"entry_rule"`
	ExitRule       FilterExpression `json:"exit_rule" yaml:"exit_rule"`
	Sizing         PositionSizing   `json:"sizing" yaml:"sizing"`
	Start          time.Time        `json:"start" yaml:"start"`
	End            time.Time        `json:"end" yaml:"end"`
	InitialCapital float64          `json:"initial_capital" yaml:"initial_capital" validate:"gt=0"`
}

// Variant implements Specification.
func (s StrategySpecification) Variant() SpecificationVariant {
	return SpecificationVariantStrategy
}

// ValidateDateRange fails fast when the strategy range is inverted or empty.
func (s StrategySpecification) ValidateDateRange() error {
	if !s.End.After(s.Start) {
		return errors.Newf(errors.ErrCodeInvalidDateRange,
			"strategy end %s is not after start %s", s.End.Format(time.DateOnly), s.Start.Format(time.DateOnly))
	}

	return nil
}
