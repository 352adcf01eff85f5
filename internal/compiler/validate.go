package compiler

import (
	"encoding/json"
	"time"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
)

const (
	defaultLimit          = 50
	defaultInitialCapital = 100_000
)

// buildScreenSpecification parses and validates a raw screen tool call.
// Every failure carries the reason so it can be replayed to the model on
// the single re-prompt.
func (c *Compiler) buildScreenSpecification(arguments string) (types.ScreenSpecification, error) {
	var payload ScreenPayload
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return types.ScreenSpecification{}, errors.Wrap(errors.ErrCodeToolCallParseFailed,
			"tool call arguments are not valid JSON", err)
	}

	return BuildScreenSpecification(payload, c.maxLimit, c.clock())
}

// buildStrategySpecification parses and validates a raw strategy tool call.
func (c *Compiler) buildStrategySpecification(arguments string) (types.StrategySpecification, error) {
	var payload StrategyPayload
	if err := json.Unmarshal([]byte(arguments), &payload); err != nil {
		return types.StrategySpecification{}, errors.Wrap(errors.ErrCodeToolCallParseFailed,
			"tool call arguments are not valid JSON", err)
	}

	return BuildStrategySpecification(payload)
}

// BuildScreenSpecification validates a screen payload and converts it into
// an executable specification. The payload is untrusted regardless of
// origin: model tool calls and operator spec files go through the same
// checks.
func BuildScreenSpecification(payload ScreenPayload, maxLimit int, now time.Time) (types.ScreenSpecification, error) {
	if err := payload.Filter.TypeCheck(); err != nil {
		return types.ScreenSpecification{}, err
	}

	spec := types.ScreenSpecification{
		Universe: payload.Universe,
		Filter:   payload.Filter,
		AsOf:     now,
		RankBy:   optional.None[string](),
		Limit:    payload.Limit,
	}

	if payload.AsOf != "" {
		asOf, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			return types.ScreenSpecification{}, errors.Wrapf(errors.ErrCodeSchemaValidation, err,
				"as_of %q is not a YYYY-MM-DD date", payload.AsOf)
		}

		spec.AsOf = asOf
	}

	if payload.RankBy != "" {
		ref, err := types.ParseField(payload.RankBy)
		if err != nil {
			return types.ScreenSpecification{}, err
		}

		if ref.Kind != types.FieldKindNumeric {
			return types.ScreenSpecification{}, errors.Newf(errors.ErrCodeSchemaValidation,
				"rank_by field %q is not numeric", payload.RankBy)
		}

		spec.RankBy = optional.Some(payload.RankBy)
	}

	if spec.Limit == 0 {
		spec.Limit = defaultLimit
	}

	if spec.Limit < 0 {
		return types.ScreenSpecification{}, errors.Newf(errors.ErrCodeSchemaValidation,
			"limit must be positive, got %d", spec.Limit)
	}

	if maxLimit > 0 && spec.Limit > maxLimit {
		return types.ScreenSpecification{}, errors.Newf(errors.ErrCodeLimitExceeded,
			"limit %d exceeds the configured maximum %d", spec.Limit, maxLimit)
	}

	if err := newValidator().Struct(spec); err != nil {
		return types.ScreenSpecification{}, errors.Wrap(errors.ErrCodeSchemaValidation,
			"screen specification failed validation", err)
	}

	return spec, nil
}

// BuildStrategySpecification validates a strategy payload and converts it
// into an executable specification.
func BuildStrategySpecification(payload StrategyPayload) (types.StrategySpecification, error) {
	if err := payload.EntryRule.TypeCheck(); err != nil {
		return types.StrategySpecification{}, err
	}

	if err := payload.ExitRule.TypeCheck(); err != nil {
		return types.StrategySpecification{}, err
	}

	start, err := time.Parse(time.DateOnly, payload.Start)
	if err != nil {
		return types.StrategySpecification{}, errors.Wrapf(errors.ErrCodeSchemaValidation, err,
			"start %q is not a YYYY-MM-DD date", payload.Start)
	}

	end, err := time.Parse(time.DateOnly, payload.End)
	if err != nil {
		return types.StrategySpecification{}, errors.Wrapf(errors.ErrCodeSchemaValidation, err,
			"end %q is not a YYYY-MM-DD date", payload.End)
	}

	sizing := types.PositionSizing{Policy: types.SizingPolicyAllIn}
	if payload.Sizing != nil {
		sizing = *payload.Sizing
	}

	capital := payload.InitialCapital
	if capital == 0 {
		capital = defaultInitialCapital
	}

	spec := types.StrategySpecification{
		Universe:       payload.Universe,
		EntryRule:      payload.EntryRule,
		ExitRule:       payload.ExitRule,
		Sizing:         sizing,
		Start:          start,
		End:            end,
		InitialCapital: capital,
	}

	if err := spec.ValidateDateRange(); err != nil {
		return types.StrategySpecification{}, err
	}

	if err := newValidator().Struct(spec); err != nil {
		return types.StrategySpecification{}, errors.Wrap(errors.ErrCodeSchemaValidation,
			"strategy specification failed validation", err)
	}

	return spec, nil
}

func newValidator() *validator.Validate {
	return validator.New()
}
