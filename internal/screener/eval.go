package screener

import (
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// Evaluate interprets a filter expression for one instrument at bar index
// i. The tree is walked as data with short-circuit And/Or; nothing in it is
// ever compiled or executed. A comparison whose operand is undefined (an
// indicator inside its warm-up window, or an index before history begins)
// evaluates to false rather than failing.
func Evaluate(expr types.FilterExpression, resolver *FieldResolver, i int) (bool, error) {
	switch {
	case len(expr.And) > 0:
		for _, child := range expr.And {
			ok, err := Evaluate(child, resolver, i)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case len(expr.Or) > 0:
		for _, child := range expr.Or {
			ok, err := Evaluate(child, resolver, i)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	case expr.Not != nil:
		ok, err := Evaluate(*expr.Not, resolver, i)
		if err != nil {
			return false, err
		}

		return !ok, nil
	case expr.Compare != nil:
		return evaluateComparison(*expr.Compare, resolver, i)
	default:
		return false, errors.New(errors.ErrCodeSchemaValidation, "filter node has no members set")
	}
}

func evaluateComparison(cmp types.Comparison, resolver *FieldResolver, i int) (bool, error) {
	ref, err := types.ParseField(cmp.Field)
	if err != nil {
		return false, err
	}

	if ref.Kind == types.FieldKindText {
		return evaluateTextComparison(cmp, ref, resolver)
	}

	left, defined, err := resolver.ResolveNumeric(ref, i)
	if err != nil {
		return false, err
	}

	if !defined {
		return false, nil
	}

	right, defined, err := resolveNumericValue(cmp.Value, resolver, i)
	if err != nil {
		return false, err
	}

	if !defined {
		return false, nil
	}

	return compareNumbers(left, cmp.Op, right)
}

func evaluateTextComparison(cmp types.Comparison, ref types.FieldRef, resolver *FieldResolver) (bool, error) {
	left, err := resolver.ResolveText(ref)
	if err != nil {
		return false, err
	}

	var right string

	switch {
	case cmp.Value.Text != nil:
		right = *cmp.Value.Text
	case cmp.Value.Field != nil:
		otherRef, err := types.ParseField(*cmp.Value.Field)
		if err != nil {
			return false, err
		}

		right, err = resolver.ResolveText(otherRef)
		if err != nil {
			return false, err
		}
	default:
		return false, errors.Newf(errors.ErrCodeSchemaValidation,
			"text comparison on %q has a numeric operand", cmp.Field)
	}

	switch cmp.Op {
	case types.CompareOpEq:
		return left == right, nil
	case types.CompareOpNeq:
		return left != right, nil
	default:
		return false, errors.Newf(errors.ErrCodeInvalidOperator,
			"operator %q is not defined for text field %q", cmp.Op, cmp.Field)
	}
}

func resolveNumericValue(value types.FieldValue, resolver *FieldResolver, i int) (float64, bool, error) {
	switch {
	case value.Number != nil:
		return *value.Number, true, nil
	case value.Field != nil:
		ref, err := types.ParseField(*value.Field)
		if err != nil {
			return 0, false, err
		}

		return resolver.ResolveNumeric(ref, i)
	default:
		return 0, false, errors.New(errors.ErrCodeSchemaValidation, "numeric comparison has a text operand")
	}
}

func compareNumbers(left float64, op types.CompareOp, right float64) (bool, error) {
	switch op {
	case types.CompareOpLt:
		return left < right, nil
	case types.CompareOpLte:
		return left <= right, nil
	case types.CompareOpGt:
		return left > right, nil
	case types.CompareOpGte:
		return left >= right, nil
	case types.CompareOpEq:
		return left == right, nil
	case types.CompareOpNeq:
		return left != right, nil
	default:
		return false, errors.Newf(errors.ErrCodeInvalidOperator, "unrecognized comparison operator %q", op)
	}
}
