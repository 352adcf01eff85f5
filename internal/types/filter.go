package types

import (
	"github.com/finsight-lab/finsight/pkg/errors"
)

// CompareOp is a comparison operator inside a FilterExpression. The set is
// closed; anything outside it fails validation.
type CompareOp string

const (
	CompareOpLt  CompareOp = "<"
	CompareOpLte CompareOp = "<="
	CompareOpGt  CompareOp = ">"
	CompareOpGte CompareOp = ">="
	CompareOpEq  CompareOp = "=="
	CompareOpNeq CompareOp = "!="
)

// AllCompareOps lists every recognized operator, used for schema generation.
var AllCompareOps = []any{
	CompareOpLt,
	CompareOpLte,
	CompareOpGt,
	CompareOpGte,
	CompareOpEq,
	CompareOpNeq,
}

// FieldKind is the value kind a field resolves to.
type FieldKind string

const (
	FieldKindNumeric FieldKind = "numeric"
	FieldKindText    FieldKind = "text"
)

// FieldValue is the right-hand side of a comparison: a numeric literal, a
// text literal, or a reference to another field on the same instrument.
// Exactly one member is set.
type FieldValue struct {
	Number *float64 `json:"number,omitempty" yaml:"number,omitempty" jsonschema:"title=Number,description=Numeric literal"`
	Text   *string  `json:"text,omitempty" yaml:"text,omitempty" jsonschema:"title=Text,description=Text literal for enum-like fields"`
	Field  *string  `json:"field,omitempty" yaml:"field,omitempty" jsonschema:"title=Field,description=Reference to another field on the same instrument"`
}

// NumberValue builds a numeric literal.
func NumberValue(v float64) FieldValue {
	return FieldValue{Number: &v}
}

// TextValue builds a text literal.
func TextValue(v string) FieldValue {
	return FieldValue{Text: &v}
}

// FieldRefValue builds a field reference.
func FieldRefValue(name string) FieldValue {
	return FieldValue{Field: &name}
}

// Validate checks that exactly one member is set.
func (v FieldValue) Validate() error {
	set := 0
	if v.Number != nil {
		set++
	}

	if v.Text != nil {
		set++
	}

	if v.Field != nil {
		set++
	}

	if set != 1 {
		return errors.Newf(errors.ErrCodeSchemaValidation, "comparison value must set exactly one of number, text or field, got %d", set)
	}

	return nil
}

// Comparison is a single predicate comparing a named field against a value.
type Comparison struct {
	Field string     `json:"field" yaml:"field" jsonschema:"title=Field,description=Name of the field being compared,required"`
	Op    CompareOp  `json:"op" yaml:"op" jsonschema:"title=Operator,required"`
	Value FieldValue `json:"value" yaml:"value" jsonschema:"title=Value,required"`
}

// FilterExpression is a closed predicate-tree grammar over named fields.
// Exactly one member is set per node. It is always interpreted as data,
// never compiled or evaluated as code; this is the trust boundary between
// model output and execution.
type FilterExpression struct {
	And     []FilterExpression `json:"and,omitempty" yaml:"and,omitempty" jsonschema:"title=And,description=All child expressions must hold"`
	Or      []FilterExpression `json:"or,omitempty" yaml:"or,omitempty" jsonschema:"title=Or,description=At least one child expression must hold"`
	Not     *FilterExpression  `json:"not,omitempty" yaml:"not,omitempty" jsonschema:"title=Not,description=Negates the child expression"`
	Compare *Comparison        `json:"compare,omitempty" yaml:"compare,omitempty" jsonschema:"title=Compare,description=Leaf comparison predicate"`
}

// Validate checks the structural well-formedness of the tree: exactly one
// member per node, non-empty combinators, and value shape at every leaf.
// Field resolution and kind checking happen against a field catalog, see
// TypeCheck.
func (f FilterExpression) Validate() error {
	set := 0
	if len(f.And) > 0 {
		set++
	}

	if len(f.Or) > 0 {
		set++
	}

	if f.Not != nil {
		set++
	}

	if f.Compare != nil {
		set++
	}

	if set != 1 {
		return errors.Newf(errors.ErrCodeSchemaValidation, "filter node must set exactly one of and, or, not or compare, got %d", set)
	}

	for _, child := range f.And {
		if err := child.Validate(); err != nil {
			return err
		}
	}

	for _, child := range f.Or {
		if err := child.Validate(); err != nil {
			return err
		}
	}

	if f.Not != nil {
		return f.Not.Validate()
	}

	if f.Compare != nil {
		if f.Compare.Field == "" {
			return errors.New(errors.ErrCodeSchemaValidation, "comparison field name is empty")
		}

		if !isKnownOp(f.Compare.Op) {
			return errors.Newf(errors.ErrCodeInvalidOperator, "unrecognized comparison operator %q", f.Compare.Op)
		}

		return f.Compare.Value.Validate()
	}

	return nil
}

// TypeCheck resolves every field reference in the tree against the field
// catalog and checks kind compatibility of each comparison. Ordering
// operators are numeric-only; == and != additionally accept text operands.
func (f FilterExpression) TypeCheck() error {
	if err := f.Validate(); err != nil {
		return err
	}

	return f.typeCheck()
}

func (f FilterExpression) typeCheck() error {
	for _, child := range f.And {
		if err := child.typeCheck(); err != nil {
			return err
		}
	}

	for _, child := range f.Or {
		if err := child.typeCheck(); err != nil {
			return err
		}
	}

	if f.Not != nil {
		return f.Not.typeCheck()
	}

	if f.Compare == nil {
		return nil
	}

	ref, err := ParseField(f.Compare.Field)
	if err != nil {
		return err
	}

	valueKind := FieldKindNumeric

	switch {
	case f.Compare.Value.Text != nil:
		valueKind = FieldKindText
	case f.Compare.Value.Field != nil:
		other, err := ParseField(*f.Compare.Value.Field)
		if err != nil {
			return err
		}

		valueKind = other.Kind
	}

	if ref.Kind != valueKind {
		return errors.Newf(errors.ErrCodeSchemaValidation,
			"comparison on field %q mixes %s and %s operands", f.Compare.Field, ref.Kind, valueKind)
	}

	if valueKind == FieldKindText && f.Compare.Op != CompareOpEq && f.Compare.Op != CompareOpNeq {
		return errors.Newf(errors.ErrCodeSchemaValidation,
			"operator %q is not defined for text field %q", f.Compare.Op, f.Compare.Field)
	}

	return nil
}

// Fields returns the set of field names referenced anywhere in the tree.
func (f FilterExpression) Fields() []string {
	seen := make(map[string]struct{})
	f.collectFields(seen)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	return out
}

func (f FilterExpression) collectFields(seen map[string]struct{}) {
	for _, child := range f.And {
		child.collectFields(seen)
	}

	for _, child := range f.Or {
		child.collectFields(seen)
	}

	if f.Not != nil {
		f.Not.collectFields(seen)
	}

	if f.Compare != nil {
		seen[f.Compare.Field] = struct{}{}
		if f.Compare.Value.Field != nil {
			seen[*f.Compare.Value.Field] = struct{}{}
		}
	}
}

func isKnownOp(op CompareOp) bool {
	switch op {
	case CompareOpLt, CompareOpLte, CompareOpGt, CompareOpGte, CompareOpEq, CompareOpNeq:
		return true
	default:
		return false
	}
}
