package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ConditionField identifies the transaction attribute a condition reads.
type ConditionField string

// Condition field constants.
const (
	FieldDescription ConditionField = "description"
	FieldAmount      ConditionField = "amount"
	FieldCategory    ConditionField = "category_id"
)

// StringOperator is an operator valid for description conditions.
type StringOperator string

// String operator constants.
const (
	StringContains    StringOperator = "contains"
	StringNotContains StringOperator = "not_contains"
	StringEquals      StringOperator = "equals"
	StringNotEquals   StringOperator = "not_equals"
	StringStartsWith  StringOperator = "starts_with"
	StringEndsWith    StringOperator = "ends_with"
	StringRegex       StringOperator = "regex"
)

// CompareOperator is an operator valid for amount and category conditions.
// Category conditions accept only CompareEqual and CompareNotEqual.
type CompareOperator string

// Comparison operator constants.
const (
	CompareEqual        CompareOperator = "eq"
	CompareNotEqual     CompareOperator = "ne"
	CompareGreaterThan  CompareOperator = "gt"
	CompareLessThan     CompareOperator = "lt"
	CompareGreaterEqual CompareOperator = "ge"
	CompareLessEqual    CompareOperator = "le"
)

// RuleCondition is a single typed predicate evaluated against a transaction.
// Evaluation never errors: malformed values (unparseable numbers, bad regex)
// evaluate to false so a single broken condition cannot interrupt a batch run.
type RuleCondition interface {
	// Evaluate reports whether the transaction satisfies the condition.
	Evaluate(txn *Transaction) bool
	// Field identifies the transaction attribute the condition reads.
	Field() ConditionField
}

// DescriptionCondition matches against the transaction description as UTF-8
// text. All operators except regex compare case-insensitively; regex case
// sensitivity is pattern-defined.
type DescriptionCondition struct {
	re       *regexp.Regexp
	Operator StringOperator
	Value    string
	reBad    bool
}

// Field implements RuleCondition.
func (c *DescriptionCondition) Field() ConditionField { return FieldDescription }

// Evaluate implements RuleCondition.
func (c *DescriptionCondition) Evaluate(txn *Transaction) bool {
	if c.Operator == StringRegex {
		return c.matchRegex(txn.Description)
	}

	desc := strings.ToLower(txn.Description)
	value := strings.ToLower(c.Value)

	switch c.Operator {
	case StringContains:
		return strings.Contains(desc, value)
	case StringNotContains:
		return !strings.Contains(desc, value)
	case StringEquals:
		return desc == value
	case StringNotEquals:
		return desc != value
	case StringStartsWith:
		return strings.HasPrefix(desc, value)
	case StringEndsWith:
		return strings.HasSuffix(desc, value)
	}

	return false
}

// matchRegex matches the raw description, compiling the pattern on first use.
// A pattern that fails to compile never matches.
func (c *DescriptionCondition) matchRegex(desc string) bool {
	if c.reBad {
		return false
	}
	if c.re == nil {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			c.reBad = true
			return false
		}
		c.re = re
	}
	return c.re.MatchString(desc)
}

// AmountCondition compares the transaction amount numerically. Value is kept
// as a string so a malformed amount degrades to a non-match instead of
// failing at decode time.
type AmountCondition struct {
	Operator CompareOperator
	Value    string
}

// Field implements RuleCondition.
func (c *AmountCondition) Field() ConditionField { return FieldAmount }

// Evaluate implements RuleCondition.
func (c *AmountCondition) Evaluate(txn *Transaction) bool {
	value, err := decimal.NewFromString(c.Value)
	if err != nil {
		return false
	}

	// Exact decimal comparison, no epsilon.
	cmp := txn.Amount.Cmp(value)

	switch c.Operator {
	case CompareEqual:
		return cmp == 0
	case CompareNotEqual:
		return cmp != 0
	case CompareGreaterThan:
		return cmp > 0
	case CompareLessThan:
		return cmp < 0
	case CompareGreaterEqual:
		return cmp >= 0
	case CompareLessEqual:
		return cmp <= 0
	}

	return false
}

// CategoryCondition compares the transaction's category id. A transaction
// without a category never equals any id.
type CategoryCondition struct {
	Operator CompareOperator
	Value    string
}

// Field implements RuleCondition.
func (c *CategoryCondition) Field() ConditionField { return FieldCategory }

// Evaluate implements RuleCondition.
func (c *CategoryCondition) Evaluate(txn *Transaction) bool {
	id, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return false
	}

	switch c.Operator {
	case CompareEqual:
		return txn.CategoryID != nil && *txn.CategoryID == id
	case CompareNotEqual:
		return txn.CategoryID == nil || *txn.CategoryID != id
	}

	return false
}

// invalidCondition stands in for a condition whose stored form could not be
// understood (unknown field after a downgrade, corrupted row). It never
// matches, failing safe per the engine's error taxonomy.
type invalidCondition struct {
	field ConditionField
}

func (c *invalidCondition) Field() ConditionField      { return c.field }
func (c *invalidCondition) Evaluate(_ *Transaction) bool { return false }

// Conditions is an ordered list of rule conditions combined with logical AND.
type Conditions []RuleCondition

// conditionEnvelope is the stored JSON shape of a single condition.
type conditionEnvelope struct {
	Field    ConditionField `json:"field"`
	Operator string         `json:"operator"`
	Value    string         `json:"value"`
}

// MarshalJSON serializes each condition with a field discriminator.
func (cs Conditions) MarshalJSON() ([]byte, error) {
	envelopes := make([]conditionEnvelope, 0, len(cs))
	for _, c := range cs {
		env := conditionEnvelope{Field: c.Field()}
		switch cond := c.(type) {
		case *DescriptionCondition:
			env.Operator = string(cond.Operator)
			env.Value = cond.Value
		case *AmountCondition:
			env.Operator = string(cond.Operator)
			env.Value = cond.Value
		case *CategoryCondition:
			env.Operator = string(cond.Operator)
			env.Value = cond.Value
		default:
			return nil, fmt.Errorf("cannot serialize condition for field %q", c.Field())
		}
		envelopes = append(envelopes, env)
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON restores typed conditions from their stored form. Unknown
// fields decode to a condition that never matches rather than failing the
// whole rule set.
func (cs *Conditions) UnmarshalJSON(data []byte) error {
	var envelopes []conditionEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return fmt.Errorf("failed to decode conditions: %w", err)
	}

	conditions := make(Conditions, 0, len(envelopes))
	for _, env := range envelopes {
		switch env.Field {
		case FieldDescription:
			conditions = append(conditions, &DescriptionCondition{
				Operator: StringOperator(env.Operator),
				Value:    env.Value,
			})
		case FieldAmount:
			conditions = append(conditions, &AmountCondition{
				Operator: CompareOperator(env.Operator),
				Value:    env.Value,
			})
		case FieldCategory:
			conditions = append(conditions, &CategoryCondition{
				Operator: CompareOperator(env.Operator),
				Value:    env.Value,
			})
		default:
			conditions = append(conditions, &invalidCondition{field: env.Field})
		}
	}

	*cs = conditions
	return nil
}

// ValidOperator reports whether the operator belongs to the operator set for
// the given field. Used by save-time validation; evaluation assumes it holds.
func ValidOperator(field ConditionField, operator string) bool {
	switch field {
	case FieldDescription:
		switch StringOperator(operator) {
		case StringContains, StringNotContains, StringEquals, StringNotEquals,
			StringStartsWith, StringEndsWith, StringRegex:
			return true
		}
	case FieldAmount:
		switch CompareOperator(operator) {
		case CompareEqual, CompareNotEqual, CompareGreaterThan, CompareLessThan,
			CompareGreaterEqual, CompareLessEqual:
			return true
		}
	case FieldCategory:
		switch CompareOperator(operator) {
		case CompareEqual, CompareNotEqual:
			return true
		}
	}
	return false
}
