package grid

// validation.go checks edited and created values against a column's type and
// rule set before anything is sent to a data source.
//
// Validation happens in two passes per value:
//  1. Type check: numbers parse, dates parse, select values are known options.
//  2. Rules: Required, Min/Max, MinLength/MaxLength, Pattern, and Expr.
//
// Expr rules are expr-lang expressions evaluated with `value` (the new cell
// value) and `row` (the row with pending edits applied). Programs are compiled
// once per expression and cached.

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RuleKind identifies a validation rule.
type RuleKind string

const (
	RuleRequired  RuleKind = "required"
	RuleMin       RuleKind = "min"
	RuleMax       RuleKind = "max"
	RuleMinLength RuleKind = "minLength"
	RuleMaxLength RuleKind = "maxLength"
	RulePattern   RuleKind = "pattern"
	RuleExpr      RuleKind = "expr"
)

// Rule is one validation rule of a column.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Value   float64  `json:"value,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Expr    string   `json:"expr,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Required rejects empty values.
func Required() Rule { return Rule{Kind: RuleRequired} }

// Min rejects numbers below v.
func Min(v float64) Rule { return Rule{Kind: RuleMin, Value: v} }

// Max rejects numbers above v.
func Max(v float64) Rule { return Rule{Kind: RuleMax, Value: v} }

// MinLength rejects strings shorter than n runes.
func MinLength(n int) Rule { return Rule{Kind: RuleMinLength, Value: float64(n)} }

// MaxLength rejects strings longer than n runes.
func MaxLength(n int) Rule { return Rule{Kind: RuleMaxLength, Value: float64(n)} }

// Pattern rejects strings that do not match the regular expression.
func Pattern(re string) Rule { return Rule{Kind: RulePattern, Pattern: re} }

// Expr rejects values for which the boolean expression is false.
func Expr(expression, message string) Rule {
	return Rule{Kind: RuleExpr, Expr: expression, Message: message}
}

// ValidationError is a single failed check on one column.
type ValidationError struct {
	Column  string `json:"column"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s", e.Column, e.Message)
	}
	return e.Message
}

// ValidationErrors is every failed check of one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// orNil returns nil for an empty slice so callers can compare against nil.
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

var (
	programCache sync.Map // expression -> *vm.Program
	patternCache sync.Map // pattern -> *regexp.Regexp
)

// ValidateValue checks one value against a column definition.
// row supplies context for Expr rules and may be nil.
func ValidateValue(col ColumnDefinition, value any, row Row) ValidationErrors {
	var errs ValidationErrors
	fail := func(msg string) {
		errs = append(errs, ValidationError{Column: col.Key, Value: value, Message: msg})
	}

	if IsEmpty(value) {
		for _, r := range col.Rules {
			if r.Kind == RuleRequired {
				fail(ruleMessage(r, "required field is empty"))
			}
		}
		return errs
	}

	if msg := checkType(col, value); msg != "" {
		fail(msg)
		return errs
	}

	// Rules see numbers as float64 whatever their input form.
	typed := value
	if col.Type.Numeric() {
		typed, _ = ToFloat(value)
	}
	for _, r := range col.Rules {
		if msg := checkRule(r, typed, row); msg != "" {
			fail(msg)
		}
	}
	return errs
}

// Validate checks every key of changes that exists in the schema.
// Unknown keys are rejected. row is the full row the changes apply to.
func (s *Schema) Validate(changes Row, row Row) error {
	var errs ValidationErrors
	merged := row.Clone()
	if merged == nil {
		merged = Row{}
	}
	for k, v := range changes {
		merged[k] = v
	}
	for _, key := range sortedKeys(changes) {
		col, ok := s.Column(key)
		if !ok {
			errs = append(errs, ValidationError{Column: key, Message: "unknown column"})
			continue
		}
		errs = append(errs, ValidateValue(col, changes[key], merged)...)
	}
	return errs.orNil()
}

// ValidateRow checks a complete row, including Required rules on columns the
// row does not mention. Used before create.
func (s *Schema) ValidateRow(row Row) error {
	var errs ValidationErrors
	for _, col := range s.columns {
		errs = append(errs, ValidateValue(col, row[col.Key], row)...)
	}
	return errs.orNil()
}

func checkType(col ColumnDefinition, value any) string {
	switch col.Type {
	case FieldNumber, FieldCurrency:
		if _, ok := ToFloat(value); !ok {
			return "invalid number format"
		}
	case FieldDate, FieldDateTime:
		if _, ok := ToTime(value); !ok {
			return "invalid date format (use YYYY-MM-DD)"
		}
	case FieldBoolean:
		if _, ok := ToBool(value); !ok {
			return "must be yes/no, true/false, or 1/0"
		}
	case FieldSelect:
		if len(col.Options) > 0 && !col.HasOption(Stringify(value)) {
			return "value must be one of: " + optionList(col)
		}
	case FieldMultiSelect:
		if len(col.Options) > 0 {
			for _, v := range ToStrings(value) {
				if !col.HasOption(v) {
					return "value must be one of: " + optionList(col)
				}
			}
		}
	case FieldEmail:
		if _, err := mail.ParseAddress(Stringify(value)); err != nil {
			return "invalid email address"
		}
	case FieldURL:
		u, err := url.ParseRequestURI(Stringify(value))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "invalid URL"
		}
	}
	return ""
}

func checkRule(r Rule, value any, row Row) string {
	switch r.Kind {
	case RuleMin:
		if f, ok := ToFloat(value); ok && f < r.Value {
			return ruleMessage(r, fmt.Sprintf("must be at least %g", r.Value))
		}
	case RuleMax:
		if f, ok := ToFloat(value); ok && f > r.Value {
			return ruleMessage(r, fmt.Sprintf("must be at most %g", r.Value))
		}
	case RuleMinLength:
		if utf8.RuneCountInString(Stringify(value)) < int(r.Value) {
			return ruleMessage(r, fmt.Sprintf("must be at least %d characters", int(r.Value)))
		}
	case RuleMaxLength:
		if utf8.RuneCountInString(Stringify(value)) > int(r.Value) {
			return ruleMessage(r, fmt.Sprintf("must be at most %d characters", int(r.Value)))
		}
	case RulePattern:
		re, err := compilePattern(r.Pattern)
		if err != nil {
			return "invalid pattern rule: " + err.Error()
		}
		if !re.MatchString(Stringify(value)) {
			return ruleMessage(r, "invalid format")
		}
	case RuleExpr:
		ok, err := evalExpr(r.Expr, value, row)
		if err != nil {
			return "invalid rule: " + err.Error()
		}
		if !ok {
			return ruleMessage(r, "rule failed: "+r.Expr)
		}
	}
	return ""
}

func evalExpr(expression string, value any, row Row) (bool, error) {
	program, err := compileExpr(expression)
	if err != nil {
		return false, err
	}
	env := map[string]any{
		"value": value,
		"row":   map[string]any(row),
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expression, out)
	}
	return b, nil
}

func compileExpr(expression string) (*vm.Program, error) {
	if cached, ok := programCache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	programCache.Store(expression, program)
	return program, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func ruleMessage(r Rule, fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}

func optionList(col ColumnDefinition) string {
	vals := make([]string, len(col.Options))
	for i, o := range col.Options {
		vals[i] = o.Value
	}
	return strings.Join(vals, ", ")
}
