package processor

import (
	"fmt"
	"invoice_router/internal/domain"
	"math"
	"strconv"
	"strings"
)

// Evaluate tests one condition against an invoice's facts. It is total: a
// missing field, a non-numeric operand or an unknown operator fails the
// condition with an explanation instead of returning an error.
func Evaluate(c domain.Condition, facts domain.FactSheet) (bool, string) {
	actual, ok := facts[c.Field]
	if !ok {
		return false, fmt.Sprintf("unknown field %q", c.Field)
	}

	switch c.Operator {
	case domain.OpGreater, domain.OpLess, domain.OpGreaterEqual, domain.OpLessEqual:
		return checkNumericCondition(c, actual)
	case domain.OpEqual, domain.OpNotEqual, domain.OpContains:
		return checkStringCondition(c, actual)
	case domain.OpBetween:
		return checkBetweenCondition(c, actual)
	default:
		return false, fmt.Sprintf("unrecognized operator %q", c.Operator)
	}
}

func checkNumericCondition(c domain.Condition, actual any) (bool, string) {
	value, ok := toNumber(actual)
	if !ok {
		return false, fmt.Sprintf("%s value %q is not numeric", c.Field, toString(actual))
	}
	target, ok := toNumber(c.Value)
	if !ok {
		return false, fmt.Sprintf("comparison value %q is not numeric", c.Value)
	}

	var passed bool
	var symbol, negated string
	switch c.Operator {
	case domain.OpGreater:
		passed, symbol, negated = value > target, ">", "<="
	case domain.OpLess:
		passed, symbol, negated = value < target, "<", ">="
	case domain.OpGreaterEqual:
		passed, symbol, negated = value >= target, ">=", "<"
	case domain.OpLessEqual:
		passed, symbol, negated = value <= target, "<=", ">"
	}

	if !passed {
		symbol = negated
	}
	return passed, fmt.Sprintf("%s %s %s", formatNumber(value), symbol, formatNumber(target))
}

func checkStringCondition(c domain.Condition, actual any) (bool, string) {
	value := toString(actual)
	lowerValue, lowerTarget := strings.ToLower(value), strings.ToLower(c.Value)

	switch c.Operator {
	case domain.OpEqual:
		if lowerValue == lowerTarget {
			return true, fmt.Sprintf("%q = %q", value, c.Value)
		}
		return false, fmt.Sprintf("%q != %q", value, c.Value)
	case domain.OpNotEqual:
		if lowerValue != lowerTarget {
			return true, fmt.Sprintf("%q != %q", value, c.Value)
		}
		return false, fmt.Sprintf("%q = %q", value, c.Value)
	default:
		if strings.Contains(lowerValue, lowerTarget) {
			return true, fmt.Sprintf("%q contains %q", value, c.Value)
		}
		return false, fmt.Sprintf("%q does not contain %q", value, c.Value)
	}
}

func checkBetweenCondition(c domain.Condition, actual any) (bool, string) {
	value, ok := toNumber(actual)
	if !ok {
		return false, fmt.Sprintf("%s value %q is not numeric", c.Field, toString(actual))
	}
	low, ok := toNumber(c.Value)
	if !ok {
		return false, fmt.Sprintf("lower bound %q is not numeric", c.Value)
	}
	high, ok := toNumber(c.ValueMax)
	if !ok {
		return false, fmt.Sprintf("upper bound %q is not numeric", c.ValueMax)
	}

	verb := "is not"
	passed := low <= value && value <= high
	if passed {
		verb = "is"
	}
	return passed, fmt.Sprintf("%s %s between %s and %s",
		formatNumber(value), verb, formatNumber(low), formatNumber(high))
}

// toNumber accepts numbers and numeric strings, ignoring a leading "$" and
// thousands separators.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return formatNumber(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
