package validator

import (
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount    = errors.New("invalid invoice amount")
	ErrInvalidUrgency   = errors.New("invalid urgency")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidAction    = errors.New("invalid action")
)

// MaxInvoiceAmount bounds what the router accepts as a single invoice.
const MaxInvoiceAmount = 100_000_000

var knownFields = map[string]bool{
	domain.FieldAmount:     true,
	domain.FieldDepartment: true,
	domain.FieldVendor:     true,
	domain.FieldCategory:   true,
	domain.FieldProject:    true,
	"urgency":              true,
	"invoice_type":         true,
	"requester_id":         true,
}

var knownStrategies = map[domain.Strategy]bool{
	domain.StrategyManagerLookup:  true,
	domain.StrategyRoundRobin:     true,
	domain.StrategyLoadBalance:    true,
	domain.StrategyHierarchical:   true,
	domain.StrategyDepartmentHead: true,
}

type RequestValidator struct {
	maxAmount float64
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{maxAmount: MaxInvoiceAmount}
}

func (v *RequestValidator) ValidateRequest(req domain.ApprovalRequest) error {
	var errs []error

	if err := v.ValidateAmount(req.InvoiceAmount); err != nil {
		errs = append(errs, err)
	}

	switch req.Urgency {
	case "", domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidUrgency, req.Urgency))
	}

	return errors.Join(errs...)
}

func (v *RequestValidator) ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if amount > v.maxAmount {
		return fmt.Errorf("%w: exceeds maximum of %.0f", ErrInvalidAmount, v.maxAmount)
	}
	return nil
}

// ValidateNode checks the body of a node beyond its shape: condition
// operands that can be evaluated and actions that name what they need.
func (v *RequestValidator) ValidateNode(n *domain.Node) error {
	switch n.Kind() {
	case domain.KindCondition:
		return v.ValidateCondition(*n.Condition)
	case domain.KindAction:
		return v.ValidateAction(*n.Action)
	}
	return nil
}

func (v *RequestValidator) ValidateCondition(c domain.Condition) error {
	if !knownFields[c.Field] {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidCondition, c.Field)
	}

	switch c.Operator {
	case domain.OpGreater, domain.OpLess, domain.OpGreaterEqual, domain.OpLessEqual:
		if _, ok := parseNumber(c.Value); !ok {
			return fmt.Errorf("%w: %s needs a numeric value, got %q", ErrInvalidCondition, c.Operator, c.Value)
		}
	case domain.OpBetween:
		low, okLow := parseNumber(c.Value)
		high, okHigh := parseNumber(c.ValueMax)
		if !okLow || !okHigh {
			return fmt.Errorf("%w: between needs numeric bounds", ErrInvalidCondition)
		}
		if low > high {
			return fmt.Errorf("%w: lower bound %s exceeds upper bound %s", ErrInvalidCondition, c.Value, c.ValueMax)
		}
	case domain.OpEqual, domain.OpNotEqual, domain.OpContains:
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("%w: %s needs a value", ErrInvalidCondition, c.Operator)
		}
	default:
		return fmt.Errorf("%w: unrecognized operator %q", ErrInvalidCondition, c.Operator)
	}
	return nil
}

func (v *RequestValidator) ValidateAction(a domain.Action) error {
	switch a.Kind {
	case domain.ActionRouteToUser, domain.ActionSendNotification:
		if strings.TrimSpace(a.Target) == "" {
			return fmt.Errorf("%w: %s needs a target", ErrInvalidAction, a.Kind)
		}
	case domain.ActionDynamicAssignment:
		if !knownStrategies[a.Strategy] {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidAction, a.Strategy)
		}
		if (a.Strategy == domain.StrategyRoundRobin || a.Strategy == domain.StrategyLoadBalance) &&
			a.Param(domain.ParamTeam) == "" {
			return fmt.Errorf("%w: %s needs a %s parameter", ErrInvalidAction, a.Strategy, domain.ParamTeam)
		}
	case domain.ActionApprove:
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrInvalidAction, a.Kind)
	}

	switch a.Priority {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidAction, a.Priority)
	}
	return nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
