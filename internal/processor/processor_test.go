package processor

import (
	"invoice_router/internal/domain"
	"strings"
	"testing"
)

func TestEvaluate_Operators(t *testing.T) {
	facts := domain.ApprovalRequest{
		InvoiceAmount: 15000,
		Department:    "Engineering",
		Vendor:        "Dell Technologies",
		Category:      "Hardware",
	}.Facts()

	tests := []struct {
		name      string
		condition domain.Condition
		want      bool
		message   string
	}{
		{"greater passes", domain.Condition{Field: "amount", Operator: domain.OpGreater, Value: "10000"}, true, "15000 > 10000"},
		{"greater fails", domain.Condition{Field: "amount", Operator: domain.OpGreater, Value: "20000"}, false, "15000 <= 20000"},
		{"less", domain.Condition{Field: "amount", Operator: domain.OpLess, Value: "$20,000"}, true, "15000 < 20000"},
		{"greater equal at bound", domain.Condition{Field: "amount", Operator: domain.OpGreaterEqual, Value: "15000"}, true, "15000 >= 15000"},
		{"less equal fails", domain.Condition{Field: "amount", Operator: domain.OpLessEqual, Value: "14999"}, false, "15000 > 14999"},
		{"equal ignores case", domain.Condition{Field: "department", Operator: domain.OpEqual, Value: "engineering"}, true, `"Engineering" = "engineering"`},
		{"not equal", domain.Condition{Field: "department", Operator: domain.OpNotEqual, Value: "Marketing"}, true, `"Engineering" != "Marketing"`},
		{"not equal fails on same value", domain.Condition{Field: "department", Operator: domain.OpNotEqual, Value: "ENGINEERING"}, false, `"Engineering" = "ENGINEERING"`},
		{"contains", domain.Condition{Field: "vendor", Operator: domain.OpContains, Value: "dell"}, true, `"Dell Technologies" contains "dell"`},
		{"contains fails", domain.Condition{Field: "vendor", Operator: domain.OpContains, Value: "apple"}, false, `"Dell Technologies" does not contain "apple"`},
		{"between", domain.Condition{Field: "amount", Operator: domain.OpBetween, Value: "10000", ValueMax: "20000"}, true, "15000 is between 10000 and 20000"},
		{"between outside", domain.Condition{Field: "amount", Operator: domain.OpBetween, Value: "1", ValueMax: "100"}, false, "15000 is not between 1 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := Evaluate(tt.condition, facts)
			if got != tt.want {
				t.Errorf("expected %v, got %v (%s)", tt.want, got, msg)
			}
			if msg != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestEvaluate_BetweenIsInclusive(t *testing.T) {
	c := domain.Condition{Field: "amount", Operator: domain.OpBetween, Value: "1000", ValueMax: "5000"}

	for _, amount := range []float64{1000, 5000} {
		facts := domain.ApprovalRequest{InvoiceAmount: amount}.Facts()
		if ok, msg := Evaluate(c, facts); !ok {
			t.Errorf("expected amount %.0f to pass, got %q", amount, msg)
		}
	}
}

func TestEvaluate_NumericOperatorOnText(t *testing.T) {
	facts := domain.ApprovalRequest{Department: "Legal"}.Facts()

	ok, msg := Evaluate(domain.Condition{Field: "department", Operator: domain.OpGreater, Value: "10"}, facts)

	if ok {
		t.Error("expected comparison of text against a number to fail")
	}
	if !strings.Contains(msg, "not numeric") {
		t.Errorf("expected explanation about a non-numeric value, got %q", msg)
	}
}

func TestEvaluate_NonNumericComparisonValue(t *testing.T) {
	facts := domain.ApprovalRequest{InvoiceAmount: 10}.Facts()

	ok, msg := Evaluate(domain.Condition{Field: "amount", Operator: domain.OpLess, Value: "lots"}, facts)

	if ok || !strings.Contains(msg, `"lots" is not numeric`) {
		t.Errorf("expected failure on non-numeric value, got %v %q", ok, msg)
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	facts := domain.ApprovalRequest{InvoiceAmount: 10}.Facts()

	ok, msg := Evaluate(domain.Condition{Field: "amount", Operator: "~=", Value: "10"}, facts)

	if ok {
		t.Error("expected unknown operator to fail")
	}
	if msg != `unrecognized operator "~="` {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestEvaluate_UnknownField(t *testing.T) {
	ok, msg := Evaluate(domain.Condition{Field: "currency", Operator: domain.OpEqual, Value: "USD"}, domain.FactSheet{})

	if ok || msg != `unknown field "currency"` {
		t.Errorf("expected unknown field failure, got %v %q", ok, msg)
	}
}
