package compiler

import (
	"context"
	"invoice_router/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conditionOn(rule *domain.ParsedRule, field string) (domain.Condition, bool) {
	for _, c := range rule.Conditions {
		if c.Field == field {
			return c, true
		}
	}
	return domain.Condition{}, false
}

func TestParse_DepartmentQualifiedRouting(t *testing.T) {
	rule := Parse("Route Engineering invoices over $15,000 to CTO for approval")

	dept, ok := conditionOn(rule, domain.FieldDepartment)
	require.True(t, ok)
	assert.Equal(t, domain.Condition{Field: "department", Operator: domain.OpEqual, Value: "Engineering"}, dept)

	amount, ok := conditionOn(rule, domain.FieldAmount)
	require.True(t, ok)
	assert.Equal(t, domain.OpGreater, amount.Operator)
	assert.Equal(t, "15000", amount.Value)

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.ActionRouteToUser, rule.Actions[0].Kind)
	assert.Contains(t, rule.Actions[0].Target, "CTO")

	assert.GreaterOrEqual(t, rule.Confidence, 0.85)
	assert.False(t, rule.NeedsReview())
	assert.Equal(t, domain.EventInvoiceReceived, rule.Trigger.EventType)
}

func TestParse_ConditionsInsideRoutingClause(t *testing.T) {
	tests := []struct {
		text       string
		conditions []domain.Condition
		target     string
	}{
		{
			text: "Route Engineering invoices over $15,000 to CTO for approval",
			conditions: []domain.Condition{
				{Field: "department", Operator: domain.OpEqual, Value: "Engineering"},
				{Field: "amount", Operator: domain.OpGreater, Value: "15000"},
			},
			target: "CTO",
		},
		{
			text: "Send Legal invoices under 5k to Sarah Johnson",
			conditions: []domain.Condition{
				{Field: "department", Operator: domain.OpEqual, Value: "Legal"},
				{Field: "amount", Operator: domain.OpLess, Value: "5000"},
			},
			target: "Sarah Johnson",
		},
		{
			text: "Route invoices between $1,000 and $5,000 to the Finance team",
			conditions: []domain.Condition{
				{Field: "amount", Operator: domain.OpBetween, Value: "1000", ValueMax: "5000"},
			},
		},
		{
			text: "Route software invoices from Acme Corp to CFO",
			conditions: []domain.Condition{
				{Field: "category", Operator: domain.OpEqual, Value: "Software"},
				{Field: "vendor", Operator: domain.OpEqual, Value: "Acme Corp"},
			},
			target: "CFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rule := Parse(tt.text)

			assert.ElementsMatch(t, tt.conditions, rule.Conditions)
			require.Len(t, rule.Actions, 1)
			if tt.target != "" {
				assert.Equal(t, tt.target, rule.Actions[0].Target)
			}
		})
	}
}

func TestParse_RoutingQualifierLeavesTeamTarget(t *testing.T) {
	rule := Parse("Route invoices between $1,000 and $5,000 to the Finance team")

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.StrategyRoundRobin, rule.Actions[0].Strategy)
	assert.Equal(t, "finance-team", rule.Actions[0].Param(domain.ParamTeam))
	_, hasDept := conditionOn(rule, domain.FieldDepartment)
	assert.False(t, hasDept)
}

func TestParse_NoVocabulary(t *testing.T) {
	for _, text := range []string{"", "   ", "please look at this", "hello world"} {
		rule := Parse(text)

		assert.Empty(t, rule.Entities, text)
		assert.Empty(t, rule.Conditions, text)
		assert.Empty(t, rule.Actions, text)
		assert.Equal(t, 0.30, rule.Confidence, text)
		assert.True(t, rule.NeedsReview(), text)
	}
}

func TestParse_IsDeterministic(t *testing.T) {
	text := "Route all Legal invoices to Legal Team and Finance Manager"

	assert.Equal(t, Parse(text), Parse(text))
}

func TestParse_EntityWeights(t *testing.T) {
	rule := Parse(`If vendor contains 'Acme' and amount > $1000, route to Procurement`)

	weights := map[domain.EntityType]float64{}
	for _, e := range rule.Entities {
		weights[e.Type] = e.Confidence
	}
	assert.Equal(t, 0.95, weights[domain.EntityField])
	assert.Equal(t, 0.95, weights[domain.EntityAction])

	vendor, ok := conditionOn(rule, domain.FieldVendor)
	require.True(t, ok)
	assert.Equal(t, domain.Condition{Field: "vendor", Operator: domain.OpContains, Value: "Acme"}, vendor)

	amount, ok := conditionOn(rule, domain.FieldAmount)
	require.True(t, ok)
	assert.Equal(t, "1000", amount.Value)

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.StrategyDepartmentHead, rule.Actions[0].Strategy)
	assert.Equal(t, "Procurement", rule.Actions[0].Param(domain.ParamTargetDepartment))
	_, hasDept := conditionOn(rule, domain.FieldDepartment)
	assert.False(t, hasDept, "a department named as the target is not a condition")
}

func TestParse_AmountPhrases(t *testing.T) {
	tests := []struct {
		text     string
		operator domain.Operator
		value    string
		valueMax string
	}{
		{"invoices over 10k", domain.OpGreater, "10000", ""},
		{"anything above $2,500", domain.OpGreater, "2500", ""},
		{"greater than 15 thousand", domain.OpGreater, "15000", ""},
		{"under $500", domain.OpLess, "500", ""},
		{"less than 1.5k", domain.OpLess, "1500", ""},
		{"no more than $700", domain.OpLessEqual, "700", ""},
		{"at least 300", domain.OpGreaterEqual, "300", ""},
		{"between $1,000 and $5k", domain.OpBetween, "1000", "5000"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rule := Parse(tt.text)

			require.Len(t, rule.Conditions, 1)
			c := rule.Conditions[0]
			assert.Equal(t, domain.FieldAmount, c.Field)
			assert.Equal(t, tt.operator, c.Operator)
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.valueMax, c.ValueMax)
			require.Len(t, rule.Entities, 1)
			assert.Equal(t, 0.90, rule.Entities[0].Confidence)
		})
	}
}

func TestParse_AutoApprove(t *testing.T) {
	rule := Parse("Auto-approve invoices under $500 from trusted vendors")

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.ActionApprove, rule.Actions[0].Kind)
	require.Len(t, rule.Conditions, 1)
	assert.Equal(t, domain.OpLess, rule.Conditions[0].Operator)
	assert.Equal(t, "When an invoice is received, if amount is less than $500, then automatically approve.", rule.Preview())
}

func TestParse_ExplicitClausesAndNotify(t *testing.T) {
	rule := Parse("If amount > $5000 AND department = IT, notify IT Manager")

	assert.Equal(t, []domain.Condition{
		{Field: "amount", Operator: domain.OpGreater, Value: "5000"},
		{Field: "department", Operator: domain.OpEqual, Value: "IT"},
	}, rule.Conditions)
	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.Action{
		Kind:    domain.ActionSendNotification,
		Target:  "IT Manager",
		Message: "Approval required for invoice",
	}, rule.Actions[0])
}

func TestParse_MultipleTargets(t *testing.T) {
	rule := Parse("Route all Legal invoices to Legal Team and Finance Manager")

	assert.Equal(t, []domain.Condition{{Field: "department", Operator: domain.OpEqual, Value: "Legal"}}, rule.Conditions)
	require.Len(t, rule.Actions, 2)
	assert.Equal(t, domain.StrategyRoundRobin, rule.Actions[0].Strategy)
	assert.Equal(t, "legal-team", rule.Actions[0].Param(domain.ParamTeam))
	assert.Equal(t, domain.Action{Kind: domain.ActionRouteToUser, Target: "Finance Manager"}, rule.Actions[1])
}

func TestParse_RequireApprovalStrategies(t *testing.T) {
	tests := []struct {
		text     string
		strategy domain.Strategy
	}{
		{"Invoices between $1000 and $5000 require department head approval", domain.StrategyDepartmentHead},
		{"Software purchases require manager approval", domain.StrategyManagerLookup},
		{"Assign by approval limit", domain.StrategyHierarchical},
		{"Distribute round robin in the finance team", domain.StrategyRoundRobin},
		{"Route to the Finance team using load balancing", domain.StrategyLoadBalance},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rule := Parse(tt.text)

			require.Len(t, rule.Actions, 1)
			assert.Equal(t, domain.ActionDynamicAssignment, rule.Actions[0].Kind)
			assert.Equal(t, tt.strategy, rule.Actions[0].Strategy)
		})
	}
}

func TestParse_TeamStrategyParam(t *testing.T) {
	rule := Parse("Distribute round robin in the finance team")

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, "finance-team", rule.Actions[0].Param(domain.ParamTeam))
}

func TestParse_DuplicateDepartmentSuppressed(t *testing.T) {
	rule := Parse("Route Marketing invoices to CFO when marketing spend is high")

	count := 0
	for _, c := range rule.Conditions {
		if c.Field == domain.FieldDepartment {
			count++
			assert.Equal(t, "Marketing", c.Value)
		}
	}
	assert.Equal(t, 1, count)
}

func TestParse_PronounIsNotADepartment(t *testing.T) {
	rule := Parse("send it to CFO")

	_, hasDept := conditionOn(rule, domain.FieldDepartment)
	assert.False(t, hasDept)
	require.Len(t, rule.Actions, 1)
	assert.Equal(t, "CFO", rule.Actions[0].Target)
}

func TestParse_CategoryAndVendor(t *testing.T) {
	rule := Parse("Invoices for office supplies from Staples Inc over $200 go to Finance Manager")

	category, ok := conditionOn(rule, domain.FieldCategory)
	require.True(t, ok)
	assert.Equal(t, "Office Supplies", category.Value)

	vendor, ok := conditionOn(rule, domain.FieldVendor)
	require.True(t, ok)
	assert.Equal(t, "Staples Inc", vendor.Value)

	for _, e := range rule.Entities {
		if e.Type == domain.EntityVendor {
			assert.Equal(t, 0.80, e.Confidence)
			assert.Equal(t, "Staples Inc", "Invoices for office supplies from Staples Inc over $200 go to Finance Manager"[e.Start:e.End])
		}
	}
}

type fakeCompileRecorder struct {
	confidences []float64
	reviews     []bool
}

func (r *fakeCompileRecorder) RecordCompile(confidence float64, needsReview bool) {
	r.confidences = append(r.confidences, confidence)
	r.reviews = append(r.reviews, needsReview)
}

func TestCompiler_Compile_Records(t *testing.T) {
	recorder := &fakeCompileRecorder{}
	c := NewCompiler(recorder, nil)

	c.Compile(context.Background(), "Route Marketing invoices over $10,000 to CFO")
	c.Compile(context.Background(), "nothing to see")

	assert.Equal(t, []float64{0.85, 0.30}, recorder.confidences)
	assert.Equal(t, []bool{false, true}, recorder.reviews)
}

func TestPassNames_Order(t *testing.T) {
	names := PassNames()

	require.NotEmpty(t, names)
	assert.Equal(t, "explicit_field", names[0])
	assert.Equal(t, "vendor", names[len(names)-1])
}
