package domain

import "strings"

type EntityType string

const (
	EntityAmount     EntityType = "amount"
	EntityDepartment EntityType = "department"
	EntityCategory   EntityType = "category"
	EntityVendor     EntityType = "vendor"
	EntityField      EntityType = "field"
	EntityAction     EntityType = "action"
)

// ReviewThreshold is the overall confidence below which a compiled rule must
// not be applied without human confirmation.
const ReviewThreshold = 0.5

type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

type ParsedRule struct {
	Trigger    Trigger     `json:"trigger"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
	Entities   []Entity    `json:"entities"`
	Confidence float64     `json:"confidence"`
}

func (r *ParsedRule) NeedsReview() bool {
	return r.Confidence < ReviewThreshold
}

// Preview renders the rule as a single English sentence.
func (r *ParsedRule) Preview() string {
	return DescribeRule(r.Conditions, r.Actions)
}

func DescribeRule(conditions []Condition, actions []Action) string {
	var b strings.Builder
	b.WriteString("When an invoice is received, ")

	if len(conditions) > 0 {
		parts := make([]string, 0, len(conditions))
		for _, c := range conditions {
			parts = append(parts, c.Describe())
		}
		b.WriteString("if ")
		b.WriteString(strings.Join(parts, " and "))
		b.WriteString(", then ")
	}

	if len(actions) > 0 {
		parts := make([]string, 0, len(actions))
		for _, a := range actions {
			parts = append(parts, a.Describe())
		}
		b.WriteString(strings.Join(parts, " and "))
	} else {
		b.WriteString("take no action")
	}

	b.WriteString(".")
	return b.String()
}
