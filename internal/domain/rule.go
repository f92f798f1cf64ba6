package domain

import (
	"fmt"
	"strings"
)

type NodeKind string

const (
	KindTrigger   NodeKind = "trigger"
	KindCondition NodeKind = "condition"
	KindAction    NodeKind = "action"
)

type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpContains     Operator = "contains"
	OpBetween      Operator = "between"
)

type ActionKind string

const (
	ActionRouteToUser       ActionKind = "route-to-user"
	ActionDynamicAssignment ActionKind = "dynamic-assignment"
	ActionSendNotification  ActionKind = "send-notification"
	ActionApprove           ActionKind = "approve"
)

type Strategy string

const (
	StrategyManagerLookup  Strategy = "manager-lookup"
	StrategyRoundRobin     Strategy = "round-robin"
	StrategyLoadBalance    Strategy = "load-balance"
	StrategyHierarchical   Strategy = "hierarchical"
	StrategyDepartmentHead Strategy = "department-head"
)

// Strategy parameter keys.
const (
	ParamTeam             = "team"
	ParamTargetDepartment = "target_department"
)

const (
	EventInvoiceReceived = "invoice-received"

	FieldAmount     = "amount"
	FieldDepartment = "department"
	FieldVendor     = "vendor"
	FieldCategory   = "category"
	FieldProject    = "project"
)

type Trigger struct {
	EventType   string `json:"event_type" yaml:"event_type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value" yaml:"value"`
	ValueMax string   `json:"value_max,omitempty" yaml:"value_max,omitempty"`
}

func (c Condition) Describe() string {
	value, valueMax := c.Value, c.ValueMax
	if c.Field == FieldAmount {
		value, valueMax = "$"+value, "$"+valueMax
	}

	switch c.Operator {
	case OpGreater:
		return fmt.Sprintf("%s is greater than %s", c.Field, value)
	case OpLess:
		return fmt.Sprintf("%s is less than %s", c.Field, value)
	case OpGreaterEqual:
		return fmt.Sprintf("%s is at least %s", c.Field, value)
	case OpLessEqual:
		return fmt.Sprintf("%s is at most %s", c.Field, value)
	case OpEqual:
		return fmt.Sprintf("%s equals %q", c.Field, c.Value)
	case OpNotEqual:
		return fmt.Sprintf("%s does not equal %q", c.Field, c.Value)
	case OpContains:
		return fmt.Sprintf("%s contains %q", c.Field, c.Value)
	case OpBetween:
		return fmt.Sprintf("%s is between %s and %s", c.Field, value, valueMax)
	default:
		return fmt.Sprintf("%s %s %s", c.Field, c.Operator, c.Value)
	}
}

type Action struct {
	Kind           ActionKind        `json:"action_kind" yaml:"action_kind"`
	Target         string            `json:"target,omitempty" yaml:"target,omitempty"`
	Strategy       Strategy          `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	StrategyParams map[string]string `json:"strategy_params,omitempty" yaml:"strategy_params,omitempty"`
	Message        string            `json:"message,omitempty" yaml:"message,omitempty"`
	Reason         string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Priority       string            `json:"priority,omitempty" yaml:"priority,omitempty"`
}

func (a Action) Param(key string) string {
	if a.StrategyParams == nil {
		return ""
	}
	return a.StrategyParams[key]
}

func (a *Action) SetParam(key, value string) {
	if a.StrategyParams == nil {
		a.StrategyParams = make(map[string]string)
	}
	a.StrategyParams[key] = value
}

func (a Action) Describe() string {
	switch a.Kind {
	case ActionRouteToUser:
		return "route to " + a.Target
	case ActionSendNotification:
		return "notify " + a.Target
	case ActionApprove:
		return "automatically approve"
	case ActionDynamicAssignment:
		desc := fmt.Sprintf("assign an approver by %s", a.Strategy)
		if team := a.Param(ParamTeam); team != "" {
			desc += " within team " + team
		}
		if dept := a.Param(ParamTargetDepartment); dept != "" {
			desc += " for " + dept
		}
		return desc
	default:
		return string(a.Kind)
	}
}

// Node is a tagged variant: exactly one of Trigger, Condition or Action is
// set. Consumers dispatch on it through Accept so that every kind must be
// handled.
type Node struct {
	ID        string     `json:"id" yaml:"id"`
	Label     string     `json:"label,omitempty" yaml:"label,omitempty"`
	Trigger   *Trigger   `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Action    *Action    `json:"action,omitempty" yaml:"action,omitempty"`
}

type NodeVisitor interface {
	VisitTrigger(n *Node, t *Trigger)
	VisitCondition(n *Node, c *Condition)
	VisitAction(n *Node, a *Action)
}

func NewTriggerNode(id, eventType string) *Node {
	return &Node{ID: id, Label: "Invoice Received", Trigger: &Trigger{EventType: eventType}}
}

func NewConditionNode(id string, c Condition) *Node {
	return &Node{ID: id, Label: conditionLabel(c.Field), Condition: &c}
}

func NewActionNode(id string, a Action) *Node {
	return &Node{ID: id, Label: actionLabel(a.Kind), Action: &a}
}

// Kind returns the variant tag, or "" when the node does not carry exactly
// one body.
func (n *Node) Kind() NodeKind {
	if !n.Valid() {
		return ""
	}
	switch {
	case n.Trigger != nil:
		return KindTrigger
	case n.Condition != nil:
		return KindCondition
	default:
		return KindAction
	}
}

func (n *Node) Valid() bool {
	set := 0
	if n.Trigger != nil {
		set++
	}
	if n.Condition != nil {
		set++
	}
	if n.Action != nil {
		set++
	}
	return set == 1
}

// Accept dispatches the node to the matching visitor method. It reports
// false for a malformed node.
func (n *Node) Accept(v NodeVisitor) bool {
	switch n.Kind() {
	case KindTrigger:
		v.VisitTrigger(n, n.Trigger)
	case KindCondition:
		v.VisitCondition(n, n.Condition)
	case KindAction:
		v.VisitAction(n, n.Action)
	default:
		return false
	}
	return true
}

// Clone returns a deep copy so callers can hand out nodes without sharing
// mutable bodies.
func (n *Node) Clone() *Node {
	c := &Node{ID: n.ID, Label: n.Label}
	if n.Trigger != nil {
		t := *n.Trigger
		c.Trigger = &t
	}
	if n.Condition != nil {
		cond := *n.Condition
		c.Condition = &cond
	}
	if n.Action != nil {
		a := *n.Action
		if n.Action.StrategyParams != nil {
			a.StrategyParams = make(map[string]string, len(n.Action.StrategyParams))
			for k, v := range n.Action.StrategyParams {
				a.StrategyParams[k] = v
			}
		}
		c.Action = &a
	}
	return c
}

func conditionLabel(field string) string {
	if field == "" {
		return "Condition"
	}
	return strings.ToUpper(field[:1]) + field[1:] + " Check"
}

func actionLabel(kind ActionKind) string {
	switch kind {
	case ActionRouteToUser:
		return "Route to User"
	case ActionDynamicAssignment:
		return "Dynamic Assignment"
	case ActionSendNotification:
		return "Send Notification"
	case ActionApprove:
		return "Auto Approve"
	default:
		return "Action"
	}
}
