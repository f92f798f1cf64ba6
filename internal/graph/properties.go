package graph

import (
	"invoice_router/internal/domain"
)

// SetProperty applies a single editor change to a node. Property names are
// the snake_case field names of the node body, plus "team" and
// "target_department" for strategy parameters.
func (g *Graph) SetProperty(nodeID, property, value string) error {
	n, ok := g.nodes[nodeID]
	if !ok {
		return newError(ErrNodeNotFound, nodeID, "")
	}

	if property == "label" {
		n.Label = value
		return nil
	}

	var applied bool
	switch n.Kind() {
	case domain.KindTrigger:
		applied = setTriggerProperty(n.Trigger, property, value)
	case domain.KindCondition:
		applied = setConditionProperty(n.Condition, property, value)
	case domain.KindAction:
		applied = setActionProperty(n.Action, property, value)
	}
	if !applied {
		return newError(ErrUnknownProperty, nodeID, property)
	}
	return nil
}

func setTriggerProperty(t *domain.Trigger, property, value string) bool {
	switch property {
	case "event_type":
		t.EventType = value
	case "description":
		t.Description = value
	default:
		return false
	}
	return true
}

func setConditionProperty(c *domain.Condition, property, value string) bool {
	switch property {
	case "field":
		c.Field = value
	case "operator":
		c.Operator = domain.Operator(value)
	case "value":
		c.Value = value
	case "value_max":
		c.ValueMax = value
	default:
		return false
	}
	return true
}

func setActionProperty(a *domain.Action, property, value string) bool {
	switch property {
	case "action_kind":
		a.Kind = domain.ActionKind(value)
	case "target":
		a.Target = value
	case "strategy":
		a.Strategy = domain.Strategy(value)
	case domain.ParamTeam, domain.ParamTargetDepartment:
		a.SetParam(property, value)
	case "message":
		a.Message = value
	case "reason":
		a.Reason = value
	case "priority":
		a.Priority = value
	default:
		return false
	}
	return true
}
