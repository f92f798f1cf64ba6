package graph

import (
	"invoice_router/internal/domain"

	"github.com/google/uuid"
)

type IDFunc func() string

// FromParsedRule lays a compiled rule out as one chain: trigger, then the
// conditions in order, then the actions in order.
func FromParsedRule(id, name string, rule *domain.ParsedRule, newID IDFunc) (*Graph, error) {
	if newID == nil {
		newID = uuid.NewString
	}

	g := New(id, name)

	eventType := rule.Trigger.EventType
	if eventType == "" {
		eventType = domain.EventInvoiceReceived
	}
	trigger := domain.NewTriggerNode(newID(), eventType)
	trigger.Trigger.Description = rule.Trigger.Description
	if err := g.AddNode(trigger); err != nil {
		return nil, err
	}

	previous := trigger.ID
	link := func(n *domain.Node) error {
		if err := g.AddNode(n); err != nil {
			return err
		}
		if err := g.Connect(previous, n.ID); err != nil {
			return err
		}
		previous = n.ID
		return nil
	}

	for _, c := range rule.Conditions {
		if err := link(domain.NewConditionNode(newID(), c)); err != nil {
			return nil, err
		}
	}
	for _, a := range rule.Actions {
		if err := link(domain.NewActionNode(newID(), a)); err != nil {
			return nil, err
		}
	}

	return g, nil
}
