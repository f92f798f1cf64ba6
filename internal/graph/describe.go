package graph

import (
	"invoice_router/internal/domain"
)

// Describe renders the path the simulator would walk as the same sentence a
// compiled rule previews as.
func Describe(g *Graph) (string, error) {
	path, err := g.Path()
	if err != nil {
		return "", err
	}

	var conditions []domain.Condition
	var actions []domain.Action
	for _, n := range path {
		switch n.Kind() {
		case domain.KindCondition:
			conditions = append(conditions, *n.Condition)
		case domain.KindAction:
			actions = append(actions, *n.Action)
		}
	}
	return domain.DescribeRule(conditions, actions), nil
}
