package graph

import (
	"fmt"
	"invoice_router/internal/domain"
	"slices"
)

type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Graph is a rule graph: one trigger, then conditions and actions along
// directed edges. Mutations enforce the shape at insertion time. A Graph is
// owned by one caller at a time and is not safe for concurrent mutation.
type Graph struct {
	ID    string
	Name  string
	nodes map[string]*domain.Node
	order []string
	edges []Edge
}

func New(id, name string) *Graph {
	return &Graph{
		ID:    id,
		Name:  name,
		nodes: make(map[string]*domain.Node),
	}
}

// allowedConnections lists the kinds each node may feed. Condition→Condition
// and Action→Action let a compiled rule with several conditions or several
// actions lay out as one chain.
var allowedConnections = map[domain.NodeKind][]domain.NodeKind{
	domain.KindTrigger:   {domain.KindCondition, domain.KindAction},
	domain.KindCondition: {domain.KindCondition, domain.KindAction},
	domain.KindAction:    {domain.KindAction},
}

func (g *Graph) AddNode(n *domain.Node) error {
	if n == nil || n.ID == "" {
		return newError(ErrInvalidNode, "", "node id is required")
	}
	if !n.Valid() {
		return newError(ErrInvalidNode, n.ID, "")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return newError(ErrDuplicateNode, n.ID, "")
	}
	if n.Kind() == domain.KindTrigger && g.triggerCount() > 0 {
		return newError(ErrMultipleTriggers, n.ID, "")
	}

	g.insert(n.Clone())
	return nil
}

// RemoveNode deletes the node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	if _, exists := g.nodes[id]; !exists {
		return newError(ErrNodeNotFound, id, "")
	}

	delete(g.nodes, id)
	g.order = slices.DeleteFunc(g.order, func(v string) bool { return v == id })
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool {
		return e.Source == id || e.Target == id
	})
	return nil
}

func (g *Graph) Connect(source, target string) error {
	src, ok := g.nodes[source]
	if !ok {
		return newError(ErrNodeNotFound, source, "connection source")
	}
	dst, ok := g.nodes[target]
	if !ok {
		return newError(ErrNodeNotFound, target, "connection target")
	}
	if g.triggerCount() > 1 {
		return newError(ErrMultipleTriggers, "", "")
	}

	if !slices.Contains(allowedConnections[src.Kind()], dst.Kind()) {
		return newError(ErrInvalidConnection, target,
			fmt.Sprintf("%s cannot connect to %s", src.Kind(), dst.Kind()))
	}
	if source == target || g.hasPath(target, source) {
		return newError(ErrCycle, target, fmt.Sprintf("from %s", source))
	}
	for _, e := range g.edges {
		if e.Target == target {
			return newError(ErrInvalidConnection, target,
				fmt.Sprintf("already connected from %s", e.Source))
		}
	}

	g.edges = append(g.edges, Edge{Source: source, Target: target})
	return nil
}

func (g *Graph) Disconnect(source, target string) error {
	before := len(g.edges)
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool {
		return e.Source == source && e.Target == target
	})
	if len(g.edges) == before {
		return newError(ErrInvalidConnection, target, fmt.Sprintf("no edge from %s", source))
	}
	return nil
}

// Node returns a copy of the node; use SetProperty to change it.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Nodes returns copies in insertion order.
func (g *Graph) Nodes() []*domain.Node {
	result := make([]*domain.Node, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.nodes[id].Clone())
	}
	return result
}

func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) Trigger() (*domain.Node, error) {
	var found *domain.Node
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind() != domain.KindTrigger {
			continue
		}
		if found != nil {
			return nil, newError(ErrMultipleTriggers, n.ID, "")
		}
		found = n
	}
	if found == nil {
		return nil, ErrNoTrigger
	}
	return found.Clone(), nil
}

// Next follows the first outgoing edge of id, in insertion order.
func (g *Graph) Next(id string) (*domain.Node, bool) {
	for _, e := range g.edges {
		if e.Source != id {
			continue
		}
		if n, ok := g.nodes[e.Target]; ok {
			return n.Clone(), true
		}
	}
	return nil, false
}

// Path lists the nodes visited from the trigger along first edges.
func (g *Graph) Path() ([]*domain.Node, error) {
	trigger, err := g.Trigger()
	if err != nil {
		return nil, err
	}

	path := []*domain.Node{trigger}
	visited := map[string]bool{trigger.ID: true}
	current := trigger.ID
	for {
		next, ok := g.Next(current)
		if !ok || visited[next.ID] {
			return path, nil
		}
		visited[next.ID] = true
		path = append(path, next)
		current = next.ID
	}
}

// Validate reports the first structural problem found, checking in order:
// trigger count, edge endpoints and pairings, cycles, reachability, and
// the presence of an action.
func (g *Graph) Validate() error {
	switch g.triggerCount() {
	case 0:
		return ErrNoTrigger
	case 1:
	default:
		return newError(ErrMultipleTriggers, "", fmt.Sprintf("%d triggers", g.triggerCount()))
	}

	incoming := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		src, ok := g.nodes[e.Source]
		if !ok {
			return newError(ErrNodeNotFound, e.Source, "dangling edge source")
		}
		dst, ok := g.nodes[e.Target]
		if !ok {
			return newError(ErrNodeNotFound, e.Target, "dangling edge target")
		}
		if !slices.Contains(allowedConnections[src.Kind()], dst.Kind()) {
			return newError(ErrInvalidConnection, e.Target,
				fmt.Sprintf("%s cannot connect to %s", src.Kind(), dst.Kind()))
		}
		incoming[e.Target]++
		if incoming[e.Target] > 1 {
			return newError(ErrInvalidConnection, e.Target, "more than one incoming edge")
		}
	}

	for _, e := range g.edges {
		if e.Source == e.Target || g.hasPath(e.Target, e.Source) {
			return newError(ErrCycle, e.Target, fmt.Sprintf("from %s", e.Source))
		}
	}

	trigger, _ := g.Trigger()
	reachable := g.reachableFrom(trigger.ID)
	hasAction := false
	for _, id := range g.order {
		if !reachable[id] {
			return newError(ErrUnreachable, id, "")
		}
		if g.nodes[id].Kind() == domain.KindAction {
			hasAction = true
		}
	}
	if !hasAction {
		return ErrNoAction
	}

	return nil
}

func (g *Graph) insert(n *domain.Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

func (g *Graph) triggerCount() int {
	count := 0
	for _, n := range g.nodes {
		if n.Kind() == domain.KindTrigger {
			count++
		}
	}
	return count
}

func (g *Graph) hasPath(from, to string) bool {
	return g.reachableFrom(from)[to]
}

func (g *Graph) reachableFrom(start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.edges {
			if e.Source == current && !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return seen
}
