package graph

import (
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) *Graph {
	t.Helper()
	g := New("g1", "High value engineering")
	require.NoError(t, g.AddNode(domain.NewTriggerNode("t", domain.EventInvoiceReceived)))
	require.NoError(t, g.AddNode(domain.NewConditionNode("c", domain.Condition{
		Field: domain.FieldAmount, Operator: domain.OpGreater, Value: "10000",
	})))
	require.NoError(t, g.AddNode(domain.NewActionNode("a", domain.Action{
		Kind: domain.ActionRouteToUser, Target: "cfo",
	})))
	require.NoError(t, g.Connect("t", "c"))
	require.NoError(t, g.Connect("c", "a"))
	return g
}

func TestGraph_Validate_Chain(t *testing.T) {
	assert.NoError(t, chain(t).Validate())
}

func TestGraph_AddNode_SecondTriggerRejected(t *testing.T) {
	g := chain(t)

	err := g.AddNode(domain.NewTriggerNode("t2", domain.EventInvoiceReceived))
	assert.ErrorIs(t, err, ErrMultipleTriggers)
	assert.Equal(t, 3, g.Len())
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := chain(t)

	err := g.AddNode(domain.NewActionNode("a", domain.Action{Kind: domain.ActionApprove}))
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestGraph_AddNode_MalformedVariant(t *testing.T) {
	g := New("g", "")

	err := g.AddNode(&domain.Node{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidNode)

	err = g.AddNode(&domain.Node{
		ID:        "y",
		Condition: &domain.Condition{Field: "amount"},
		Action:    &domain.Action{Kind: domain.ActionApprove},
	})
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestGraph_Connect_InvalidPairings(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
	}{
		{"action to condition", "a", "c2"},
		{"condition to trigger", "c", "t"},
		{"action to trigger", "a", "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain(t)
			require.NoError(t, g.AddNode(domain.NewConditionNode("c2", domain.Condition{
				Field: domain.FieldDepartment, Operator: domain.OpEqual, Value: "Legal",
			})))

			err := g.Connect(tt.source, tt.target)
			assert.ErrorIs(t, err, ErrInvalidConnection)

			var ge *GraphError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.target, ge.NodeID)
		})
	}
}

func TestGraph_Connect_ChainedConditionsAndActions(t *testing.T) {
	g := New("g2", "Legal over 5k")
	require.NoError(t, g.AddNode(domain.NewTriggerNode("t", domain.EventInvoiceReceived)))
	require.NoError(t, g.AddNode(domain.NewConditionNode("c1", domain.Condition{
		Field: domain.FieldDepartment, Operator: domain.OpEqual, Value: "Legal",
	})))
	require.NoError(t, g.AddNode(domain.NewConditionNode("c2", domain.Condition{
		Field: domain.FieldAmount, Operator: domain.OpGreater, Value: "5000",
	})))
	require.NoError(t, g.AddNode(domain.NewActionNode("a1", domain.Action{Kind: domain.ActionRouteToUser, Target: "cfo"})))
	require.NoError(t, g.AddNode(domain.NewActionNode("a2", domain.Action{Kind: domain.ActionApprove})))

	require.NoError(t, g.Connect("t", "c1"))
	require.NoError(t, g.Connect("c1", "c2"))
	require.NoError(t, g.Connect("c2", "a1"))
	require.NoError(t, g.Connect("a1", "a2"))
	assert.NoError(t, g.Validate())
}

func TestGraph_Connect_MissingEndpoint(t *testing.T) {
	g := chain(t)
	assert.ErrorIs(t, g.Connect("t", "ghost"), ErrNodeNotFound)
	assert.ErrorIs(t, g.Connect("ghost", "a"), ErrNodeNotFound)
}

func TestGraph_Connect_RejectsCycle(t *testing.T) {
	g := New("g", "")
	require.NoError(t, g.AddNode(domain.NewTriggerNode("t", domain.EventInvoiceReceived)))
	require.NoError(t, g.AddNode(domain.NewActionNode("a1", domain.Action{Kind: domain.ActionApprove})))
	require.NoError(t, g.AddNode(domain.NewActionNode("a2", domain.Action{Kind: domain.ActionApprove})))
	require.NoError(t, g.Connect("a1", "a2"))

	assert.ErrorIs(t, g.Connect("a2", "a1"), ErrCycle)
	assert.ErrorIs(t, g.Connect("a1", "a1"), ErrCycle)
}

func TestGraph_Connect_SecondIncomingEdgeRejected(t *testing.T) {
	g := chain(t)
	require.NoError(t, g.AddNode(domain.NewConditionNode("c2", domain.Condition{
		Field: domain.FieldVendor, Operator: domain.OpContains, Value: "acme",
	})))
	require.NoError(t, g.Connect("t", "c2"))

	assert.ErrorIs(t, g.Connect("c2", "a"), ErrInvalidConnection)
}

func TestGraph_RemoveNode_CascadesEdges(t *testing.T) {
	g := chain(t)

	require.NoError(t, g.RemoveNode("c"))
	assert.Empty(t, g.Edges())

	err := g.Validate()
	assert.ErrorIs(t, err, ErrUnreachable)

	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "a", ge.NodeID)

	assert.ErrorIs(t, g.RemoveNode("c"), ErrNodeNotFound)
}

func TestGraph_Disconnect(t *testing.T) {
	g := chain(t)

	require.NoError(t, g.Disconnect("c", "a"))
	assert.ErrorIs(t, g.Validate(), ErrUnreachable)
	assert.ErrorIs(t, g.Disconnect("c", "a"), ErrInvalidConnection)
}

func TestGraph_Validate_NoTrigger(t *testing.T) {
	g := New("g", "")
	require.NoError(t, g.AddNode(domain.NewActionNode("a", domain.Action{Kind: domain.ActionApprove})))

	assert.ErrorIs(t, g.Validate(), ErrNoTrigger)
}

func TestGraph_Validate_NoAction(t *testing.T) {
	g := New("g", "")
	require.NoError(t, g.AddNode(domain.NewTriggerNode("t", domain.EventInvoiceReceived)))

	assert.ErrorIs(t, g.Validate(), ErrNoAction)
}

func TestGraph_TwoTriggers_FailValidateAndConnect(t *testing.T) {
	g, err := FromDocument(Document{
		ID: "g",
		Nodes: []*domain.Node{
			domain.NewTriggerNode("t1", domain.EventInvoiceReceived),
			domain.NewTriggerNode("t2", domain.EventInvoiceReceived),
			domain.NewActionNode("a", domain.Action{Kind: domain.ActionApprove}),
		},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Validate(), ErrMultipleTriggers)
	assert.ErrorIs(t, g.Connect("t1", "a"), ErrMultipleTriggers)

	_, err = g.Trigger()
	assert.ErrorIs(t, err, ErrMultipleTriggers)
}

func TestGraph_Validate_DocumentWithDanglingEdge(t *testing.T) {
	doc := chain(t).Document()
	doc.Edges = append(doc.Edges, Edge{Source: "a", Target: "ghost"})

	g, err := FromDocument(doc)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Validate(), ErrNodeNotFound)
}

func TestGraph_Validate_DocumentWithCycle(t *testing.T) {
	doc := Document{
		Nodes: []*domain.Node{
			domain.NewTriggerNode("t", domain.EventInvoiceReceived),
			domain.NewActionNode("a1", domain.Action{Kind: domain.ActionApprove}),
			domain.NewActionNode("a2", domain.Action{Kind: domain.ActionApprove}),
		},
		Edges: []Edge{{"t", "a1"}, {"a1", "a2"}, {"a2", "a1"}},
	}

	g, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Error(t, g.Validate())
}

func TestGraph_NodeReturnsCopy(t *testing.T) {
	g := chain(t)

	n, ok := g.Node("c")
	require.True(t, ok)
	n.Condition.Value = "1"

	again, _ := g.Node("c")
	assert.Equal(t, "10000", again.Condition.Value)
}

func TestGraph_Path_FollowsFirstEdge(t *testing.T) {
	g := chain(t)
	require.NoError(t, g.AddNode(domain.NewActionNode("a2", domain.Action{Kind: domain.ActionApprove})))
	require.NoError(t, g.Connect("c", "a2"))

	path, err := g.Path()
	require.NoError(t, err)

	ids := make([]string, 0, len(path))
	for _, n := range path {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"t", "c", "a"}, ids)
}

func TestGraph_SetProperty(t *testing.T) {
	g := chain(t)

	require.NoError(t, g.SetProperty("c", "operator", "between"))
	require.NoError(t, g.SetProperty("c", "value_max", "20000"))
	require.NoError(t, g.SetProperty("a", "action_kind", string(domain.ActionDynamicAssignment)))
	require.NoError(t, g.SetProperty("a", "strategy", string(domain.StrategyRoundRobin)))
	require.NoError(t, g.SetProperty("a", "team", "finance-team"))
	require.NoError(t, g.SetProperty("t", "label", "Start"))

	c, _ := g.Node("c")
	assert.Equal(t, domain.OpBetween, c.Condition.Operator)
	assert.Equal(t, "20000", c.Condition.ValueMax)

	a, _ := g.Node("a")
	assert.Equal(t, domain.StrategyRoundRobin, a.Action.Strategy)
	assert.Equal(t, "finance-team", a.Action.Param(domain.ParamTeam))

	tr, _ := g.Node("t")
	assert.Equal(t, "Start", tr.Label)
}

func TestGraph_SetProperty_Unknown(t *testing.T) {
	g := chain(t)

	assert.ErrorIs(t, g.SetProperty("c", "strategy", "x"), ErrUnknownProperty)
	assert.ErrorIs(t, g.SetProperty("t", "value", "x"), ErrUnknownProperty)
	assert.ErrorIs(t, g.SetProperty("ghost", "label", "x"), ErrNodeNotFound)
}

func TestCodec_JSONRoundTripKeepsShape(t *testing.T) {
	g := chain(t)

	data, err := EncodeJSON(g)
	require.NoError(t, err)

	decoded, err := DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, g.Document(), decoded.Document())
	assert.NoError(t, decoded.Validate())
}

func TestCodec_YAMLDocument(t *testing.T) {
	src := []byte(`
id: legal
name: Legal review
nodes:
  - id: t
    trigger:
      event_type: invoice-received
  - id: c
    condition:
      field: department
      operator: "="
      value: Legal
  - id: a
    action:
      action_kind: dynamic-assignment
      strategy: department-head
      strategy_params:
        target_department: Legal
edges:
  - {source: t, target: c}
  - {source: c, target: a}
`)

	g, err := DecodeYAML(src)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	a, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, "Legal", a.Action.Param(domain.ParamTargetDepartment))
}

func TestCodec_DecodeRejectsDuplicateIDs(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"id":"g","nodes":[
		{"id":"a","action":{"action_kind":"approve"}},
		{"id":"a","action":{"action_kind":"approve"}}],"edges":[]}`))
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestFromParsedRule_BuildsChain(t *testing.T) {
	rule := &domain.ParsedRule{
		Trigger: domain.Trigger{EventType: domain.EventInvoiceReceived},
		Conditions: []domain.Condition{
			{Field: domain.FieldDepartment, Operator: domain.OpEqual, Value: "Engineering"},
			{Field: domain.FieldAmount, Operator: domain.OpGreater, Value: "15000"},
		},
		Actions: []domain.Action{{Kind: domain.ActionRouteToUser, Target: "CTO"}},
	}

	n := 0
	ids := func() string { n++; return fmt.Sprintf("n%d", n) }

	g, err := FromParsedRule("g", "generated", rule, ids)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	path, err := g.Path()
	require.NoError(t, err)
	require.Len(t, path, 4)
	assert.Equal(t, domain.KindTrigger, path[0].Kind())
	assert.Equal(t, "Engineering", path[1].Condition.Value)
	assert.Equal(t, "15000", path[2].Condition.Value)
	assert.Equal(t, "CTO", path[3].Action.Target)
}

func TestDescribe(t *testing.T) {
	desc, err := Describe(chain(t))
	require.NoError(t, err)
	assert.Equal(t, "When an invoice is received, if amount is greater than $10000, then route to cfo.", desc)

	_, err = Describe(New("empty", ""))
	assert.ErrorIs(t, err, ErrNoTrigger)
}
