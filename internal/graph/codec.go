package graph

import (
	"encoding/json"
	"fmt"
	"invoice_router/internal/domain"

	"gopkg.in/yaml.v3"
)

// Document is the plain-data form of a graph used for storage and transport.
type Document struct {
	ID    string         `json:"id" yaml:"id"`
	Name  string         `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []*domain.Node `json:"nodes" yaml:"nodes"`
	Edges []Edge         `json:"edges" yaml:"edges"`
}

func (g *Graph) Document() Document {
	return Document{
		ID:    g.ID,
		Name:  g.Name,
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
}

// FromDocument rebuilds a graph as stored, checking only that node ids are
// unique and every node carries one body. Shape rules are left to Validate
// so a malformed document can be loaded, inspected and reported on.
func FromDocument(doc Document) (*Graph, error) {
	g := New(doc.ID, doc.Name)
	for _, n := range doc.Nodes {
		if n == nil || n.ID == "" {
			return nil, newError(ErrInvalidNode, "", "node id is required")
		}
		if !n.Valid() {
			return nil, newError(ErrInvalidNode, n.ID, "")
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, newError(ErrDuplicateNode, n.ID, "")
		}
		g.insert(n.Clone())
	}
	g.edges = append(g.edges, doc.Edges...)
	return g, nil
}

func EncodeJSON(g *Graph) ([]byte, error) {
	return json.Marshal(g.Document())
}

func DecodeJSON(data []byte) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid graph document: %w", err)
	}
	return FromDocument(doc)
}

func EncodeYAML(g *Graph) ([]byte, error) {
	return yaml.Marshal(g.Document())
}

func DecodeYAML(data []byte) (*Graph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid graph document: %w", err)
	}
	return FromDocument(doc)
}
