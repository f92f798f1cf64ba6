package api

import (
	"context"
	"encoding/json"
	"errors"
	"invoice_router/internal/assignment"
	"invoice_router/internal/compiler"
	"invoice_router/internal/domain"
	"invoice_router/internal/graph"
	"invoice_router/internal/processor"
	"invoice_router/internal/repository"
	"invoice_router/pkg/crypto"
	"invoice_router/pkg/metrics"
	"invoice_router/pkg/validator"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	signatureHeader = "X-Signature"
	maxBodyBytes    = 1 << 20
)

type APIHandler struct {
	compiler       *compiler.Compiler
	graphs         repository.GraphRepository
	simulator      *processor.Simulator
	engine         *assignment.Engine
	validator      *validator.RequestValidator
	metrics        *metrics.MetricsCollector
	signer         *crypto.Signer
	logger         *slog.Logger
	requestTimeout time.Duration
	newGraphID     func() string
}

func NewAPIHandler(
	compiler *compiler.Compiler,
	graphs repository.GraphRepository,
	simulator *processor.Simulator,
	engine *assignment.Engine,
	metrics *metrics.MetricsCollector,
	signer *crypto.Signer,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		compiler:       compiler,
		graphs:         graphs,
		simulator:      simulator,
		engine:         engine,
		validator:      validator.NewRequestValidator(),
		metrics:        metrics,
		signer:         signer,
		logger:         logger,
		requestTimeout: 30 * time.Second,
		newGraphID:     uuid.NewString,
	}
}

type CompileRequest struct {
	Text string `json:"text"`
}

type CompileResponse struct {
	Rule        *domain.ParsedRule `json:"rule"`
	Preview     string             `json:"preview"`
	NeedsReview bool               `json:"needs_review"`
}

// CreateGraphRequest carries either rule prose to compile or a graph
// document built in the editor.
type CreateGraphRequest struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Text  string         `json:"text,omitempty"`
	Nodes []*domain.Node `json:"nodes,omitempty"`
	Edges []graph.Edge   `json:"edges,omitempty"`
}

type GraphResponse struct {
	Graph           graph.Document     `json:"graph"`
	Valid           bool               `json:"valid"`
	ValidationError string             `json:"validation_error,omitempty"`
	Description     string             `json:"description,omitempty"`
	Compiled        *domain.ParsedRule `json:"compiled,omitempty"`
	Signature       string             `json:"signature"`
}

type SetPropertyRequest struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type AssignRequest struct {
	Strategy domain.Strategy        `json:"strategy"`
	Params   map[string]string      `json:"params,omitempty"`
	Request  domain.ApprovalRequest `json:"request"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) CompileHandler(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	rule := h.compiler.Compile(r.Context(), req.Text)
	h.sendJSON(w, CompileResponse{
		Rule:        rule,
		Preview:     rule.Preview(),
		NeedsReview: rule.NeedsReview(),
	}, http.StatusOK)
}

func (h *APIHandler) CreateGraphHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if sig := r.Header.Get(signatureHeader); sig != "" {
		if valid, err := h.signer.Verify(body, sig); !valid || err != nil {
			h.sendError(w, "Invalid signature", http.StatusUnauthorized, "INVALID_SIGNATURE")
			return
		}
	}

	var g *graph.Graph
	var compiled *domain.ParsedRule
	if isYAML(r.Header.Get("Content-Type")) {
		g, err = graph.DecodeYAML(body)
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
		if g.ID == "" {
			g.ID = h.newGraphID()
		}
	} else {
		var req CreateGraphRequest
		if err := json.Unmarshal(body, &req); err != nil {
			h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		if req.ID == "" {
			req.ID = h.newGraphID()
		}

		if strings.TrimSpace(req.Text) != "" {
			compiled = h.compiler.Compile(ctx, req.Text)
			g, err = graph.FromParsedRule(req.ID, req.Name, compiled, nil)
		} else {
			g, err = graph.FromDocument(graph.Document{ID: req.ID, Name: req.Name, Nodes: req.Nodes, Edges: req.Edges})
		}
		if err != nil {
			h.sendDomainError(w, err)
			return
		}
	}

	for _, n := range g.Nodes() {
		if err := h.validator.ValidateNode(n); err != nil {
			h.sendDomainError(w, err)
			return
		}
	}

	doc, err := graph.EncodeJSON(g)
	if err != nil {
		h.sendError(w, "Failed to encode graph", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}
	if err := h.graphs.Save(ctx, g.ID, doc); err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "Rule graph created",
		slog.String("graph_id", g.ID),
		slog.Int("nodes", g.Len()),
		slog.Bool("compiled", compiled != nil))

	resp := h.graphResponse(g, doc)
	resp.Compiled = compiled
	h.sendGraph(w, resp, http.StatusCreated)
}

func (h *APIHandler) ListGraphsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := h.graphs.List(r.Context())
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendJSON(w, map[string][]string{"graphs": ids}, http.StatusOK)
}

func (h *APIHandler) GetGraphHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	g, doc, err := h.loadGraph(ctx, r.PathValue("id"))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		out, err := graph.EncodeYAML(g)
		if err != nil {
			h.sendError(w, "Failed to encode graph", http.StatusInternalServerError, "SERVER_ERROR")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set(signatureHeader, h.signer.Sign(out))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	h.sendGraph(w, h.graphResponse(g, doc), http.StatusOK)
}

func (h *APIHandler) DeleteGraphHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.graphs.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) DescribeGraphHandler(w http.ResponseWriter, r *http.Request) {
	g, _, err := h.loadGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	description, err := graph.Describe(g)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendJSON(w, map[string]string{"description": description}, http.StatusOK)
}

func (h *APIHandler) AddNodeHandler(w http.ResponseWriter, r *http.Request) {
	var node domain.Node
	if err := h.decode(r, &node); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if node.Valid() {
		if err := h.validator.ValidateNode(&node); err != nil {
			h.sendDomainError(w, err)
			return
		}
	}

	h.mutateGraph(w, r, http.StatusCreated, func(g *graph.Graph) error {
		return g.AddNode(&node)
	})
}

func (h *APIHandler) SetNodePropertyHandler(w http.ResponseWriter, r *http.Request) {
	var req SetPropertyRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	nodeID := r.PathValue("node")
	h.mutateGraph(w, r, http.StatusOK, func(g *graph.Graph) error {
		if err := g.SetProperty(nodeID, req.Property, req.Value); err != nil {
			return err
		}
		n, _ := g.Node(nodeID)
		return h.validator.ValidateNode(n)
	})
}

func (h *APIHandler) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node")
	h.mutateGraph(w, r, http.StatusOK, func(g *graph.Graph) error {
		return g.RemoveNode(nodeID)
	})
}

func (h *APIHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var edge graph.Edge
	if err := h.decode(r, &edge); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	h.mutateGraph(w, r, http.StatusCreated, func(g *graph.Graph) error {
		return g.Connect(edge.Source, edge.Target)
	})
}

func (h *APIHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	var edge graph.Edge
	if err := h.decode(r, &edge); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	h.mutateGraph(w, r, http.StatusOK, func(g *graph.Graph) error {
		return g.Disconnect(edge.Source, edge.Target)
	})
}

func (h *APIHandler) SimulateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req domain.ApprovalRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validator.ValidateRequest(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	g, _, err := h.loadGraph(ctx, r.PathValue("id"))
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	trace, err := h.simulator.Run(ctx, g, req, nil)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	signature, err := h.signer.SignTrace(trace)
	if err != nil {
		h.sendError(w, "Failed to sign trace", http.StatusInternalServerError, "SERVER_ERROR")
		return
	}
	trace.Signature = signature
	w.Header().Set(signatureHeader, signature)

	h.sendJSON(w, trace, http.StatusOK)
}

func (h *APIHandler) AssignHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req AssignRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validator.ValidateRequest(req.Request); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	result, err := h.engine.Assign(ctx, req.Strategy, req.Params, req.Request)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}
	h.sendJSON(w, result, http.StatusOK)
}

func (h *APIHandler) ResetCursorHandler(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")
	if err := h.engine.ResetCursor(r.Context(), team); err != nil {
		h.sendDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCursorReset(team)
	}
	h.sendJSON(w, map[string]string{"team": team, "status": "reset"}, http.StatusOK)
}

func (h *APIHandler) PresetsHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, domain.Presets(), http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	h.sendJSON(w, response, http.StatusOK)
}

// mutateGraph applies fn to the stored graph under the repository's
// update lock. A failing fn leaves the stored document unchanged.
func (h *APIHandler) mutateGraph(w http.ResponseWriter, r *http.Request, status int, fn func(*graph.Graph) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	var updated *graph.Graph
	var updatedDoc []byte
	err := h.graphs.Update(ctx, id, func(doc []byte) ([]byte, error) {
		g, err := graph.DecodeJSON(doc)
		if err != nil {
			return nil, err
		}
		if err := fn(g); err != nil {
			return nil, err
		}
		out, err := graph.EncodeJSON(g)
		if err != nil {
			return nil, err
		}
		updated, updatedDoc = g, out
		return out, nil
	})
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "Rule graph updated",
		slog.String("graph_id", id),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	h.sendGraph(w, h.graphResponse(updated, updatedDoc), status)
}

func (h *APIHandler) loadGraph(ctx context.Context, id string) (*graph.Graph, []byte, error) {
	doc, err := h.graphs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.DecodeJSON(doc)
	if err != nil {
		return nil, nil, err
	}
	return g, doc, nil
}

func (h *APIHandler) graphResponse(g *graph.Graph, doc []byte) GraphResponse {
	resp := GraphResponse{
		Graph:     g.Document(),
		Valid:     true,
		Signature: h.signer.Sign(doc),
	}
	if err := g.Validate(); err != nil {
		resp.Valid = false
		resp.ValidationError = err.Error()
		return resp
	}
	if description, err := graph.Describe(g); err == nil {
		resp.Description = description
	}
	return resp
}

func (h *APIHandler) sendGraph(w http.ResponseWriter, resp GraphResponse, statusCode int) {
	w.Header().Set(signatureHeader, resp.Signature)
	h.sendJSON(w, resp, statusCode)
}

func (h *APIHandler) decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func isYAML(contentType string) bool {
	return strings.Contains(contentType, "yaml")
}

// sendDomainError maps the core's sentinel errors onto HTTP statuses.
func (h *APIHandler) sendDomainError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "SERVER_ERROR"

	switch {
	case errors.Is(err, assignment.ErrNoEligibleApprover):
		status, code = http.StatusUnprocessableEntity, "NO_ELIGIBLE_APPROVER"
	case errors.Is(err, assignment.ErrUnknownStrategy), errors.Is(err, assignment.ErrMissingParam):
		status, code = http.StatusBadRequest, "INVALID_STRATEGY"
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, graph.ErrDuplicateNode):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, graph.ErrNodeNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, graph.ErrNoTrigger), errors.Is(err, graph.ErrMultipleTriggers),
		errors.Is(err, graph.ErrUnreachable), errors.Is(err, graph.ErrInvalidConnection),
		errors.Is(err, graph.ErrCycle), errors.Is(err, graph.ErrNoAction),
		errors.Is(err, graph.ErrInvalidNode), errors.Is(err, graph.ErrUnknownProperty):
		status, code = http.StatusUnprocessableEntity, "GRAPH_INVALID"
	case errors.Is(err, validator.ErrInvalidCondition), errors.Is(err, validator.ErrInvalidAction):
		status, code = http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	}

	message := http.StatusText(status)
	details := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", slog.String("error", details))
		details = ""
	}

	h.writeError(w, ErrorResponse{Error: message, Code: code, Details: details}, status)
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	h.writeError(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

func (h *APIHandler) writeError(w http.ResponseWriter, resp ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)

	h.logger.Warn("API error response",
		slog.String("message", resp.Error),
		slog.String("code", resp.Code),
		slog.String("details", resp.Details),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rules/compile", h.CompileHandler)

	mux.HandleFunc("POST /api/v1/graphs", h.CreateGraphHandler)
	mux.HandleFunc("GET /api/v1/graphs", h.ListGraphsHandler)
	mux.HandleFunc("GET /api/v1/graphs/{id}", h.GetGraphHandler)
	mux.HandleFunc("DELETE /api/v1/graphs/{id}", h.DeleteGraphHandler)
	mux.HandleFunc("GET /api/v1/graphs/{id}/describe", h.DescribeGraphHandler)
	mux.HandleFunc("POST /api/v1/graphs/{id}/nodes", h.AddNodeHandler)
	mux.HandleFunc("PATCH /api/v1/graphs/{id}/nodes/{node}", h.SetNodePropertyHandler)
	mux.HandleFunc("DELETE /api/v1/graphs/{id}/nodes/{node}", h.DeleteNodeHandler)
	mux.HandleFunc("POST /api/v1/graphs/{id}/edges", h.ConnectHandler)
	mux.HandleFunc("DELETE /api/v1/graphs/{id}/edges", h.DisconnectHandler)
	mux.HandleFunc("POST /api/v1/graphs/{id}/simulate", h.SimulateHandler)

	mux.HandleFunc("POST /api/v1/assign", h.AssignHandler)
	mux.HandleFunc("POST /api/v1/admin/teams/{team}/cursor/reset", h.ResetCursorHandler)
	mux.HandleFunc("GET /api/v1/presets", h.PresetsHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}

