package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"hydronet/internal/aggregation"
	"hydronet/internal/attribute"
	"hydronet/internal/codec"
	"hydronet/internal/domain"
	"hydronet/internal/service"
	"hydronet/internal/topology"
)

// maxBodyBytes bounds decoded request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AttributeResponse is one resolved attribute of an element
type AttributeResponse struct {
	Value   any                     `json:"value,omitempty"`
	Status  string                  `json:"status"`
	Unit    string                  `json:"unit,omitempty"`
	Pending attribute.DecisionBatch `json:"pending,omitempty"`
}

// ElementResponse describes one element and its attributes
type ElementResponse struct {
	GUID         string                       `json:"guid"`
	Type         domain.ElementType           `json:"type"`
	Name         string                       `json:"name,omitempty"`
	Ports        []string                     `json:"ports"`
	Constituents []string                     `json:"constituents,omitempty"`
	Aggregate    string                       `json:"aggregated_into,omitempty"`
	Attributes   map[string]AttributeResponse `json:"attributes"`
}

// AnswerResponse is returned after answers were applied
type AnswerResponse struct {
	Answered int                     `json:"answered"`
	Pending  attribute.DecisionBatch `json:"pending"`
}

// DefaultMaxPathDepth bounds path enumeration when no cap is configured
const DefaultMaxPathDepth = 16

// GraphHandler serves the topology, the decision round trip and run history
type GraphHandler struct {
	svc          *service.Simplifier
	maxPathDepth int
	logger       *slog.Logger
}

// NewGraphHandler creates a new graph handler. maxPathDepth caps the hop
// count of path queries; zero selects DefaultMaxPathDepth.
func NewGraphHandler(svc *service.Simplifier, maxPathDepth int, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if maxPathDepth <= 0 {
		maxPathDepth = DefaultMaxPathDepth
	}
	return &GraphHandler{svc: svc, maxPathDepth: maxPathDepth, logger: logger}
}

// Register adds the API routes to mux
func (h *GraphHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/elements/{id}", h.GetElement)
	mux.HandleFunc("GET /api/paths", h.GetPaths)
	mux.HandleFunc("GET /api/connections", h.GetConnections)
	mux.HandleFunc("GET /api/stages", h.ListStages)
	mux.HandleFunc("POST /api/simplify", h.Simplify)
	mux.HandleFunc("GET /api/decisions", h.ListDecisions)
	mux.HandleFunc("POST /api/decisions", h.AnswerDecisions)
	mux.HandleFunc("GET /api/runs", h.ListRuns)
}

// GetGraph returns an adjacency dump of the current graph. view selects
// ports or elements, format=yaml switches the encoding.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	view, err := codec.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		h.writeError(w, "Invalid view", err.Error(), http.StatusBadRequest)
		return
	}

	var dump *codec.Dump
	err = h.svc.View(func(g *topology.Graph) error {
		dump = codec.Build(g, view)
		return nil
	})
	if err != nil {
		h.writeServiceError(w, "Failed to get graph", err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/x-yaml")
		if err := codec.NewYAMLCodec().Export(dump, w); err != nil {
			h.logger.Error("failed to export YAML", slog.Any("error", err))
		}
		return
	}
	h.writeJSON(w, dump, http.StatusOK)
}

// GetElement returns one element, current or consumed, with its resolved
// attributes
func (h *GraphHandler) GetElement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, "Invalid element ID", "Element ID is required", http.StatusBadRequest)
		return
	}

	var e *domain.Element
	err := h.svc.View(func(g *topology.Graph) error {
		e = findElement(g.Elements(), id)
		return nil
	})
	if err != nil {
		h.writeServiceError(w, "Failed to get element", err)
		return
	}
	if e == nil {
		h.writeError(w, "Not found", fmt.Sprintf("element %s not found", id), http.StatusNotFound)
		return
	}

	resp := ElementResponse{
		GUID:       e.GUID,
		Type:       e.Type,
		Name:       e.Name,
		Ports:      make([]string, len(e.Ports)),
		Attributes: make(map[string]AttributeResponse),
	}
	for i, p := range e.Ports {
		resp.Ports[i] = p.ID
	}
	for _, c := range e.Constituents() {
		resp.Constituents = append(resp.Constituents, c.GUID)
	}
	if e.AggregatedInto != nil {
		resp.Aggregate = e.AggregatedInto.GUID
	}

	schema := domain.SchemaOf(e)
	names, results := h.svc.Attributes(e)
	for _, name := range names {
		res := results[name]
		resp.Attributes[name] = AttributeResponse{
			Value:   res.Value,
			Status:  res.Status.String(),
			Unit:    schema.Unit(name),
			Pending: res.Pending,
		}
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// GetPaths lists the simple element paths between from and to. via
// restricts intermediate types, max_depth bounds the hop count and never
// exceeds the configured cap.
func (h *GraphHandler) GetPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromID, toID := q.Get("from"), q.Get("to")
	if fromID == "" || toID == "" {
		h.writeError(w, "Invalid query", "from and to are required", http.StatusBadRequest)
		return
	}
	via, err := parseTypes(q.Get("via"))
	if err != nil {
		h.writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
		return
	}
	maxDepth := h.maxPathDepth
	if v := q.Get("max_depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid query", "max_depth must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n > 0 && n < maxDepth {
			maxDepth = n
		}
	}

	var paths [][]string
	err = h.svc.View(func(g *topology.Graph) error {
		elements := g.Elements()
		from, to := findElement(elements, fromID), findElement(elements, toID)
		if from == nil || to == nil || from.AggregatedInto != nil || to.AggregatedInto != nil {
			return fmt.Errorf("%w: %s or %s", topology.ErrElementNotInGraph, fromID, toID)
		}
		for _, p := range topology.DirPathsBetween(g.ElementGraph(), from, to, via, maxDepth) {
			paths = append(paths, guids(p))
		}
		return nil
	})
	if err != nil {
		h.writeServiceError(w, "Failed to find paths", err)
		return
	}
	h.writeJSON(w, map[string]any{"paths": nonNil(paths)}, http.StatusOK)
}

// GetConnections lists the connections between elements of the wanted types
// through elements of the inert types
func (h *GraphHandler) GetConnections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wanted, err := parseTypes(q.Get("types"))
	if err != nil || wanted == nil {
		h.writeError(w, "Invalid query", "types must name at least one element type", http.StatusBadRequest)
		return
	}
	inert, err := parseTypes(q.Get("inert"))
	if err != nil {
		h.writeError(w, "Invalid query", err.Error(), http.StatusBadRequest)
		return
	}
	if inert == nil {
		inert = domain.NewTypeSet()
	}

	var conns [][]string
	err = h.svc.View(func(g *topology.Graph) error {
		for _, c := range topology.ConnectionsBetween(g.ElementGraph(), wanted, inert) {
			conns = append(conns, guids(c))
		}
		return nil
	})
	if err != nil {
		h.writeServiceError(w, "Failed to find connections", err)
		return
	}
	h.writeJSON(w, map[string]any{"connections": nonNil(conns)}, http.StatusOK)
}

// ListStages returns the pipeline stages in order
func (h *GraphHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Pipeline().Stages(), http.StatusOK)
}

// Simplify runs the pipeline on the current graph
func (h *GraphHandler) Simplify(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Simplify(r.Context())
	if err != nil {
		h.writeServiceError(w, "Simplification failed", err)
		return
	}
	h.writeJSON(w, report, http.StatusOK)
}

// ListDecisions returns the open decisions
func (h *GraphHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	pending := h.svc.Pending()
	if pending == nil {
		pending = attribute.DecisionBatch{}
	}
	h.writeJSON(w, pending, http.StatusOK)
}

// AnswerDecisions applies a map of decision key to answer
func (h *GraphHandler) AnswerDecisions(w http.ResponseWriter, r *http.Request) {
	var answers map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&answers); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if len(answers) == 0 {
		h.writeError(w, "Invalid request body", "no answers given", http.StatusBadRequest)
		return
	}

	pending, err := h.svc.Answer(r.Context(), answers)
	if err != nil {
		h.writeServiceError(w, "Failed to apply answers", err)
		return
	}
	if pending == nil {
		pending = attribute.DecisionBatch{}
	}
	h.writeJSON(w, AnswerResponse{Answered: len(answers), Pending: pending}, http.StatusOK)
}

// ListRuns returns recent runs, most recent first
func (h *GraphHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid query", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", slog.Any("error", err))
		h.writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, nonNil(runs), http.StatusOK)
}

// Helper methods

func (h *GraphHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON", slog.Any("error", err))
	}
}

func (h *GraphHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

// writeServiceError maps service and engine errors to status codes
func (h *GraphHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoGraph):
		status = http.StatusConflict
	case errors.Is(err, topology.ErrElementNotInGraph):
		status = http.StatusNotFound
	case errors.Is(err, attribute.ErrUnknownDecision), errors.Is(err, attribute.ErrInvalidAnswer):
		status = http.StatusBadRequest
	case errors.Is(err, aggregation.ErrNotAggregatable),
		errors.Is(err, aggregation.ErrOddOpenPorts),
		errors.Is(err, aggregation.ErrFlowDirectionConflict),
		errors.Is(err, aggregation.ErrNestedOriginals),
		errors.Is(err, aggregation.ErrUnsupportedPattern):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.logger.Error(strings.ToLower(msg), slog.Any("error", err))
	}
	h.writeError(w, msg, err.Error(), status)
}

// findElement searches elements and, recursively, their constituents
func findElement(elements []*domain.Element, id string) *domain.Element {
	for _, e := range elements {
		if e.GUID == id {
			return e
		}
		if found := findElement(e.Constituents(), id); found != nil {
			return found
		}
	}
	return nil
}

// parseTypes reads a comma separated list of element types. An empty list
// gives a nil set.
func parseTypes(s string) (domain.TypeSet, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var types []domain.ElementType
	for _, name := range strings.Split(s, ",") {
		t, err := domain.ParseElementType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return domain.NewTypeSet(types...), nil
}

func guids(elements []*domain.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.GUID
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
