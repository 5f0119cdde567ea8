package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydronet/internal/aggregation"
	"hydronet/internal/attribute"
	"hydronet/internal/codec"
	"hydronet/internal/domain"
	"hydronet/internal/loader"
	"hydronet/internal/repository"
	"hydronet/internal/repository/sqlite"
	"hydronet/internal/service"
)

const plantYAML = `
elements:
  - {id: boiler, type: Boiler, properties: {rated_power: 24}}
  - {id: pump, type: Pump, properties: {rated_power: 0.1}}
  - {id: dist, type: Distributor, port_count: 6}
  - {id: gs1, type: Pipe}
  - {id: gs2, type: Pipe}
  - {id: gr1, type: Pipe}
  - {id: gr2, type: Pipe}
  - {id: a0, type: Pipe}
  - {id: a1, type: Pipe}
  - {id: rada, type: SpaceHeater, properties: {rated_power: 1.5, flow_temperature: 70}}
  - {id: a2, type: Pipe}
  - {id: a3, type: Pipe}
  - {id: b0, type: Pipe}
  - {id: b1, type: Pipe}
  - {id: radb, type: SpaceHeater, properties: {rated_power: 1.5, flow_temperature: 70}}
  - {id: b2, type: Pipe}
  - {id: b3, type: Pipe}
chains:
  - [boiler, gs1, pump, gs2]
  - [gr1, gr2, boiler]
  - [a0, a1, rada, a2, a3]
  - [b0, b1, radb, b2, b3]
connections:
  - {from: "gs2:1", to: "dist:0"}
  - {from: "dist:1", to: "gr1:0"}
  - {from: "dist:2", to: "a0:0"}
  - {from: "a3:1", to: "dist:3"}
  - {from: "dist:4", to: "b0:0"}
  - {from: "b3:1", to: "dist:5"}
`

type testServer struct {
	svc  *service.Simplifier
	mux  *http.ServeMux
	repo *sqlite.Repository
}

func newTestServer(t *testing.T, load bool) *testServer {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	resolver := attribute.NewResolver(domain.SchemaOf, nil)
	pipeline := aggregation.DefaultPipeline(resolver, aggregation.DefaultOptions(), nil)
	svc := service.NewSimplifier(pipeline, resolver, repo, nil, nil, nil)
	if load {
		g, _, err := loader.ParseYAML([]byte(plantYAML))
		require.NoError(t, err)
		svc.Load(g, "plant.yaml")
	}

	mux := http.NewServeMux()
	NewGraphHandler(svc, 0, nil).Register(mux)
	return &testServer{svc: svc, mux: mux, repo: repo}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetGraph(t *testing.T) {
	t.Run("no topology", func(t *testing.T) {
		s := newTestServer(t, false)
		w := s.do(t, http.MethodGet, "/api/graph", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, decode[ErrorResponse](t, w).Details, "no topology loaded")
	})

	s := newTestServer(t, true)

	tests := []struct {
		name  string
		query string
		view  codec.View
		nodes int
	}{
		{"default is ports", "", codec.ViewPorts, 38},
		{"ports", "?view=ports", codec.ViewPorts, 38},
		{"elements", "?view=elements", codec.ViewElements, 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/graph"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			d := decode[codec.Dump](t, w)
			assert.Equal(t, tt.view, d.View)
			assert.Len(t, d.Nodes, tt.nodes)
		})
	}

	t.Run("yaml", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/graph?view=elements&format=yaml", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
		d, err := codec.NewYAMLCodec().Parse(w.Body)
		require.NoError(t, err)
		assert.Len(t, d.Nodes, 17)
	})

	t.Run("bad view", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/graph?view=cycles", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestQueries(t *testing.T) {
	s := newTestServer(t, true)

	t.Run("stages in pipeline order", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/stages", "")
		require.Equal(t, http.StatusOK, w.Code)
		stages := decode[[]aggregation.StageInfo](t, w)
		require.Len(t, stages, 6)
		assert.Equal(t, domain.TypeUnderfloorHeating, stages[0].Kind)
		assert.Equal(t, domain.TypeGeneratorOneFluid, stages[5].Kind)
		for _, st := range stages {
			assert.True(t, st.Enabled)
		}
	})

	t.Run("paths", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/paths?from=boiler&to=dist&via=Pipe,Pump", "")
		require.Equal(t, http.StatusOK, w.Code)
		paths := decode[map[string][][]string](t, w)["paths"]
		assert.ElementsMatch(t, [][]string{
			{"boiler", "gs1", "pump", "gs2", "dist"},
			{"boiler", "gr2", "gr1", "dist"},
		}, paths)
	})

	t.Run("paths bounded by depth", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/paths?from=boiler&to=dist&max_depth=3", "")
		require.Equal(t, http.StatusOK, w.Code)
		paths := decode[map[string][][]string](t, w)["paths"]
		assert.Equal(t, [][]string{{"boiler", "gr2", "gr1", "dist"}}, paths)
	})

	t.Run("paths capped by the configured depth", func(t *testing.T) {
		capped := &testServer{svc: s.svc, mux: http.NewServeMux(), repo: s.repo}
		NewGraphHandler(s.svc, 3, nil).Register(capped.mux)
		for _, target := range []string{
			"/api/paths?from=boiler&to=dist",
			"/api/paths?from=boiler&to=dist&max_depth=0",
			"/api/paths?from=boiler&to=dist&max_depth=10",
		} {
			w := capped.do(t, http.MethodGet, target, "")
			require.Equal(t, http.StatusOK, w.Code, target)
			paths := decode[map[string][][]string](t, w)["paths"]
			assert.Equal(t, [][]string{{"boiler", "gr2", "gr1", "dist"}}, paths, target)
		}
	})

	t.Run("connections", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/connections?types=Boiler,Distributor,SpaceHeater&inert=Pipe,Pump", "")
		require.Equal(t, http.StatusOK, w.Code)
		conns := decode[map[string][][]string](t, w)["connections"]
		assert.Len(t, conns, 6)
		for _, c := range conns {
			assert.GreaterOrEqual(t, len(c), 3)
		}
	})

	errs := []struct {
		name   string
		target string
		code   int
	}{
		{"paths without to", "/api/paths?from=boiler", http.StatusBadRequest},
		{"paths with unknown element", "/api/paths?from=boiler&to=nope", http.StatusNotFound},
		{"paths with unknown type", "/api/paths?from=boiler&to=dist&via=Radiator", http.StatusBadRequest},
		{"paths with negative depth", "/api/paths?from=boiler&to=dist&max_depth=-1", http.StatusBadRequest},
		{"connections without types", "/api/connections", http.StatusBadRequest},
		{"connections with unknown inert type", "/api/connections?types=Pipe&inert=Hose", http.StatusBadRequest},
		{"unknown element", "/api/elements/nope", http.StatusNotFound},
		{"bad run limit", "/api/runs?limit=x", http.StatusBadRequest},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestSimplifyAndDecide(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodPost, "/api/simplify", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[service.Report](t, w)
	assert.Equal(t, 17, report.ElementsBefore)
	assert.Equal(t, 2, report.ElementsAfter)
	require.NotEmpty(t, report.Pending)

	w = s.do(t, http.MethodGet, "/api/decisions", "")
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[attribute.DecisionBatch](t, w)
	assert.Equal(t, report.Pending.Keys(), pending.Keys())

	bad := []struct {
		name string
		body string
	}{
		{"malformed", "{"},
		{"empty", "{}"},
		{"unknown key", `{"nope/x": 1}`},
		{"wrong kind", `{"` + pending[0].Key + `": "warm"}`},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/decisions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	answers := make(map[string]any)
	for _, d := range pending {
		answers[d.Key] = 50
	}
	body, err := json.Marshal(answers)
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/api/decisions", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[AnswerResponse](t, w)
	assert.Equal(t, len(answers), resp.Answered)
	assert.Empty(t, resp.Pending)

	stored, err := s.repo.LoadAnswers(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, len(answers))

	t.Run("consumed element", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/elements/rada", "")
		require.Equal(t, http.StatusOK, w.Code)
		e := decode[ElementResponse](t, w)
		assert.Equal(t, domain.TypeSpaceHeater, e.Type)
		assert.NotEmpty(t, e.Aggregate)
		assert.Len(t, e.Ports, 2)
		power := e.Attributes["rated_power"]
		assert.Equal(t, "AVAILABLE", power.Status)
		assert.Equal(t, 1.5, power.Value)
		assert.Equal(t, domain.UnitKilowatt, power.Unit)
	})

	t.Run("runs", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/runs", "")
		require.Equal(t, http.StatusOK, w.Code)
		runs := decode[[]repository.Run](t, w)
		require.Len(t, runs, 1)
		assert.Equal(t, report.RunID, runs[0].ID)
		assert.Equal(t, "plant.yaml", runs[0].Source)
	})
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.HandleFunc("GET /panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Chain(mux, Recover(logger), CORS, Logger(logger))

	t.Run("logs status", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "request", line["msg"])
		assert.Equal(t, float64(http.StatusTeapot), line["status"])
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ok", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("recovers", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, buf.String(), "panic in HTTP handler")
	})
}
