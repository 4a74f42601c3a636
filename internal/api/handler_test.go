package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/pipeline"
	"github.com/shopqa/shopqa/internal/query"
	"github.com/shopqa/shopqa/internal/schema"
)

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "shopqa" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{
		Readiness: func(context.Context) error { return errors.New("database down") },
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{Schema: schema.Description, Tables: schema.Tables()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["schema"] != schema.Description() {
		t.Fatalf("schema = %v", body["schema"])
	}
	if tables, _ := body["tables"].([]any); len(tables) != 5 {
		t.Fatalf("tables = %v", body["tables"])
	}
}

func TestAskReturnsOutcome(t *testing.T) {
	asker := &fakeAsker{outcome: pipeline.Outcome{
		Question: "How many customers do we have?",
		SQLQuery: "SELECT COUNT(*) AS n FROM customers",
		Results:  query.Succeeded([]string{"n"}, []query.Row{{{Column: "n", Value: int64(1000)}}}),
		Answer:   "There are 1000 customers.",
	}}
	h := NewHandler(loadConfig(t), Dependencies{Asker: asker})

	rr := postAsk(t, h, `{"question":"  How many customers do we have?  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if asker.questions[0] != "How many customers do we have?" {
		t.Fatalf("question = %q", asker.questions[0])
	}
	want := `{"question":"How many customers do we have?","sql_query":"SELECT COUNT(*) AS n FROM customers","results":[{"n":1000}],"answer":"There are 1000 customers."}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("body = %s\nwant %s", got, want)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	asker := &fakeAsker{}
	h := NewHandler(loadConfig(t), Dependencies{Asker: asker})

	rr := postAsk(t, h, `{"question":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "QUESTION_REQUIRED" {
		t.Fatalf("body = %v", body)
	}
	if len(asker.questions) != 0 {
		t.Fatal("empty question reached the pipeline")
	}
}

func TestAskRejectsInvalidJSON(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{Asker: &fakeAsker{}})
	for _, payload := range []string{`{"question":`, `{"question":"q","extra":1}`} {
		rr := postAsk(t, h, payload)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %s status = %d", payload, rr.Code)
		}
		if body := decodeBody(t, rr); body["error_code"] != "INVALID_JSON" {
			t.Fatalf("body = %v", body)
		}
	}
}

func TestAskMapsGenerationFailureTo502(t *testing.T) {
	asker := &fakeAsker{outcome: pipeline.Outcome{
		Question: "q",
		Err:      fmt.Errorf("error processing question: %w", &pipeline.GenerationError{Stage: "sql", Err: errors.New("connection refused")}),
	}}
	h := NewHandler(loadConfig(t), Dependencies{Asker: asker})

	rr := postAsk(t, h, `{"question":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "GENERATION_FAILED" {
		t.Fatalf("body = %v", body)
	}
	if ctx, _ := body["context"].(map[string]any); ctx["question"] != "q" {
		t.Fatalf("context = %v", body["context"])
	}
}

func TestAskMapsQueryFailureTo422(t *testing.T) {
	asker := &fakeAsker{outcome: pipeline.Outcome{
		Question: "q",
		Err:      errors.New("error processing question: Error executing query: no such table"),
	}}
	h := NewHandler(loadConfig(t), Dependencies{Asker: asker})

	rr := postAsk(t, h, `{"question":"q"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "QUERY_FAILED" {
		t.Fatalf("body = %v", body)
	}
}

func TestAskWithoutPipelineIsNotImplemented(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{})
	if rr := postAsk(t, h, `{"question":"q"}`); rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "NOT_FOUND" {
		t.Fatalf("body = %v", body)
	}
}

func TestResponsesCarryTraceHeader(t *testing.T) {
	h := NewHandler(loadConfig(t), Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-Trace-ID") != "trace-123" {
		t.Fatalf("trace header = %q", rr.Header().Get("X-Trace-ID"))
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	if err := combined(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

type fakeAsker struct {
	mu        sync.Mutex
	outcome   pipeline.Outcome
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, question string) pipeline.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	return f.outcome
}

func postAsk(t *testing.T, h http.Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v body=%s", err, rr.Body.String())
	}
	return body
}

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("shopqa", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
