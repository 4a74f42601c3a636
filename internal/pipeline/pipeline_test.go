package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopqa/shopqa/internal/llm"
	"github.com/shopqa/shopqa/internal/query"
)

type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply, nil
}

type fakeExecutor struct {
	result query.Result
	calls  []string
}

func (e *fakeExecutor) Execute(_ context.Context, sql string) query.Result {
	e.calls = append(e.calls, sql)
	return e.result
}

type fakeRecorder struct {
	outcomes []Outcome
	err      error
}

func (r *fakeRecorder) Record(_ context.Context, outcome Outcome) error {
	r.outcomes = append(r.outcomes, outcome)
	return r.err
}

func newTestPipeline(t *testing.T, gen *fakeGenerator, exec *fakeExecutor, opts Options) *Pipeline {
	t.Helper()
	p, err := New(Deps{
		Generator: gen,
		Executor:  exec,
		Schema:    func() string { return "Tables: customers, products" },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestAskSuccess(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		"\n```sql\nSELECT name, SUM(quantity) AS sold FROM products GROUP BY name LIMIT 5;\n```\n",
		"  Widget sold the most units.  ",
	}}
	exec := &fakeExecutor{result: query.Succeeded([]string{"name", "sold"}, []query.Row{
		{{Column: "name", Value: "Widget"}, {Column: "sold", Value: int64(42)}},
	})}
	p := newTestPipeline(t, gen, exec, Options{})

	outcome := p.Ask(context.Background(), "What are the top 5 best-selling products?")
	if outcome.Failed() {
		t.Fatalf("Ask() failed: %v", outcome.Err)
	}
	if outcome.SQLQuery != "SELECT name, SUM(quantity) AS sold FROM products GROUP BY name LIMIT 5;" {
		t.Fatalf("SQLQuery = %q", outcome.SQLQuery)
	}
	if !strings.Contains(outcome.SQLQuery, "SELECT") {
		t.Fatalf("SQLQuery = %q", outcome.SQLQuery)
	}
	if outcome.Answer != "  Widget sold the most units.  " {
		t.Fatalf("Answer = %q", outcome.Answer)
	}
	if len(exec.calls) != 1 || exec.calls[0] != outcome.SQLQuery {
		t.Fatalf("executor calls = %#v", exec.calls)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator calls = %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Given the following PostgreSQL database schema:\nTables: customers, products\n") {
		t.Fatalf("sql prompt = %q", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[0], "What are the top 5 best-selling products?") {
		t.Fatalf("sql prompt missing question: %q", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[1], "\"name\": \"Widget\"") {
		t.Fatalf("answer prompt missing formatted rows: %q", gen.prompts[1])
	}
}

func TestAskFitsAnswerPromptToBudget(t *testing.T) {
	rows := make([]query.Row, 0, 200)
	for i := 0; i < 200; i++ {
		rows = append(rows, query.Row{
			{Column: "name", Value: fmt.Sprintf("Product number %03d", i)},
			{Column: "sold", Value: int64(i)},
		})
	}
	gen := &fakeGenerator{replies: []string{"SELECT name, sold FROM products", "Lots of products."}}
	exec := &fakeExecutor{result: query.Succeeded([]string{"name", "sold"}, rows)}
	p := newTestPipeline(t, gen, exec, Options{PromptTokenBudget: 1792})

	outcome := p.Ask(context.Background(), "How much did each product sell?")
	if outcome.Failed() {
		t.Fatalf("Ask() failed: %v", outcome.Err)
	}
	if len(outcome.Results.Rows) != 200 {
		t.Fatalf("outcome rows = %d, want all 200", len(outcome.Results.Rows))
	}
	prompt := gen.prompts[1]
	if got := llm.EstimateTokens(prompt); got > 1792 {
		t.Fatalf("answer prompt is about %d tokens", got)
	}
	if !strings.Contains(prompt, "Product number 000") || strings.Contains(prompt, "Product number 199") {
		t.Fatalf("answer prompt should keep the leading rows only")
	}
	if !strings.Contains(prompt, "more rows not shown)") {
		t.Fatalf("answer prompt missing omitted-row note")
	}
}

func TestAskWithoutBudgetSendsEveryRow(t *testing.T) {
	rows := make([]query.Row, 0, 200)
	for i := 0; i < 200; i++ {
		rows = append(rows, query.Row{{Column: "n", Value: int64(i)}})
	}
	gen := &fakeGenerator{replies: []string{"SELECT n FROM t", "ok"}}
	p := newTestPipeline(t, gen, &fakeExecutor{result: query.Succeeded([]string{"n"}, rows)}, Options{})

	p.Ask(context.Background(), "q")
	if !strings.Contains(gen.prompts[1], `"n": 199`) || strings.Contains(gen.prompts[1], "not shown") {
		t.Fatalf("answer prompt was trimmed without a budget")
	}
}

func TestAskGenerationFailureSkipsDatastore(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	exec := &fakeExecutor{}
	p := newTestPipeline(t, gen, exec, Options{})

	outcome := p.Ask(context.Background(), "anything")
	if !outcome.Failed() {
		t.Fatal("expected failed outcome")
	}
	if !outcome.GenerationFailed() {
		t.Fatalf("GenerationFailed() = false for %v", outcome.Err)
	}
	if !strings.HasPrefix(outcome.Err.Error(), "error processing question: ") || !strings.Contains(outcome.Err.Error(), "model unavailable") {
		t.Fatalf("Err = %v", outcome.Err)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("datastore was called: %#v", exec.calls)
	}

	raw, err := json.Marshal(outcome)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 2 || decoded["question"] != "anything" || decoded["error"] == nil {
		t.Fatalf("outcome json = %s", raw)
	}
}

func TestAskAnswerFailure(t *testing.T) {
	gen := &scriptedGenerator{steps: []func() (string, error){
		func() (string, error) { return "SELECT 1", nil },
		func() (string, error) { return "", errors.New("context window exceeded") },
	}}
	exec := &fakeExecutor{result: query.Succeeded(nil, nil)}
	p, err := New(Deps{Generator: gen, Executor: exec}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	outcome := p.Ask(context.Background(), "q")
	if !outcome.Failed() || !outcome.GenerationFailed() {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.SQLQuery != "" || outcome.Answer != "" {
		t.Fatalf("failed outcome carries partial data: %+v", outcome)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("executor calls = %d", len(exec.calls))
	}
}

func TestAskNarratesQueryFailureByDefault(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"SELECT * FROM nope", "The query failed because the table is missing."}}
	exec := &fakeExecutor{result: query.Failed(&query.ExecutionError{Err: errors.New(`relation "nope" does not exist`)})}
	p := newTestPipeline(t, gen, exec, Options{})

	outcome := p.Ask(context.Background(), "q")
	if outcome.Failed() {
		t.Fatalf("Ask() failed: %v", outcome.Err)
	}
	if !outcome.Results.Failed() {
		t.Fatal("expected failed results to be carried")
	}
	if !strings.Contains(gen.prompts[1], `Error executing query: relation "nope" does not exist`) {
		t.Fatalf("answer prompt = %q", gen.prompts[1])
	}
	raw, _ := json.Marshal(outcome)
	if !strings.Contains(string(raw), `"results":"Error executing query: relation \"nope\" does not exist"`) {
		t.Fatalf("outcome json = %s", raw)
	}
}

func TestAskFailOnQueryErrorShortCircuits(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"SELECT * FROM nope", "unused"}}
	exec := &fakeExecutor{result: query.Failed(&query.ExecutionError{Err: errors.New("boom")})}
	p := newTestPipeline(t, gen, exec, Options{FailOnQueryError: true})

	outcome := p.Ask(context.Background(), "q")
	if !outcome.Failed() {
		t.Fatal("expected failed outcome")
	}
	if outcome.GenerationFailed() {
		t.Fatal("query failure reported as generation failure")
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("answer step should not run, generator calls = %d", len(gen.prompts))
	}
}

func TestOutcomeJSONHasExactlyOneShape(t *testing.T) {
	ok := Outcome{Question: "q", SQLQuery: "SELECT 1", Results: query.Succeeded(nil, nil), Answer: "a"}
	raw, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, has := decoded["error"]; has {
		t.Fatalf("success json has error: %s", raw)
	}
	for _, key := range []string{"question", "sql_query", "results", "answer"} {
		if _, has := decoded[key]; !has {
			t.Fatalf("success json missing %s: %s", key, raw)
		}
	}
	if _, isList := decoded["results"].([]any); !isList {
		t.Fatalf("results = %#v", decoded["results"])
	}
}

func TestAskRecordsOutcomeAndIgnoresRecorderErrors(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"SELECT 1", "one"}}
	exec := &fakeExecutor{result: query.Succeeded(nil, nil)}
	recorder := &fakeRecorder{err: errors.New("bucket missing")}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := New(Deps{Generator: gen, Executor: exec, Recorder: recorder}, Options{Now: func() time.Time { return clock }})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	outcome := p.Ask(context.Background(), "q")
	if outcome.Failed() {
		t.Fatalf("recorder error leaked: %v", outcome.Err)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0].Answer != "one" {
		t.Fatalf("recorded = %+v", recorder.outcomes)
	}
	if !outcome.StartedAt.Equal(clock) {
		t.Fatalf("StartedAt = %s", outcome.StartedAt)
	}
}

func TestAskSerializesCallers(t *testing.T) {
	gen := &overlapCounter{}
	exec := &fakeExecutor{result: query.Succeeded(nil, nil)}
	p, err := New(Deps{Generator: gen, Executor: &lockedExecutor{inner: exec}}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Ask(context.Background(), "q")
		}()
	}
	wg.Wait()
	if gen.maxActive != 1 {
		t.Fatalf("max concurrent generations = %d", gen.maxActive)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{Executor: &fakeExecutor{}}, Options{}); err == nil {
		t.Fatal("expected generator error")
	}
	if _, err := New(Deps{Generator: &fakeGenerator{}}, Options{}); err == nil {
		t.Fatal("expected executor error")
	}
}

type scriptedGenerator struct {
	steps []func() (string, error)
}

func (g *scriptedGenerator) Generate(context.Context, string) (string, error) {
	step := g.steps[0]
	g.steps = g.steps[1:]
	return step()
}

type overlapCounter struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (g *overlapCounter) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	g.mu.Unlock()

	time.Sleep(time.Millisecond)

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return "SELECT 1", nil
}

type lockedExecutor struct {
	mu    sync.Mutex
	inner *fakeExecutor
}

func (e *lockedExecutor) Execute(ctx context.Context, sql string) query.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inner.Execute(ctx, sql)
}
