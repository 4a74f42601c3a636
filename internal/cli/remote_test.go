package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRemoteAskPostsQuestion(t *testing.T) {
	var gotMethod, gotPath, gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body["question"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"question":"q","sql_query":"SELECT 1","results":[{"x":1}],"answer":"One."}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"remote", "--base-url", srv.URL, "ask", "How", "many", "orders?"}, Options{
		Stdout: &stdout,
		Stderr: &stderr,
		Lookup: mapLookup(nil),
		Plain:  true,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/ask" || gotQuestion != "How many orders?" {
		t.Fatalf("request = %s %s %q", gotMethod, gotPath, gotQuestion)
	}
	if !strings.Contains(stdout.String(), "SQL Query:\nSELECT 1") || !strings.Contains(stdout.String(), "Answer:\nOne.") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRemoteHealthUsesEnvironmentURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"ok","service":"shopqa"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"remote", "health"}, Options{
		Stdout: &stdout,
		Lookup: mapLookup(map[string]string{"SHOPQA_API_URL": srv.URL + "/"}),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/health" {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(stdout.String(), "\"status\": \"ok\"") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRemoteReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error_code":"GENERATION_FAILED","message":"model offline"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"remote", "--base-url", srv.URL, "ask", "q"}, Options{
		Stderr: &stderr,
		Lookup: mapLookup(nil),
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "http 502: GENERATION_FAILED: model offline") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRemoteRejectsUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"remote", "lag"}, Options{Stderr: &stderr, Lookup: mapLookup(nil)})
	if code != 2 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}
