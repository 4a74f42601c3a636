package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

func newRemoteCommand(opts *Options) *cobra.Command {
	var baseURL string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "remote <health|ready|schema|ask> [question]",
		Short: "Call a running shopqa server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = defaultAPIURL
				if value, ok := opts.Lookup("SHOPQA_API_URL"); ok && strings.TrimSpace(value) != "" {
					baseURL = strings.TrimSpace(value)
				}
			}
			client := opts.HTTPClient
			if client == nil {
				client = &http.Client{Timeout: timeout}
			}

			method, path := http.MethodGet, ""
			var body []byte
			switch command := strings.TrimSpace(args[0]); command {
			case "health":
				path = "/v1/health"
			case "ready":
				path = "/v1/ready"
			case "schema":
				path = "/v1/schema"
			case "ask":
				question := strings.TrimSpace(strings.Join(args[1:], " "))
				if question == "" {
					return usageError{err: fmt.Errorf("ask needs a question")}
				}
				method, path = http.MethodPost, "/v1/ask"
				body, _ = json.Marshal(map[string]string{"question": question})
			default:
				return usageError{err: fmt.Errorf("unknown remote command %q", command)}
			}

			endpoint := strings.TrimRight(baseURL, "/") + path
			code, responseBody, err := doRequest(cmd.Context(), client, method, endpoint, body)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			if code >= 400 {
				return fmt.Errorf("http %d: %s", code, remoteErrorMessage(responseBody))
			}
			if path == "/v1/ask" {
				return printRemoteAnswer(opts.Stdout, responseBody)
			}
			if pretty, ok := prettyJSON(responseBody); ok {
				_, _ = fmt.Fprintln(opts.Stdout, pretty)
			} else if len(responseBody) > 0 {
				_, _ = fmt.Fprintln(opts.Stdout, string(responseBody))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "shopqa API base URL (default $SHOPQA_API_URL or "+defaultAPIURL+")")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "HTTP timeout")
	return cmd
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func printRemoteAnswer(out io.Writer, body []byte) error {
	var answer struct {
		SQLQuery string `json:"sql_query"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal(body, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	_, _ = fmt.Fprintln(out, "\n"+headingStyle.Sprint("SQL Query:"))
	_, _ = fmt.Fprintln(out, answer.SQLQuery)
	_, _ = fmt.Fprintln(out, "\n"+headingStyle.Sprint("Answer:"))
	_, _ = fmt.Fprintln(out, answer.Answer)
	return nil
}

// remoteErrorMessage prefers the message field of an API error body.
func remoteErrorMessage(body []byte) string {
	var apiErr struct {
		Code    string `json:"error_code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Code + ": " + apiErr.Message
	}
	return strings.TrimSpace(string(body))
}

func prettyJSON(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}
