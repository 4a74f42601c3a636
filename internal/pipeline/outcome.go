package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopqa/shopqa/internal/query"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// GenerationError reports a failed text-generation call.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return "generate " + e.Stage + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one question. A failed outcome carries only the
// question and Err.
type Outcome struct {
	Question string
	SQLQuery string
	Results  query.Result
	Answer   string
	Err      error

	StartedAt time.Time
	Duration  time.Duration
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

func (o Outcome) Status() string {
	if o.Failed() {
		return StatusFailed
	}
	return StatusSucceeded
}

// GenerationFailed reports whether the text-generation service caused the
// failure.
func (o Outcome) GenerationFailed() bool {
	var genErr *GenerationError
	return errors.As(o.Err, &genErr)
}

type failedJSON struct {
	Question string `json:"question"`
	Error    string `json:"error"`
}

type succeededJSON struct {
	Question string       `json:"question"`
	SQLQuery string       `json:"sql_query"`
	Results  query.Result `json:"results"`
	Answer   string       `json:"answer"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	var value any
	if o.Failed() {
		value = failedJSON{Question: o.Question, Error: o.Err.Error()}
	} else {
		value = succeededJSON{Question: o.Question, SQLQuery: o.SQLQuery, Results: o.Results, Answer: o.Answer}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
