// Package query runs generated SQL against the commerce datastore and turns
// the outcome into text a language model can read.
package query

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrStatementNotAllowed marks SQL rejected before it reaches the database.
var ErrStatementNotAllowed = errors.New("only read-only SELECT or WITH statements are allowed")

// ExecutionError is the failure half of a Result.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "Error executing query"
	}
	return "Error executing query: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Field is one column value of a Row.
type Field struct {
	Column string
	Value  any
}

// Row is an ordered mapping from column name to value. Order follows the
// result set.
type Row []Field

func (r Row) Get(column string) (any, bool) {
	for _, field := range r {
		if field.Column == column {
			return field.Value, true
		}
	}
	return nil, false
}

func (r Row) Columns() []string {
	out := make([]string, 0, len(r))
	for _, field := range r {
		out = append(out, field.Column)
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeJSON(field.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := encodeJSON(textValue(field.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is either a set of rows or an execution error, never both.
type Result struct {
	Columns []string
	Rows    []Row
	Err     error
}

func Succeeded(columns []string, rows []Row) Result {
	if rows == nil {
		rows = []Row{}
	}
	return Result{Columns: columns, Rows: rows}
}

func Failed(err error) Result {
	if err == nil {
		err = &ExecutionError{}
	}
	return Result{Err: err}
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// MarshalJSON writes the rows as an array, or the error text as a string.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return encodeJSON(r.Err.Error())
	}
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	return encodeJSON(rows)
}

func encodeJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
