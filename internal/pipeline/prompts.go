package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

var sqlPrompt = template.Must(template.New("sql").Parse(`Given the following PostgreSQL database schema:
{{.Schema}}

Generate a SQL query to answer the following question:
{{.Question}}

The query should be efficient and use appropriate JOINs and WHERE clauses.
Return only the SQL query without any explanation.
`))

var answerPrompt = template.Must(template.New("answer").Parse(`Based on the following database query results:
{{.SQLResults}}

Answer the following question in a clear and concise way:
{{.Question}}

Provide the answer in natural language, explaining the key insights from the data.
`))

type sqlPromptData struct {
	Question string
	Schema   string
}

type answerPromptData struct {
	Question   string
	SQLResults string
}

func render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
