package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/shopqa/shopqa/internal/pipeline"
)

// Asker answers one question; *pipeline.Pipeline satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) pipeline.Outcome
}

var exampleQuestions = []string{
	"What are the top 5 best-selling products?",
	"Who are our most valuable customers based on total order amount?",
	"What is the average rating for products in the Electronics category?",
	"How many orders were placed in the last month?",
	"Which customers have left the most reviews?",
}

var (
	headingStyle = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	errorStyle   = pterm.NewStyle(pterm.FgRed)
	promptStyle  = pterm.NewStyle(pterm.FgCyan)
)

const maxQuestionBytes = 1 << 20

var errLineTooLong = fmt.Errorf("question is longer than %d bytes", maxQuestionBytes)

type inputLine struct {
	text string
	err  error
}

// runInteractive reads questions line by line until exit, quit, end of input
// or cancellation of ctx. spin replaces the progress line with a spinner.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, asker Asker, spin bool) error {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		reader := bufio.NewReaderSize(in, 64*1024)
		for {
			text, err := readLine(reader, maxQuestionBytes)
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case lines <- inputLine{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, errLineTooLong) {
				return
			}
		}
	}()

	_, _ = fmt.Fprintln(out, "\nWelcome to the AI-Powered Retrieval System!")
	_, _ = fmt.Fprintln(out, "Type 'exit' or 'quit' to end the session.")
	_, _ = fmt.Fprintln(out, "Type 'help' to see example questions.")

	for {
		_, _ = fmt.Fprint(out, "\n"+promptStyle.Sprint("Enter your question: "))

		var line inputLine
		var ok bool
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out, "\nGoodbye!")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			_, _ = fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}

		if errors.Is(line.err, errLineTooLong) {
			_, _ = fmt.Fprintln(out, "\n"+errorStyle.Sprint("Error: "+line.err.Error()))
			continue
		}
		if line.err != nil {
			return fmt.Errorf("read question: %w", line.err)
		}

		question := strings.TrimSpace(line.text)
		switch strings.ToLower(question) {
		case "exit", "quit":
			_, _ = fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			_, _ = fmt.Fprintln(out, "\nExample questions:")
			for i, example := range exampleQuestions {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, example)
			}
			continue
		case "":
			continue
		}

		outcome := askWithProgress(ctx, out, asker, question, spin)
		if ctx.Err() != nil {
			_, _ = fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
		printOutcome(out, outcome)
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is skipped through its newline and reported as errLineTooLong.
func readLine(reader *bufio.Reader, limit int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", errLineTooLong
	}
	return string(buf), nil
}

func printOutcome(out io.Writer, outcome pipeline.Outcome) {
	if outcome.Failed() {
		_, _ = fmt.Fprintln(out, "\n"+errorStyle.Sprint("Error: "+outcome.Err.Error()))
		return
	}
	_, _ = fmt.Fprintln(out, "\n"+headingStyle.Sprint("SQL Query:"))
	_, _ = fmt.Fprintln(out, outcome.SQLQuery)
	_, _ = fmt.Fprintln(out, "\n"+headingStyle.Sprint("Answer:"))
	_, _ = fmt.Fprintln(out, outcome.Answer)
}

func askWithProgress(ctx context.Context, out io.Writer, asker Asker, question string, spin bool) pipeline.Outcome {
	if !spin {
		_, _ = fmt.Fprintln(out, "\nProcessing your question...")
		return asker.Ask(ctx, question)
	}
	_, _ = fmt.Fprintln(out)
	spinner, err := pterm.DefaultSpinner.WithWriter(out).WithRemoveWhenDone(true).Start("Processing your question...")
	if err != nil {
		return asker.Ask(ctx, question)
	}
	outcome := asker.Ask(ctx, question)
	_ = spinner.Stop()
	return outcome
}
