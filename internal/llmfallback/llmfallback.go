// Package llmfallback is the optional, non-authoritative hint source a human
// review queue may consult when the deterministic classifier leaves a
// procedure UNKNOWN and review_recommended. It never feeds back into
// is_valid_procedure or confidence (spec.md §4.13) — grounded on the
// teacher's internal/compact.haikuClient, which treats the Anthropic API the
// same way: an optional collaborator called behind a narrow interface, with
// its own retry loop and telemetry, never load-bearing for core logic.
package llmfallback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bess-forensic/crawler/internal/telemetry"
	"github.com/bess-forensic/crawler/internal/types"
)

// Hint is a non-authoritative suggestion attached for a human reviewer; it
// never overwrites a Procedure's own fields.
type Hint struct {
	SuggestedProcedureType types.ProcedureType
	Rationale               string
}

// Classifier produces a Hint from a procedure's extracted text. The
// no-op default satisfies this for deployments without an API key.
type Classifier interface {
	Classify(ctx context.Context, procedureTitle, extractedText string) (*Hint, error)
}

// NoOp always returns (nil, nil): "no opinion", not an error.
type NoOp struct{}

func (NoOp) Classify(ctx context.Context, procedureTitle, extractedText string) (*Hint, error) {
	return nil, nil
}

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

var errAPIKeyRequired = errors.New("llmfallback: ANTHROPIC_API_KEY required")

// AnthropicClassifier calls the Anthropic API to suggest a procedure_type
// for manual review, mirroring the teacher's haikuClient retry/backoff shape.
type AnthropicClassifier struct {
	client   anthropic.Client
	model    anthropic.Model
	template *template.Template
}

// NewAnthropicClassifier builds a Classifier from apiKey. An empty apiKey
// returns errAPIKeyRequired; the environment is not consulted here.
func NewAnthropicClassifier(apiKey string) (*AnthropicClassifier, error) {
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	tmpl, err := template.New("hint").Parse(hintPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse hint template: %w", err)
	}
	return &AnthropicClassifier{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    anthropic.Model("claude-3-5-haiku-latest"),
		template: tmpl,
	}, nil
}

func (c *AnthropicClassifier) Classify(ctx context.Context, procedureTitle, extractedText string) (*Hint, error) {
	prompt, err := c.renderPrompt(procedureTitle, extractedText)
	if err != nil {
		return nil, fmt.Errorf("render hint prompt: %w", err)
	}

	ctx, endSpan := telemetry.StartJobSpan(ctx, "llmfallback.classify")
	text, err := c.callWithRetry(ctx, prompt)
	endSpan(err)
	if err != nil {
		return nil, err
	}

	return &Hint{SuggestedProcedureType: types.ProcUnknown, Rationale: text}, nil
}

func (c *AnthropicClassifier) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", errors.New("llmfallback: empty response content")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("llmfallback: unexpected content type %q", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("llmfallback: non-retryable error: %w", err)
		}
	}
	return "", fmt.Errorf("llmfallback: failed after %d retries: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func (c *AnthropicClassifier) renderPrompt(procedureTitle, extractedText string) (string, error) {
	var buf []byte
	w := &bytesWriter{buf: buf}
	data := struct {
		Title string
		Text  string
	}{Title: procedureTitle, Text: extractedText}
	if err := c.template.Execute(w, data); err != nil {
		return "", err
	}
	return string(w.buf), nil
}

type bytesWriter struct{ buf []byte }

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

const hintPromptTemplate = `A German municipal planning procedure could not be classified with confidence.

Title: {{.Title}}

Extracted text (truncated):
{{.Text}}

Suggest which of these procedure types best fits, and why, in one short paragraph:
BPLAN_AUFSTELLUNG, BPLAN_FRUEHZEITIG_3_1, BPLAN_AUSLEGUNG_3_2, BPLAN_SATZUNG, BPLAN_OTHER,
PERMIT_BAUVORBESCHEID, PERMIT_BAUGENEHMIGUNG, PERMIT_36_EINVERNEHMEN, PERMIT_OTHER.

This is a suggestion for human review only and will not be saved automatically.`
