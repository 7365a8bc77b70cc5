// Package analysis turns one item's text into structured enrichment metadata
// by prompting an LLM and validating the JSON it returns. The two completer
// backends (OpenAI-compatible and Ollama) are interchangeable behind the
// Completer interface.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
	"github.com/Joshua-M-Schmidt/funnel/internal/optimize"
)

// Completer sends one system+user prompt pair to an LLM and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrBadResponse marks a completion that is absent or not parseable JSON.
// The caller treats it as a terminal per-item failure, not a retryable one.
var ErrBadResponse = errors.New("response is not valid JSON")

const (
	// maxContentChars leaves headroom for the completion within the model's
	// context window.
	maxContentChars     = 4000
	maxCompletionTokens = 1000
	samplingTemperature = 0.3

	defaultCategory = "general"
	defaultReadTime = 5

	systemPrompt = "You are an expert content analyst. Provide accurate, concise summaries and relevant keywords for articles. Always respond with valid JSON."
)

type Analyzer struct {
	completer Completer
}

func New(completer Completer) *Analyzer {
	return &Analyzer{completer: completer}
}

// Analyze prompts the model once for the given item and returns normalized
// enrichment fields. It has no side effects; persisting is the caller's job.
func (a *Analyzer) Analyze(ctx context.Context, title, content string) (model.Enrichment, error) {
	prompt := buildPrompt(title, optimize.Truncate(content, maxContentChars))

	raw, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return model.Enrichment{}, fmt.Errorf("complete: %w", err)
	}

	return parseResponse(raw)
}

func buildPrompt(title, content string) string {
	var b strings.Builder
	b.WriteString(`Analyze the following article and provide:
1. A concise summary (max 200 words)
2. 5-7 relevant keywords
3. Category classification
4. Priority level (high/medium/low) based on general interest and urgency
5. Estimated read time in minutes
6. 5-10 bullet points

Title: `)
	b.WriteString(title)
	b.WriteString("\nContent: ")
	b.WriteString(content)
	b.WriteString(`

Please respond in valid JSON format:
{
  "summary": "Brief summary here",
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "category": "category name",
  "priority": "medium",
  "estimatedReadTime": 5,
  "bulletPoints": ["bullet point 1", "bullet point 2", "bullet point 3"]
}
`)
	return b.String()
}

var codeFence = regexp.MustCompile("```(?:json)?\n?")

// parseResponse strips code-fence markers, decodes the JSON object and
// coerces every field to its expected shape, substituting defaults for
// anything missing or mistyped.
func parseResponse(raw string) (model.Enrichment, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	if cleaned == "" {
		return model.Enrichment{}, fmt.Errorf("%w: empty completion", ErrBadResponse)
	}

	var parsed struct {
		Summary           any `json:"summary"`
		Keywords          any `json:"keywords"`
		BulletPoints      any `json:"bulletPoints"`
		Category          any `json:"category"`
		Priority          any `json:"priority"`
		EstimatedReadTime any `json:"estimatedReadTime"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return model.Enrichment{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	enr := model.Enrichment{
		Summary:           toString(parsed.Summary),
		Keywords:          toStringSlice(parsed.Keywords),
		BulletPoints:      toStringSlice(parsed.BulletPoints),
		Category:          toString(parsed.Category),
		Priority:          model.Priority(toString(parsed.Priority)),
		EstimatedReadTime: toMinutes(parsed.EstimatedReadTime),
	}

	if enr.Category == "" {
		enr.Category = defaultCategory
	}
	if !enr.Priority.Valid() {
		enr.Priority = model.PriorityMedium
	}

	return enr, nil
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	return lo.FilterMap(arr, func(e any, _ int) (string, bool) {
		s, ok := e.(string)
		s = strings.TrimSpace(s)
		return s, ok && s != ""
	})
}

// toMinutes accepts JSON numbers and numeric strings; anything else, or a
// non-positive value, becomes the default read time.
func toMinutes(v any) int {
	switch n := v.(type) {
	case float64:
		if m := int(math.Floor(n)); m > 0 {
			return m
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			if m := int(math.Floor(f)); m > 0 {
				return m
			}
		}
	}
	return defaultReadTime
}
