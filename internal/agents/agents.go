// Package agents holds the decision units used by the workflows. Each unit
// first asks the configured generator for a structured answer and, when that
// is unavailable or does not validate, computes the answer from fixed rules.
package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"studioflow/internal/llm"
)

// Base carries what every unit needs. A nil Generator sends every call
// straight to the rule-based path.
type Base struct {
	Generator llm.Generator
	Logger    *log.Logger
}

func (b Base) logf(format string, args ...any) {
	l := b.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

type decision[T any] struct {
	unit        string
	start       string
	temperature float64
	prompt      func() string
	// extract pulls the payload out of the generated text; nil means ExtractJSON.
	extract  func(text string) string
	parse    func(raw string) (T, error)
	fallback func() T
}

// decide runs the two-phase protocol: generated and validated output when
// possible, the rule-based result otherwise.
func decide[T any](ctx context.Context, b Base, d decision[T]) T {
	b.logf("%s: %s", d.unit, d.start)
	out, reason := attempt(ctx, b, d)
	if reason == "" {
		return out
	}
	b.logf("warn: %s: using rule-based result: %s", d.unit, reason)
	return d.fallback()
}

func attempt[T any](ctx context.Context, b Base, d decision[T]) (out T, reason string) {
	if b.Generator == nil {
		return out, "generator not configured"
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, reason = zero, fmt.Sprintf("generation panicked: %v", r)
		}
	}()
	text := b.Generator.Generate(ctx, llm.Request{Prompt: d.prompt(), Temperature: d.temperature})
	if llm.IsPlaceholder(text) {
		return out, "generator returned a placeholder"
	}
	extract := d.extract
	if extract == nil {
		extract = ExtractJSON
	}
	raw := extract(text)
	if raw == "" {
		return out, "no usable payload in response"
	}
	parsed, err := d.parse(raw)
	if err != nil {
		return out, err.Error()
	}
	return parsed, ""
}

// ExtractJSON returns the first balanced JSON object or array in text, or ""
// if there is none. Brackets inside string literals are ignored.
func ExtractJSON(text string) string {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		if end := matchBalanced(text, start); end > 0 {
			return text[start:end]
		}
	}
	return ""
}

// matchBalanced returns the index just past the bracket closing text[start], or -1.
func matchBalanced(text string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "not specified"
	}
	return strings.Join(items, ", ")
}
