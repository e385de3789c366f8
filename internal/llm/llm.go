// Package llm wraps the text generation provider used by the decision units.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// PlaceholderTag prefixes every response produced without a successful generation.
const PlaceholderTag = "[placeholder generation]"

type Request struct {
	Prompt      string
	Temperature float64
}

// Generator produces text for a prompt. Implementations never fail: on any
// problem they return a Placeholder so callers reach their fallback path.
type Generator interface {
	Generate(ctx context.Context, req Request) string
}

// Placeholder is the tagged text returned when generation is unavailable.
func Placeholder(prompt string) string {
	preview := strings.TrimSpace(prompt)
	if runes := []rune(preview); len(runes) > 60 {
		preview = string(runes[:60]) + "..."
	}
	return fmt.Sprintf("%s no model output for: %s", PlaceholderTag, preview)
}

// IsPlaceholder reports whether text came from Placeholder.
func IsPlaceholder(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), PlaceholderTag)
}

type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	UseBedrock  bool
	AWSRegion   string
	AWSProfile  string
	Temperature float64
	// Options are appended to the SDK client options, e.g. option.WithBaseURL in tests.
	Options []option.RequestOption
}

// AnthropicClient generates text through the Messages API, directly or via Bedrock.
type AnthropicClient struct {
	inner       anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
	Logger      *log.Logger
}

// NewAnthropic builds a client. It returns an error only when neither an API key
// nor Bedrock is configured; callers then run without a generator.
func NewAnthropic(ctx context.Context, cfg Config) (*AnthropicClient, error) {
	var opts []option.RequestOption
	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		model = bedrockModel(model)
	} else {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("generation api key is not set")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, cfg.Options...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicClient{
		inner:       anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		Logger:      log.Default(),
	}, nil
}

func bedrockModel(model anthropic.Model) anthropic.Model {
	known := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if m, ok := known[model]; ok {
		return anthropic.Model(m)
	}
	return model
}

func (c *AnthropicClient) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Generate sends the prompt as a single user message. A zero request
// temperature uses the client's configured default.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) string {
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		c.logger().Printf("warn: generation failed: %v", err)
		return Placeholder(req.Prompt)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		c.logger().Printf("warn: generation returned no text")
		return Placeholder(req.Prompt)
	}
	return out
}

// Static returns fixed text for every prompt. Useful for wiring a known
// response into decision units.
type Static string

func (s Static) Generate(context.Context, Request) string { return string(s) }

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) string

func (f Func) Generate(ctx context.Context, req Request) string { return f(ctx, req) }
