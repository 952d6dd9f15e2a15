// Package judge calls an OpenAI-compatible chat model to assess search
// results: batch relevance to a query, and per-domain credibility.
package judge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/retrieval/rank"
)

// DefaultModel is used when the config names no model.
const DefaultModel = "gpt-4o-mini"

const (
	relevanceTemperature   = 0.1
	credibilityTemperature = 0.2
)

// Token budgets for the text shown per result in the relevance prompt.
// Character truncation upstream bounds the worst case; these keep the
// prompt size stable across scripts where bytes-per-token varies.
const (
	titleTokenBudget   = 30
	snippetTokenBudget = 80
)

const relevanceSystemPrompt = `You judge whether search results are relevant to the user's query.
You will see a user query and a numbered list of search results (title + short snippet).
Return a JSON array of the 1-based indices that are RELEVANT to the query (results that clearly address or relate to what the user asked).
Exclude results that are off-topic, only share a word by coincidence, or are about a different meaning of the query (e.g. "technology integration" when the user asked about "integral calculus").
Return only the array, e.g. [1, 3, 5, 12]. No explanation or markdown.`

const credibilitySystemPrompt = `You assess the credibility of web domains for search result ranking.
Given a list of domains, return a JSON object mapping each domain to a credibility score from 0 to 10:
- 10: Highly trusted (e.g. major news, .gov, .edu, established publishers, academic)
- 7-9: Generally reliable (reputable brands, known outlets)
- 4-6: Mixed or unknown (blogs, smaller sites, unclear reputation)
- 1-3: Low credibility (content farms, spam, clickbait, misleading)
- 0: Exclude (spam, unsafe, or not suitable for factual content)

Use the domain string exactly as given. Return only valid JSON: {"domain.example.com": 8, ...}. No markdown or explanation.`

// Config configures the LLM judge.
type Config struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("judge: api key is required")
	}
	return nil
}

// LLMJudge implements rank.RelevanceJudge and rank.CredibilityJudge over a
// chat-completions endpoint.
type LLMJudge struct {
	client *openai.Client
	model  string
	// encoder may be nil when no tokenizer is available for the model;
	// prompts then fall back to character truncation alone.
	encoder *tiktoken.Tiktoken
	logger  *logger.Logger
}

var (
	_ rank.RelevanceJudge   = (*LLMJudge)(nil)
	_ rank.CredibilityJudge = (*LLMJudge)(nil)
)

// New creates an LLMJudge.
func New(cfg Config, log *logger.Logger) (*LLMJudge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if log == nil {
		log = logger.L()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	log = log.Named("judge")

	encoder, err := tiktoken.EncodingForModel(cfg.Model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		log.Debug("no tokenizer for model, using character truncation", zap.String("model", cfg.Model), zap.Error(err))
		encoder = nil
	}

	return &LLMJudge{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		encoder: encoder,
		logger:  log,
	}, nil
}

// clipTokens bounds s to at most max tokens under the model's encoding.
func (j *LLMJudge) clipTokens(s string, max int) string {
	if j.encoder == nil || s == "" {
		return s
	}
	tokens := j.encoder.Encode(s, nil, nil)
	if len(tokens) <= max {
		return s
	}
	return j.encoder.Decode(tokens[:max])
}

// Relevant asks the model which batch entries address the query and returns
// their 1-based indices. The answer may be a JSON array of indices or an
// object mapping index to a truthy value.
func (j *LLMJudge) Relevant(ctx context.Context, query string, batch []rank.Candidate) ([]int, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User query: %s\n\nSearch results:\n", query)
	for i, c := range batch {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		title := j.clipTokens(c.Title, titleTokenBudget)
		snippet := j.clipTokens(c.Snippet, snippetTokenBudget)
		fmt.Fprintf(&sb, "%d. Title: %s\n   Snippet: %s", i+1, title, snippet)
	}
	sb.WriteString("\n\nReturn a JSON array of the 1-based indices that are relevant to the query (e.g. [1, 2, 5]).")

	content, err := j.complete(ctx, relevanceSystemPrompt, sb.String(), relevanceTemperature)
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(stripFences(content))
	switch {
	case parsed.IsArray():
		var indices []int
		for _, v := range parsed.Array() {
			if v.Type != gjson.Number {
				continue
			}
			indices = append(indices, int(v.Int()))
		}
		return indices, nil
	case parsed.IsObject():
		var indices []int
		parsed.ForEach(func(key, value gjson.Result) bool {
			idx, err := strconv.Atoi(strings.TrimSpace(key.String()))
			if err != nil {
				return true
			}
			if value.Bool() || value.Float() > 0 {
				indices = append(indices, idx)
			}
			return true
		})
		return indices, nil
	default:
		return nil, fmt.Errorf("judge: unparsable relevance answer: %q", content)
	}
}

// ScoreDomains asks the model to rate each domain on a 0-10 scale. Domains
// the model skips are absent from the result.
func (j *LLMJudge) ScoreDomains(ctx context.Context, domains []string) (map[string]float64, error) {
	if len(domains) == 0 {
		return map[string]float64{}, nil
	}

	userContent := "Rate credibility (0-10) for each of these domains:\n" + strings.Join(domains, ", ")

	content, err := j.complete(ctx, credibilitySystemPrompt, userContent, credibilityTemperature)
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(stripFences(content))
	if !parsed.IsObject() {
		return nil, fmt.Errorf("judge: unparsable credibility answer: %q", content)
	}

	scores := make(map[string]float64)
	parsed.ForEach(func(key, value gjson.Result) bool {
		domain := strings.ToLower(strings.TrimSpace(key.String()))
		if domain == "" || value.Type != gjson.Number {
			return true
		}
		scores[domain] = value.Float()
		return true
	})
	return scores, nil
}

func (j *LLMJudge) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		j.logger.Warn("chat completion failed", zap.String("model", j.model), zap.Error(err))
		return "", fmt.Errorf("judge: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("judge: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a surrounding markdown code block, if any, so the
// payload can be parsed as JSON.
func stripFences(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
