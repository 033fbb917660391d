package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
	"github.com/bayardlab/bayard-gateway/internal/storage/models"
	"github.com/bayardlab/bayard-gateway/pkg/retry"
)

// Intent is the classification outcome for one query.
type Intent string

const (
	IntentSearch       Intent = "search"
	IntentConversation Intent = "conversation"
)

// Reflection is the generated judgment of retrieval quality. Score is nil
// when no integer could be extracted from the reflection text; that is a
// normal outcome, not an error.
type Reflection struct {
	Text  string
	Score *int
}

// Client talks to the generation backend for classification, reflection,
// grounded synthesis, and plain conversation.
type Client struct {
	client             *openai.Client
	model              string
	classifierModel    string
	temperature        float32
	maxTokens          int
	timeout            time.Duration
	historyBudgetWords int
	retryConfig        retry.Config
	logger             *zap.Logger
}

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	ClassifierModel    string
	Temperature        float32
	MaxTokens          int
	TimeoutSec         int
	HistoryBudgetWords int
	Logger             *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = 60
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.HistoryBudgetWords == 0 {
		cfg.HistoryBudgetWords = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = 3
	retryConfig.InitialDelay = 500 * time.Millisecond
	retryConfig.MaxDelay = 5 * time.Second
	retryConfig.Logger = cfg.Logger

	cfg.Logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("classifier_model", cfg.ClassifierModel),
	)

	return &Client{
		client:             openai.NewClientWithConfig(clientConfig),
		model:              cfg.Model,
		classifierModel:    cfg.ClassifierModel,
		temperature:        cfg.Temperature,
		maxTokens:          cfg.MaxTokens,
		timeout:            time.Duration(cfg.TimeoutSec) * time.Second,
		historyBudgetWords: cfg.HistoryBudgetWords,
		retryConfig:        retryConfig,
		logger:             cfg.Logger,
	}
}

// Classify maps the query to search or conversation. Any backend failure
// or unexpected label degrades to search: the search branch handles zero
// documents gracefully while the conversation branch has no retrieval
// fallback.
func (c *Client) Classify(ctx context.Context, text string) Intent {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var label string
	err := retry.Do(ctx, c.retryConfig, func() error {
		resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
			Model:       c.classifierModel,
			Prompt:      classifierPrompt(text),
			MaxTokens:   1,
			N:           1,
			Temperature: 0.5,
		})
		if err != nil {
			return fmt.Errorf("failed to classify query: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("classifier returned no choices")
		}
		label = strings.ToLower(strings.TrimSpace(resp.Choices[0].Text))
		return nil
	})
	if err != nil {
		c.logger.Warn("Classification failed, defaulting to search", zap.Error(err))
		return IntentSearch
	}

	switch Intent(label) {
	case IntentSearch, IntentConversation:
		return Intent(label)
	default:
		c.logger.Debug("Classifier returned unknown label, defaulting to search",
			zap.String("label", label),
		)
		return IntentSearch
	}
}

// Reflect scores the retrieval result against the query.
func (c *Client) Reflect(ctx context.Context, docs []corpus.Document, text string) (Reflection, error) {
	content, err := c.chat(ctx, reflectionSystemPrompt, reflectionPrompt(docs, text), 0)
	if err != nil {
		return Reflection{}, fmt.Errorf("failed to generate search quality reflection: %w", err)
	}

	content = strings.TrimSpace(content)
	return Reflection{Text: content, Score: extractScore(content)}, nil
}

// Synthesize produces the grounded answer from the query, the retrieved
// documents, and any prior conversation turns that fit the history budget.
func (c *Client) Synthesize(ctx context.Context, text string, docs []corpus.Document, history []models.Turn) (string, error) {
	prompt := synthesisPrompt(text, docs, truncateHistory(history, c.historyBudgetWords))

	content, err := c.chat(ctx, synthesisSystemPrompt, prompt, c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to generate model output: %w", err)
	}

	c.logger.Info("Model output generated",
		zap.Int("documents", len(docs)),
		zap.Int("output_length", len(content)),
	)
	return content, nil
}

// Converse answers without retrieval, steering the caller toward a
// specific research query.
func (c *Client) Converse(ctx context.Context, text string, history []models.Turn) (string, error) {
	prompt := conversationPrompt(text, truncateHistory(history, c.historyBudgetWords))

	content, err := c.chat(ctx, conversationSystemPrompt, prompt, c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to generate conversation response: %w", err)
	}
	return content, nil
}

func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var content string
	err := retry.Do(ctx, c.retryConfig, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: c.temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

var scorePattern = regexp.MustCompile(`\d+`)

// extractScore pulls the first integer token out of free-form reflection
// text. No integer means no score.
func extractScore(text string) *int {
	match := scorePattern.FindString(text)
	if match == "" {
		return nil
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &score
}

// truncateHistory keeps the most recent turns whose combined word count
// fits the budget. Kept turns stay in chronological order.
func truncateHistory(history []models.Turn, budgetWords int) []models.Turn {
	if len(history) == 0 {
		return nil
	}

	var kept []models.Turn
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		words := wordCount(turn.UserInput) + wordCount(turn.ModelOutput)
		if used+words > budgetWords {
			break
		}
		used += words
		kept = append([]models.Turn{turn}, kept...)
	}
	return kept
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
