package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/fatecrafters/chronicle/pkg/ai"
)

// SummaryOpenAIClient implements ai.SummaryAIClient against an
// OpenAI-compatible API. It manages separate clients for chat/completion
// and embedding endpoints so the two can be pointed at different providers.
//
// A SummaryOpenAIClient should be created using NewSummaryOpenAIClient.
type SummaryOpenAIClient struct {
	summaryModel   string
	embeddingModel string

	chatURL      string
	chatKey      string
	embeddingURL string
	embeddingKey string

	timeoutMin int
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewSummaryOpenAIClientParams defines the configuration for creating a
// SummaryOpenAIClient. A missing ChatKey or EmbeddingKey leaves the
// corresponding client unset; calls against it return
// common.ErrMissingCredential.
type NewSummaryOpenAIClientParams struct {
	SummaryModel   string
	EmbeddingModel string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	TimeoutMinutes        int
	MaxConcurrentRequests int64
}

// NewSummaryOpenAIClient creates a SummaryOpenAIClient configured with the
// provided parameters.
//
// Example:
//
//	client := openai.NewSummaryOpenAIClient(openai.NewSummaryOpenAIClientParams{
//		SummaryModel:   "gpt-4o-mini",
//		EmbeddingModel: "text-embedding-3-small",
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//	})
func NewSummaryOpenAIClient(params NewSummaryOpenAIClientParams) *SummaryOpenAIClient {
	timeoutMin := params.TimeoutMinutes
	if timeoutMin <= 0 {
		timeoutMin = 5
	}
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &SummaryOpenAIClient{
		summaryModel:   params.SummaryModel,
		embeddingModel: params.EmbeddingModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		timeoutMin: timeoutMin,
		reqLock:    semaphore.NewWeighted(maxConcurrent),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

// HasCredentials reports whether the chat endpoint is usable.
func (c *SummaryOpenAIClient) HasCredentials() bool {
	return c.ChatClient != nil
}

// ResetMetrics clears accumulated usage metrics.
func (c *SummaryOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the accumulated usage metrics.
func (c *SummaryOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *SummaryOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}
