package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
	defaultTimeout    = 30 * time.Second
)

// OpenAI generates embeddings via the OpenAI embeddings API.
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// Option configures the provider.
type Option func(*OpenAI)

// WithTimeout bounds every API call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *OpenAI) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOpenAI creates an OpenAI embedding provider.
func NewOpenAI(apiKey, model string, dimensions int, opts ...Option) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	if model == "" {
		model = defaultModel
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	o := &OpenAI{
		model:      model,
		dimensions: dimensions,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: o.timeout}
	o.client = openai.NewClientWithConfig(cfg)
	return o, nil
}

func (o *OpenAI) ModelName() string {
	return o.model
}

func (o *OpenAI) Dimensions() int {
	return o.dimensions
}

// GenerateEmbedding embeds a single text.
func (o *OpenAI) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, core.Wrapf(core.ErrEmbeddingFailed, "empty text")
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, core.Wrapf(core.ErrEmbeddingFailed, "empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}
