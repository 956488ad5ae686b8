package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/observability"
)

// ErrEmptyText is returned when asked to encode blank text
var ErrEmptyText = errors.New("similarity: empty text")

// Encoder maps text to a fixed-dimension embedding
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEncoder calls an OpenAI-compatible /embeddings endpoint, such as a
// server hosting bge-m3.
type OpenAIEncoder struct {
	client *goopenai.Client
	model  string
}

// NewOpenAIEncoder builds an encoder from config. httpClient may be nil.
func NewOpenAIEncoder(cfg config.EncoderConfig, httpClient *http.Client) (*OpenAIEncoder, error) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil, errors.New("missing encoder endpoint: set similarity.encoder.base_url or KGRAPH_ENCODER_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("missing similarity.encoder.model")
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAIEncoder{
		client: goopenai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// Model returns the embedding model name
func (e *OpenAIEncoder) Model() string { return e.model }

// Encode implements Encoder
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("creating embedding: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// EmbeddingCache persists embeddings by text hash and model
type EmbeddingCache interface {
	GetEmbedding(textHash, model string) ([]float32, error)
	PutEmbedding(textHash, model string, vec []float32) error
}

// TextHash is the cache key for a text
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CachedEncoder serves embeddings from a cache, encoding misses once even
// when requested concurrently. Cache failures fall through to the encoder.
type CachedEncoder struct {
	inner  Encoder
	cache  EmbeddingCache
	model  string
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedEncoder wraps inner with cache under the given model name
func NewCachedEncoder(inner Encoder, cache EmbeddingCache, model string, logger *zap.Logger) *CachedEncoder {
	return &CachedEncoder{
		inner:  inner,
		cache:  cache,
		model:  model,
		logger: observability.OrNop(logger).Named("embedding-cache"),
	}
}

// Encode implements Encoder
func (c *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	hash := TextHash(text)
	v, err, _ := c.group.Do(hash, func() (any, error) {
		cached, err := c.cache.GetEmbedding(hash, c.model)
		if err != nil {
			c.logger.Warn("Embedding cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}

		vec, err := c.inner.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := c.cache.PutEmbedding(hash, c.model, vec); err != nil {
			c.logger.Warn("Embedding cache write failed", zap.Error(err))
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
