// Package llm wraps the Gemini SDK behind a narrow streaming interface so the
// agent and grounding pipeline can be exercised against scripted fakes.
package llm

import (
	"context"
	"iter"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the surface of the model provider the core depends on.
// It mirrors genai's streaming call: the returned sequence yields response
// chunks until the stream ends or an error is produced.
type ContentGenerator interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Client is the production ContentGenerator. A process-wide rate limiter sits
// in front of every call; planning and grounding requests share it.
type Client struct {
	client  *genai.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// Options tunes the client.
type Options struct {
	APIKey string
	// RequestsPerMinute caps outbound generate calls; zero disables limiting.
	RequestsPerMinute float64
}

// NewClient builds a Gemini-backed client.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60.0), 1)
	}
	return &Client{client: gc, limiter: limiter, log: logger.Named("llm")}, nil
}

// GenerateContentStream applies the rate limit and forwards to the SDK.
func (c *Client) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if err := c.limiter.Wait(ctx); err != nil {
			yield(nil, err)
			return
		}
		c.log.Debug("Generate stream requested", zap.String("model", model), zap.Int("contents", len(contents)))
		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if !yield(resp, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

var _ ContentGenerator = (*Client)(nil)
