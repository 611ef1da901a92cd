package describe

import (
	"fmt"
	"net/http"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// Option customizes a describer built by New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	scorer     ConfidenceScorer
}

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithScorer replaces the placeholder confidence scorer.
func WithScorer(s ConfidenceScorer) Option {
	return func(o *options) { o.scorer = s }
}

// New builds the describer named by cfg.Type.
func New(cfg config.DescriberConfig, opts ...Option) (Describer, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Type {
	case "", config.DescriberOpenAI:
		d, err := NewOpenAI(cfg, o.httpClient)
		if err != nil {
			return nil, err
		}
		if o.scorer != nil {
			d.post.scorer = o.scorer
		}
		return d, nil
	case config.DescriberOllama:
		d := NewOllama(cfg, o.httpClient)
		if o.scorer != nil {
			d.post.scorer = o.scorer
		}
		return d, nil
	default:
		return nil, errors.New(errors.KindConfig, "describe.new", fmt.Sprintf("unknown describer type %q", cfg.Type))
	}
}
