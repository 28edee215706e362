package llm

import (
	"context"
	"time"

	"github.com/tognete/codi/internal/metrics"
)

type instrumented struct {
	Provider
}

// Instrumented wraps p so every completion is recorded in Prometheus.
func Instrumented(p Provider) Provider {
	return &instrumented{Provider: p}
}

func (i *instrumented) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := i.Provider.Complete(ctx, req)
	var prompt, completion int64
	if resp != nil {
		prompt, completion = resp.PromptTokens, resp.CompletionTokens
	}
	metrics.RecordCompletion(i.Name(), i.Model(), time.Since(start), prompt, completion, err)
	return resp, err
}
