package renderer

import (
	"context"

	"github.com/leobrain/crawler/internal/domain"
)

// Noop satisfies Renderer for deployments without a browser. Render reports
// no response, and the engine records such requests as failed.
type Noop struct{}

// NewNoop returns a renderer that never produces a response.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Render(context.Context, *domain.Request) (*domain.Response, error) {
	return nil, nil
}

func (*Noop) Close() error { return nil }
