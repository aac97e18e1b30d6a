package rerank

import (
	"context"
	"errors"
)

// ErrServiceUnavailable is returned by services that cannot answer at all.
var ErrServiceUnavailable = errors.New("semantic match service unavailable")

// SemanticMatchService answers a rerank request with the matcher's raw reply.
type SemanticMatchService interface {
	Match(ctx context.Context, req *Request) (string, error)
}

// ServiceFunc adapts a function to SemanticMatchService.
type ServiceFunc func(ctx context.Context, req *Request) (string, error)

// Match calls f
func (f ServiceFunc) Match(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// NullService is selected when semantic matching is disabled or has no
// credentials.
type NullService struct{}

// Match always fails with ErrServiceUnavailable
func (NullService) Match(context.Context, *Request) (string, error) {
	return "", ErrServiceUnavailable
}
