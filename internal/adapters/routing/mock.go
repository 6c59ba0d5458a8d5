package routing

import (
	"context"
	"sync/atomic"

	"distance-matrix-batch/internal/domain"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
)

// MockPair is a canned answer for one origin/destination.
// A non-nil Err is returned instead of Result.
type MockPair struct {
	From, To string
	Result   ports.RouteResult
	Err      error
}

// MockProvider answers from a fixed table keyed "origin|destination".
type MockProvider struct {
	m     map[string]MockPair
	calls atomic.Int64
}

func NewMockProvider(pairs []MockPair) *MockProvider {
	m := make(map[string]MockPair, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = p
	}
	return &MockProvider{m: m}
}

func (p *MockProvider) Route(ctx context.Context, q ports.RouteQuery) (ports.RouteResult, error) {
	p.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return ports.RouteResult{}, domain.Fail(domain.CauseNetwork, err)
	}

	pair, ok := p.m[q.Origin()+"|"+q.Destination()]
	if !ok {
		return ports.RouteResult{}, domain.Fail(domain.CauseService,
			errors.Errorf("missing pair %q -> %q", q.Origin(), q.Destination()))
	}
	if pair.Err != nil {
		return ports.RouteResult{}, pair.Err
	}

	return pair.Result, nil
}

// Calls reports how many routes were requested.
func (p *MockProvider) Calls() int { return int(p.calls.Load()) }
