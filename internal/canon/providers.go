package canon

import (
	"context"
	"fmt"
	"os"

	"constitution/internal/provider"
)

// FileProvider replays a proposal set stored as a JSON or YAML file.
type FileProvider struct {
	Path string
}

func (f FileProvider) ID() string { return f.Path }

func (f FileProvider) Propose(ctx context.Context, _ Request) (provider.ProposalSet, error) {
	if err := ctx.Err(); err != nil {
		return provider.ProposalSet{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return provider.ProposalSet{}, fmt.Errorf("read proposals: %w", err)
	}
	return provider.DecodeProposalSet(data)
}

// Func adapts a function to the Provider interface.
type Func struct {
	Name string
	Fn   func(ctx context.Context, req Request) (provider.ProposalSet, error)
}

func (f Func) ID() string { return f.Name }

func (f Func) Propose(ctx context.Context, req Request) (provider.ProposalSet, error) {
	return f.Fn(ctx, req)
}
