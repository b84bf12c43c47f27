package testsupport

import (
	"context"
	"sync"
)

// FakeGenerator is a scripted generative-text provider.
type FakeGenerator struct {
	// Fn produces the response for a call; nil echoes a fixed reply.
	Fn func(call int, system, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Generate implements the generative provider contract.
func (g *FakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	call := len(g.prompts)
	g.mu.Unlock()
	if g.Fn == nil {
		return "generated text", nil
	}
	return g.Fn(call, system, prompt)
}

// Calls returns the number of Generate invocations.
func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// LastPrompt returns the most recent prompt, or "".
func (g *FakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}
