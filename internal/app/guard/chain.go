package guard

import "github.com/osa030/voicememo/internal/app/session/state"

// Chain executes guards in sequence.
type Chain struct {
	guards []Guard
}

// NewChain creates a new guard chain.
func NewChain(guards ...Guard) *Chain {
	return &Chain{
		guards: append(make([]Guard, 0, len(guards)), guards...),
	}
}

// DefaultChain returns the guards every controller runs, in evaluation order.
func DefaultChain() *Chain {
	return NewChain(
		&TransitionGuard{},
		&ValueRangeGuard{},
		&PlaybackRequiredGuard{},
		&SeekGuard{},
	)
}

// Add adds a guard to the chain.
func (c *Chain) Add(g Guard) {
	c.guards = append(c.guards, g)
}

// Execute runs all applicable guards in sequence.
// Returns immediately if any guard rejects the request.
func (c *Chain) Execute(req Request, s *state.Session) Result {
	for _, g := range c.guards {
		if !g.AppliesTo(req.Command) {
			continue
		}

		result := g.Check(req, s)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Guards returns all guards in the chain.
func (c *Chain) Guards() []Guard {
	return c.guards
}
