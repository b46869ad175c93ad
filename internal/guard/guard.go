package guard

import (
	"context"
	"time"
)

// Request carries the admission-relevant view of an inbound HTTP request.
// Policies read it and the auth policy fills in Identity.
type Request struct {
	Endpoint string
	ClientIP string
	Username string
	Password string
	HasCreds bool
	Identity string
}

// Denial is the outcome of a failed policy check.
type Denial struct {
	Status    int
	Reason    string
	Message   string
	Challenge bool
}

// Policy is one admission check. A nil return admits the request to the
// next policy in the chain.
type Policy interface {
	Name() string
	Evaluate(ctx context.Context, req *Request) *Denial
}

// Chain evaluates an explicit ordered list of policies. The first denial
// wins and later policies never run.
type Chain struct {
	policies []Policy
	logger   AccessLogger
}

// NewChain composes policies in evaluation order.
func NewChain(logger AccessLogger, policies ...Policy) *Chain {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Chain{policies: policies, logger: logger}
}

// Evaluate runs the chain. Every evaluation, admitted or not, emits one
// access record.
func (c *Chain) Evaluate(ctx context.Context, req *Request) *Denial {
	for _, p := range c.policies {
		if d := p.Evaluate(ctx, req); d != nil {
			c.logger.Log(ctx, Record{
				Endpoint: req.Endpoint,
				Status:   d.Reason,
				ClientIP: req.ClientIP,
				At:       time.Now().UTC(),
			})
			return d
		}
	}
	c.logger.Log(ctx, Record{
		Endpoint: req.Endpoint,
		Status:   "allowed",
		ClientIP: req.ClientIP,
		At:       time.Now().UTC(),
	})
	return nil
}
