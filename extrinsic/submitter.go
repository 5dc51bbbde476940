package extrinsic

import (
	"context"
)

// Submitter is the off-chain workers' entry point: pool admission followed by
// execution. A call that validates but fails to apply is forgotten so the
// action can be retried on a later block.
type Submitter struct {
	pool       *Pool
	dispatcher *Dispatcher
}

func NewSubmitter(pool *Pool, dispatcher *Dispatcher) *Submitter {
	return &Submitter{pool: pool, dispatcher: dispatcher}
}

func (s *Submitter) Submit(ctx context.Context, call Call) error {
	if err := s.pool.Validate(ctx, call); err != nil {
		return err
	}
	if err := s.dispatcher.Execute(ctx, call); err != nil {
		s.pool.Forget(call)
		return err
	}
	return nil
}
