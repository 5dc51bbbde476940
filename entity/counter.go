package entity

import "context"

// CountersRepo hands out the monotonic protocol counters. Next* calls return
// the current value and advance it atomically.
type CountersRepo interface {
	NextTxID(ctx context.Context) (uint32, error)
	SetNextTxID(ctx context.Context, next uint32) error
	NextSenderNonce(ctx context.Context) (uint64, error)
	NextIngressCounter(ctx context.Context) (uint64, error)
}
