package extrinsic

import (
	"context"
	"fmt"

	"github.com/fedbridge/bridge-node/bridge"
	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/checker"
	"github.com/fedbridge/bridge-node/events"
	"github.com/fedbridge/bridge-node/logging"
	"github.com/fedbridge/bridge-node/summary"
)

// Dispatcher routes validated calls to their handlers. Authorship is verified
// again at execution time: pool validation ran against possibly-stale state
// and is never trusted alone.
type Dispatcher struct {
	logger     logging.Logger
	validators chain.ValidatorSetProvider
	bridge     *bridge.Bridge
	events     *events.Service
	checker    *checker.Service
	summary    *summary.Service
}

func NewDispatcher(logger logging.Logger, validators chain.ValidatorSetProvider, b *bridge.Bridge, ev *events.Service, ch *checker.Service, sm *summary.Service) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		validators: validators,
		bridge:     b,
		events:     ev,
		checker:    ch,
		summary:    sm,
	}
}

func (d *Dispatcher) Execute(ctx context.Context, call Call) error {
	if err := VerifyCall(d.validators, call); err != nil {
		return err
	}
	switch c := call.(type) {
	case *AddConfirmation:
		return d.bridge.AddConfirmation(ctx, c.RequestID, c.Confirmation, c.Author)
	case *AddEthTxHash:
		return d.bridge.AddEthTxHash(ctx, c.TxID, c.EthTxHash, c.Author)
	case *AddCorroboration:
		return d.bridge.AddCorroboration(ctx, c.TxID, c.Succeeded, c.HashIsValid, c.Author, c.ReplayAttempt)
	case *SubmitLatestEthereumBlock:
		return d.events.SubmitLatestEthereumBlock(ctx, c.Author, c.LatestSeenBlock)
	case *SubmitEthereumEvents:
		return d.events.SubmitEthereumEvents(ctx, c.Author, &c.Partition)
	case *SubmitCheckEventResult:
		return d.checker.SubmitCheckEventResult(ctx, c.Author, c.IngressCounter, c.Result)
	case *ChallengeEvent:
		return d.checker.ChallengeEvent(ctx, c.Author, c.EventID)
	case *ProcessEvent:
		return d.checker.ProcessEvent(ctx, c.Author, c.EventID)
	case *ApproveRoot:
		return d.summary.ApproveRoot(ctx, c.Author, c.RootHash, c.Confirmation)
	case *RejectRoot:
		return d.summary.RejectRoot(ctx, c.Author, c.RootHash)
	case *EndVotingPeriod:
		return d.summary.EndVotingPeriod(ctx, c.Author, c.RootHash)
	case *AdvanceSlot:
		return d.summary.AdvanceSlot(ctx, c.Author)
	}
	return fmt.Errorf("unknown call kind %q", call.Kind())
}
