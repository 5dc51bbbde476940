package ocw

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/extrinsic"
	"github.com/fedbridge/bridge-node/sidecar"
)

// EthereumClient is the external-chain surface the workers need. The sidecar
// client satisfies it; tests substitute fakes.
type EthereumClient interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	LatestBlock(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*sidecar.Receipt, error)
	Logs(ctx context.Context, fromBlock, toBlock uint64) ([]sidecar.Log, error)
	Send(ctx context.Context, calldata []byte) (common.Hash, error)
}

// Submitter admits a candidate call into the pool and executes it.
type Submitter interface {
	Submit(ctx context.Context, call extrinsic.Call) error
}

// signAndSubmit fills a call's authority signature via the sidecar key and
// hands it to the pool.
func signAndSubmit(ctx context.Context, eth EthereumClient, submit Submitter, call extrinsic.Call) error {
	sig, err := eth.Sign(ctx, call.SigningPayload())
	if err != nil {
		return err
	}
	call.SetSignature(sig)
	return submit.Submit(ctx, call)
}
