package extrinsic

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/utils"
)

// Call is one authority-signed command. The signature covers a per-command
// context string plus the payload fields, so a signature for one command kind
// can never be replayed as another.
type Call interface {
	Kind() string
	// Tag is the pool deduplication key: two calls with the same tag are
	// the same logical action regardless of the submitting node.
	Tag() string
	GetAuthor() common.Address
	GetSignature() []byte
	SetSignature(sig []byte)
	SigningPayload() []byte
}

// Kind values double as the signing context strings.
const (
	KindAddConfirmation           = "bridge::add_confirmation"
	KindAddEthTxHash              = "bridge::add_eth_tx_hash"
	KindAddCorroboration          = "bridge::add_corroboration"
	KindSubmitLatestEthereumBlock = "events::submit_latest_ethereum_block"
	KindSubmitEthereumEvents      = "events::submit_ethereum_events"
	KindSubmitCheckEventResult    = "checker::submit_checkevent_result"
	KindChallengeEvent            = "checker::challenge_event"
	KindProcessEvent              = "checker::process_event"
	KindApproveRoot               = "summary::approve_root"
	KindRejectRoot                = "summary::reject_root"
	KindEndVotingPeriod           = "summary::end_voting_period"
	KindAdvanceSlot               = "summary::advance_slot"
)

// authorship carries the fields every command shares.
type authorship struct {
	Author    common.Address `json:"author"`
	Signature hexutil.Bytes  `json:"signature"`
}

func (a *authorship) GetAuthor() common.Address { return a.Author }
func (a *authorship) GetSignature() []byte      { return a.Signature }
func (a *authorship) SetSignature(sig []byte)   { a.Signature = sig }

// signingPayload builds the byte string an authority signs: the context
// string followed by the JSON encoding of the payload fields.
func signingPayload(context string, fields ...interface{}) []byte {
	blob, err := json.Marshal(fields)
	if err != nil {
		// fields are plain values, this cannot fail at runtime
		panic(fmt.Sprintf("can't encode signing payload: %v", err))
	}
	return append([]byte(context), blob...)
}

// Sign fills in the call's signature using the authority's key. The author
// field must already be set.
func Sign(call Call, key *ecdsa.PrivateKey) error {
	sig, err := utils.SignData(key, call.SigningPayload())
	if err != nil {
		return fmt.Errorf("can't sign call: %w", err)
	}
	call.SetSignature(sig)
	return nil
}

type AddConfirmation struct {
	authorship
	RequestID    uint32        `json:"request_id"`
	Confirmation hexutil.Bytes `json:"confirmation"`
}

func (c *AddConfirmation) Kind() string { return KindAddConfirmation }
func (c *AddConfirmation) Tag() string {
	return fmt.Sprintf("%s/%d/%s", c.Kind(), c.RequestID, c.Author)
}
func (c *AddConfirmation) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.RequestID, c.Confirmation, c.Author)
}

type AddEthTxHash struct {
	authorship
	TxID      uint32      `json:"tx_id"`
	EthTxHash common.Hash `json:"eth_tx_hash"`
}

func (c *AddEthTxHash) Kind() string { return KindAddEthTxHash }
func (c *AddEthTxHash) Tag() string {
	return fmt.Sprintf("%s/%d", c.Kind(), c.TxID)
}
func (c *AddEthTxHash) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.TxID, c.EthTxHash, c.Author)
}

type AddCorroboration struct {
	authorship
	TxID          uint32 `json:"tx_id"`
	Succeeded     bool   `json:"succeeded"`
	HashIsValid   bool   `json:"hash_is_valid"`
	ReplayAttempt uint32 `json:"replay_attempt"`
}

func (c *AddCorroboration) Kind() string { return KindAddCorroboration }
func (c *AddCorroboration) Tag() string {
	return fmt.Sprintf("%s/%d/%d/%s", c.Kind(), c.TxID, c.ReplayAttempt, c.Author)
}
func (c *AddCorroboration) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.TxID, c.Succeeded, c.HashIsValid, c.ReplayAttempt, c.Author)
}

type SubmitLatestEthereumBlock struct {
	authorship
	LatestSeenBlock uint32 `json:"latest_seen_block"`
}

func (c *SubmitLatestEthereumBlock) Kind() string { return KindSubmitLatestEthereumBlock }
func (c *SubmitLatestEthereumBlock) Tag() string {
	return fmt.Sprintf("%s/%s", c.Kind(), c.Author)
}
func (c *SubmitLatestEthereumBlock) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.LatestSeenBlock, c.Author)
}

type SubmitEthereumEvents struct {
	authorship
	Partition entity.EventsPartition `json:"partition"`
}

func (c *SubmitEthereumEvents) Kind() string { return KindSubmitEthereumEvents }
func (c *SubmitEthereumEvents) Tag() string {
	return fmt.Sprintf("%s/%s/%s", c.Kind(), c.Partition.ID(), c.Author)
}
func (c *SubmitEthereumEvents) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.Partition.ID(), c.Author)
}

type SubmitCheckEventResult struct {
	authorship
	IngressCounter uint64             `json:"ingress_counter"`
	Result         entity.CheckResult `json:"result"`
}

func (c *SubmitCheckEventResult) Kind() string { return KindSubmitCheckEventResult }
func (c *SubmitCheckEventResult) Tag() string {
	return fmt.Sprintf("%s/%d", c.Kind(), c.IngressCounter)
}
func (c *SubmitCheckEventResult) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.IngressCounter, c.Result, c.Author)
}

type ChallengeEvent struct {
	authorship
	EventID entity.EventID `json:"event_id"`
}

func (c *ChallengeEvent) Kind() string { return KindChallengeEvent }
func (c *ChallengeEvent) Tag() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.Kind(), c.EventID.Type, c.EventID.TxHash, c.Author)
}
func (c *ChallengeEvent) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.EventID, c.Author)
}

type ProcessEvent struct {
	authorship
	EventID entity.EventID `json:"event_id"`
}

func (c *ProcessEvent) Kind() string { return KindProcessEvent }
func (c *ProcessEvent) Tag() string {
	return fmt.Sprintf("%s/%s/%s", c.Kind(), c.EventID.Type, c.EventID.TxHash)
}
func (c *ProcessEvent) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.EventID, c.Author)
}

type ApproveRoot struct {
	authorship
	RootHash     common.Hash   `json:"root_hash"`
	Confirmation hexutil.Bytes `json:"confirmation"`
}

func (c *ApproveRoot) Kind() string { return KindApproveRoot }
func (c *ApproveRoot) Tag() string {
	return fmt.Sprintf("%s/%s/%s", c.Kind(), c.RootHash, c.Author)
}
func (c *ApproveRoot) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.RootHash, c.Confirmation, c.Author)
}

type RejectRoot struct {
	authorship
	RootHash common.Hash `json:"root_hash"`
}

func (c *RejectRoot) Kind() string { return KindRejectRoot }
func (c *RejectRoot) Tag() string {
	return fmt.Sprintf("%s/%s/%s", c.Kind(), c.RootHash, c.Author)
}
func (c *RejectRoot) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.RootHash, c.Author)
}

type AdvanceSlot struct {
	authorship
	SlotNumber uint64 `json:"slot_number"`
}

func (c *AdvanceSlot) Kind() string { return KindAdvanceSlot }
func (c *AdvanceSlot) Tag() string {
	return fmt.Sprintf("%s/%d/%s", c.Kind(), c.SlotNumber, c.Author)
}
func (c *AdvanceSlot) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.SlotNumber, c.Author)
}

type EndVotingPeriod struct {
	authorship
	RootHash common.Hash `json:"root_hash"`
}

func (c *EndVotingPeriod) Kind() string { return KindEndVotingPeriod }
func (c *EndVotingPeriod) Tag() string {
	return fmt.Sprintf("%s/%s", c.Kind(), c.RootHash)
}
func (c *EndVotingPeriod) SigningPayload() []byte {
	return signingPayload(c.Kind(), c.RootHash, c.Author)
}
