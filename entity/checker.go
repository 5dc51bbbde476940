package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type CheckResult string

const (
	CheckResultOk                        CheckResult = "ok"
	CheckResultInvalid                   CheckResult = "invalid"
	CheckResultHTTPError                 CheckResult = "http_error"
	CheckResultInsufficientConfirmations CheckResult = "insufficient_confirmations"
)

// Postable reports whether a checker verdict may be submitted on-chain.
// Transient failures are retried silently on a later block instead.
func (r CheckResult) Postable() bool {
	return r == CheckResultOk || r == CheckResultInvalid
}

// UncheckedEvent is an ingested external-chain event awaiting its first check
// by the primary validator. The ingress counter gives FIFO order.
type UncheckedEvent struct {
	IngressCounter uint64          `json:"ingress_counter"`
	Event          EthereumEvent   `json:"event"`
	AddedBy        *common.Address `json:"added_by,omitempty"`
}

// EventCheck is a posted verdict awaiting its challenge window.
type EventCheck struct {
	IngressCounter    uint64         `json:"ingress_counter"`
	Event             EthereumEvent  `json:"event"`
	Result            CheckResult    `json:"result"`
	CheckedBy         common.Address `json:"checked_by"`
	CheckedAtBlock    uint64         `json:"checked_at_block"`
	ReadyAfterBlock   uint64         `json:"ready_after_block"`
	MinChallengeVotes uint           `json:"min_challenge_votes"`
}

// Challenge is one validator's disagreement with a posted verdict.
type Challenge struct {
	EventType    EventType      `db:"event_type"`
	EventTxHash  common.Hash    `db:"event_tx_hash"`
	ChallengedBy common.Address `db:"challenged_by"`
	CreatedAt    *time.Time     `db:"created_at"`
}

type UncheckedEventsRepo interface {
	Insert(ctx context.Context, event *UncheckedEvent) error
	List(ctx context.Context) ([]*UncheckedEvent, error)
	ExistsByEventID(ctx context.Context, id EventID) (bool, error)
	DeleteByIngressCounter(ctx context.Context, ingressCounter uint64) error
}

type EventChecksRepo interface {
	Insert(ctx context.Context, check *EventCheck) error
	GetByEventID(ctx context.Context, id EventID) (*EventCheck, error)
	List(ctx context.Context) ([]*EventCheck, error)
	DeleteByEventID(ctx context.Context, id EventID) error
}

type ChallengesRepo interface {
	Insert(ctx context.Context, challenge *Challenge) error
	Exists(ctx context.Context, id EventID, author common.Address) (bool, error)
	CountByEventID(ctx context.Context, id EventID) (uint, error)
	ListByEventID(ctx context.Context, id EventID) ([]*Challenge, error)
	DeleteByEventID(ctx context.Context, id EventID) error
}
