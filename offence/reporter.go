package offence

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/chain"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/logging"
)

type Type string

const (
	TypeChallengeAttemptedOnSuccessfulTransaction   Type = "challenge_attempted_on_successful_transaction"
	TypeChallengeAttemptedOnUnsuccessfulTransaction Type = "challenge_attempted_on_unsuccessful_transaction"
	TypeInvalidEthereumRangeData                    Type = "invalid_ethereum_range_data"
	TypeIncorrectCheckResultSubmitted               Type = "incorrect_check_result_submitted"
	TypeChallengeAttemptedOnValidResult             Type = "challenge_attempted_on_valid_result"
	TypeRejectedValidRoot                           Type = "rejected_valid_root"
	TypeApprovedInvalidRoot                         Type = "approved_invalid_root"
	TypeNoSummaryCreated                            Type = "no_summary_created"
	TypeSlotNotAdvanced                             Type = "slot_not_advanced"
)

// Sink receives offence records for slashing. The staking subsystem is an
// external collaborator.
type Sink interface {
	SubmitOffence(ctx context.Context, offence *entity.Offence) error
}

// Reporter forwards misbehavior to the slashing sink and keeps a local record
// for the API. Reporting is fire-and-forget: failures are logged and never
// propagate to the extrinsic that triggered them.
type Reporter struct {
	logger     logging.Logger
	repo       entity.OffencesRepo
	validators chain.ValidatorSetProvider
	clock      chain.Clock
	sink       Sink
}

func NewReporter(logger logging.Logger, repo entity.OffencesRepo, validators chain.ValidatorSetProvider, clock chain.Clock, sink Sink) *Reporter {
	return &Reporter{
		logger:     logger,
		repo:       repo,
		validators: validators,
		clock:      clock,
		sink:       sink,
	}
}

func (r *Reporter) Report(ctx context.Context, reporter common.Address, offenders []common.Address, offenceType Type) {
	if len(offenders) == 0 {
		return
	}
	offence := &entity.Offence{
		Reporter:       reporter,
		Offenders:      offenders,
		Type:           string(offenceType),
		ValidatorCount: uint(len(r.validators.Validators())),
		CreatedAtBlock: r.clock.CurrentBlock(),
	}
	logger := r.logger.WithField("offence_type", offenceType).WithField("offenders", offenders)
	if err := r.repo.Insert(ctx, offence); err != nil {
		logger.WithError(err).Error("can't record offence")
	}
	if r.sink != nil {
		if err := r.sink.SubmitOffence(ctx, offence); err != nil {
			logger.WithError(err).Error("can't forward offence to slashing sink")
			return
		}
	}
	logger.Warn("reported offence")
}

// LogSink is the default Sink for deployments without a slashing collaborator.
type LogSink struct {
	Logger logging.Logger
}

func (s *LogSink) SubmitOffence(_ context.Context, offence *entity.Offence) error {
	s.Logger.WithField("offence_type", offence.Type).
		WithField("offenders", offence.Offenders).
		WithField("validator_count", offence.ValidatorCount).
		Info("offence forwarded")
	return nil
}
