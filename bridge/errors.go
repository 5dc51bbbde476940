package bridge

import "errors"

var (
	ErrEmptyFunctionName          = errors.New("function name must not be empty")
	ErrTxRequestQueueFull         = errors.New("request queue is full")
	ErrInvalidECDSASignature      = errors.New("invalid ecdsa confirmation signature")
	ErrDuplicateConfirmation      = errors.New("confirmation already recorded")
	ErrExceedsConfirmationLimit   = errors.New("confirmation set is at capacity")
	ErrEthTxHashAlreadySet        = errors.New("eth tx hash is already set")
	ErrEthTxHashMustBeSetBySender = errors.New("only the sender may set the eth tx hash")
	ErrInvalidCorroborationData   = errors.New("corroboration does not match the active replay attempt")
	ErrPrematureCorroboration     = errors.New("request is neither sent nor past expiry")
	ErrDuplicateCorroboration     = errors.New("corroboration already recorded")
	ErrErrorAssigningSender       = errors.New("can't assign a sender for the request")
	ErrHandleResultFailed         = errors.New("origin component rejected the result notification")
)
