package events

import "errors"

var (
	ErrActiveRangeExists      = errors.New("block voting is closed while a range is active")
	ErrNonActiveEthereumRange = errors.New("partition does not match the active ethereum range")
	ErrEventVoteExists        = errors.New("author already voted in this round")
	ErrEventAlreadyProcessed  = errors.New("event transaction hash was already accepted")

	errEventTypeNotAccepted  = errors.New("event type is not in the accepted filter")
	errEventOutsideRange     = errors.New("event block is outside the approved range")
	errUnrecognizedContract  = errors.New("event was emitted by an unrecognized contract")
	errEventSignatureMistype = errors.New("event topic does not match the declared type")
	errNoHandlerRegistered   = errors.New("no handler registered for event type")
)
