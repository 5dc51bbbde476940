package checker

import "errors"

var (
	ErrDuplicateEvent          = errors.New("event is already known")
	ErrUnknownEvent            = errors.New("event is not awaiting a check")
	ErrMissingEventCheck       = errors.New("event has no posted check result")
	ErrNotPrimaryValidator     = errors.New("author is not the current primary validator")
	ErrResultNotPostable       = errors.New("transient check results are never posted")
	ErrCannotChallengeOwnCheck = errors.New("author cannot challenge their own check")
	ErrDuplicateChallenge      = errors.New("author already challenged this event")
	ErrChallengeWindowOpen     = errors.New("challenge window has not elapsed yet")
)
