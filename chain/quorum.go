package chain

// SimpleQuorum is the one-third threshold used for routine approvals:
// confirmations, corroborations and partition votes.
func SimpleQuorum(validatorCount uint) uint {
	return validatorCount/3 + 1
}

// SupermajorityQuorum is the two-thirds threshold used for window-defining
// decisions. Tiny sets require unanimity.
func SupermajorityQuorum(validatorCount uint) uint {
	if validatorCount < 3 {
		return validatorCount
	}
	return validatorCount*2/3 + 1
}
