package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleQuorum(t *testing.T) {
	require.EqualValues(t, 1, SimpleQuorum(1))
	require.EqualValues(t, 2, SimpleQuorum(3))
	require.EqualValues(t, 2, SimpleQuorum(4))
	require.EqualValues(t, 3, SimpleQuorum(6))
	require.EqualValues(t, 4, SimpleQuorum(10))
}

func TestSupermajorityQuorum(t *testing.T) {
	require.EqualValues(t, 1, SupermajorityQuorum(1))
	require.EqualValues(t, 2, SupermajorityQuorum(2))
	require.EqualValues(t, 3, SupermajorityQuorum(3))
	require.EqualValues(t, 3, SupermajorityQuorum(4))
	require.EqualValues(t, 7, SupermajorityQuorum(10))
}

func TestPrimaryValidatorRotates(t *testing.T) {
	validators := testValidators(3)

	for block := uint64(0); block < 9; block++ {
		primary, err := PrimaryValidator(validators, block)
		require.NoError(t, err)
		require.Equal(t, validators[block%3], primary)
	}

	_, err := PrimaryValidator(nil, 1)
	require.ErrorIs(t, err, ErrNotAValidator)
}
