package keeper

import (
	"github.com/paw-chain/pawdex/x/dex/types"
)

// ValidateAuthority checks that the provided authority matches the expected authority.
func ValidateAuthority(expected, actual string) error {
	if expected != actual {
		return types.ErrUnauthorized.Wrapf(
			"invalid authority; expected %s, got %s",
			expected,
			actual,
		)
	}
	return nil
}
