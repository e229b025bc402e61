package pathoram

import "errors"

// Error kinds per spec §7. Decrypt failures and stash overflow are fatal:
// the invariants backing obliviousness are broken once either occurs.
var (
	ErrInvalidConfig  = errors.New("pathoram: invalid configuration")
	ErrStashOverflow  = errors.New("pathoram: stash overflow")
	ErrDecryptFailure = errors.New("pathoram: decrypt failure")
	ErrDuplicateStash = errors.New("pathoram: duplicate id in stash")
)
