package dpquery

import "errors"

var (
	ErrInvalidBuckets = errors.New("dpquery: buckets must be > 0")
	ErrInvalidRange   = errors.New("dpquery: max must be > min")
	ErrInvalidFanout  = errors.New("dpquery: fanout must be >= 2")
)
