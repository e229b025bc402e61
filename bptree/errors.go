package bptree

import "errors"

var (
	ErrInvalidConfig = errors.New("bptree: invalid configuration")
	ErrEmptyInput    = errors.New("bptree: build requires at least one pair")
	ErrNotSorted     = errors.New("bptree: input pairs must be sorted by key")
	ErrCorruptBlock  = errors.New("bptree: corrupt block")
)
