package format

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidSize      = errors.New("invalid tournament size")
	ErrNotReady         = errors.New("not every slot is seeded")
	ErrIllegalScore     = errors.New("illegal score")
	ErrDependencyUnmet  = errors.New("an earlier match is not finished")
	ErrByeMatch         = errors.New("match against a bye cannot be modified")
	ErrNoSuchMatch      = errors.New("no such match")
	ErrAmbiguousRanking = errors.New("ranking is ambiguous")
	ErrAborted          = errors.New("computation aborted")
)
