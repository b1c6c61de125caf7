package config

import (
	"errors"
)

// Load wraps reading failures of the TOURNEY_CONFIG file, TOURNEY_ variables
// or their decoding in ErrLoadConfig. Validate wraps every out-of-range
// setting in ErrInvalidConfig and names the offending key.
var (
	ErrInvalidConfig = errors.New("tourney setting out of range")
	ErrLoadConfig    = errors.New("tourney settings unreadable")
)
