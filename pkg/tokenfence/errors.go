package tokenfence

import (
	"errors"

	"github.com/KanavDutta/tokenfence/core"
)

var (
	// ErrInvalidArgument is returned when a limiter is constructed or
	// resized with parameters that can never work
	ErrInvalidArgument = core.ErrInvalidArgument

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownLimiter is returned when a named limiter does not exist
	ErrUnknownLimiter = errors.New("unknown limiter")
)
