package model

import (
	"github.com/pkg/errors"
)

var (
	ValidationError = errors.New("validation failed")
	// UnknownBinError is returned when a bin name is not one of the known bins.
	UnknownBinError = errors.New("unknown bin")
)

// IsValidation returns true when the cause of the given error is a ValidationError.
func IsValidation(err error) bool {
	return errors.Cause(err) == ValidationError
}

// IsUnknownBin returns true when the cause of the given error is an UnknownBinError.
func IsUnknownBin(err error) bool {
	return errors.Cause(err) == UnknownBinError
}
