package domain

import "errors"

// ErrValidation marks input rejected before anything is written.
var ErrValidation = errors.New("validation failed")
