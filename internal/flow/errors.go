package flow

import "errors"

var (
	ErrInvalidFlow = errors.New("invalid flow")
)
