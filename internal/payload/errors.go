package payload

import "errors"

var (
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrInvalidPayload = errors.New("invalid payload")
)
