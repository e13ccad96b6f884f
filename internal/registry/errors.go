package registry

import "errors"

var (
	ErrDaemon = errors.New("daemon operation failed")
)
