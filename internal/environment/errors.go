package environment

import "errors"

var (
	ErrNotBuilt        = errors.New("environment has not been built")
	ErrPathNotAbsolute = errors.New("file path is not absolute")
	ErrFileConflict    = errors.New("conflicting file in build context")
	ErrBuildContext    = errors.New("build context assembly failed")
	ErrInvalidImage    = errors.New("invalid image reference")
	ErrSerialization   = errors.New("environment serialization failed")
)
