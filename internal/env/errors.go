package env

import "errors"

// Sentinel errors for the merge chain built by Resolve (§4.3).
var (
	ErrMissingFile    = errors.New("env_file not found")
	ErrUnreadableFile = errors.New("env_file unreadable")
)
