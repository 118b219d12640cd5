package domain

import "errors"

var (
	// Configuration errors
	ErrMissingCredentials = errors.New("username and token are required")
	ErrInvalidConfig      = errors.New("invalid configuration")

	// API errors
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited by GitHub")
	ErrUnauthorized = errors.New("authentication failed")
	ErrConnectivity = errors.New("GitHub API unreachable")
)
