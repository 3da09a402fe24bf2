package auth

import "errors"

var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrStateExpired = errors.New("oauth state expired")
)
