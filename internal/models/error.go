package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountInactive = errors.New("account is inactive")
	ErrFeatureDisabled = errors.New("feature not enabled")

	// Outbound lookup errors
	ErrUpstreamTimeout = errors.New("upstream request timed out")
	ErrUpstreamFailure = errors.New("upstream request failed")
)
